// Package natsbus carries client events between processes over core NATS
// subjects.
package natsbus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dmitrijs2005/mycocore/internal/logging"
)

type Transport struct {
	nc  *nats.Conn
	log logging.Logger
}

func New(url, name string, log logging.Logger) (*Transport, error) {
	if log == nil {
		log = logging.Nop()
	}
	log = log.With("component", "natsbus")

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn(context.Background(), "nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info(context.Background(), "nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Transport{nc: nc, log: log}, nil
}

func (t *Transport) Publish(_ context.Context, topic string, data []byte) error {
	return t.nc.Publish(topic, data)
}

func (t *Transport) Subscribe(_ context.Context, topic string, handler func([]byte)) (func(), error) {
	sub, err := t.nc.Subscribe(topic, func(m *nats.Msg) {
		handler(m.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil && err != nats.ErrBadSubscription && err != nats.ErrConnectionClosed {
			t.log.Warn(context.Background(), "failed to unsubscribe", "topic", topic, "error", err)
		}
	}, nil
}

// Close flushes pending publishes and closes the connection.
func (t *Transport) Close() error {
	if err := t.nc.Drain(); err != nil {
		t.nc.Close()
	}
	return nil
}
