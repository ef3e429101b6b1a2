// Package redisbus carries client events between processes over Redis
// pub/sub.
package redisbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/mycocore/internal/logging"
)

type Transport struct {
	client *redis.Client
	log    logging.Logger

	mu   sync.Mutex
	subs map[*redis.PubSub]struct{}
}

// New connects to addr and checks the connection with PING.
func New(ctx context.Context, addr string, log logging.Logger) (*Transport, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}
	return NewWithClient(client, log), nil
}

// NewWithClient wraps an existing client. Close closes it.
func NewWithClient(client *redis.Client, log logging.Logger) *Transport {
	if log == nil {
		log = logging.Nop()
	}
	return &Transport{
		client: client,
		log:    log.With("component", "redisbus"),
		subs:   make(map[*redis.PubSub]struct{}),
	}
}

func (t *Transport) Publish(ctx context.Context, topic string, data []byte) error {
	return t.client.Publish(ctx, topic, data).Err()
}

// Subscribe waits for the subscription to be confirmed, then delivers
// messages to handler from a dedicated goroutine until unsubscribed.
func (t *Transport) Subscribe(ctx context.Context, topic string, handler func([]byte)) (func(), error) {
	ps := t.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	t.mu.Lock()
	t.subs[ps] = struct{}{}
	t.mu.Unlock()

	go func() {
		for msg := range ps.Channel() {
			handler([]byte(msg.Payload))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, ps)
			t.mu.Unlock()
			if err := ps.Close(); err != nil {
				t.log.Warn(context.Background(), "failed to close subscription", "topic", topic, "error", err)
			}
		})
	}, nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	subs := t.subs
	t.subs = make(map[*redis.PubSub]struct{})
	t.mu.Unlock()

	for ps := range subs {
		_ = ps.Close()
	}
	return t.client.Close()
}
