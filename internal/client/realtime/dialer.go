package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/mycocore/internal/common"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

var ErrHandshakeRejected = errors.New("realtime handshake rejected")

// Conn is one open socket. ReadMessage blocks until a data frame arrives or
// the connection fails; Close unblocks it.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// SocketURL appends the access token as the token query parameter.
func SocketURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid realtime url: %w", err)
	}
	q := u.Query()
	q.Set(common.TokenQueryParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// WebsocketDialer opens gorilla/websocket connections kept alive with
// ping/pong.
type WebsocketDialer struct {
	dialer       *websocket.Dialer
	pingInterval time.Duration
	pongTimeout  time.Duration
}

func NewWebsocketDialer(handshakeTimeout time.Duration) *WebsocketDialer {
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	c, resp, err := d.dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: status %d", ErrHandshakeRejected, resp.StatusCode)
		}
		return nil, err
	}

	wc := &wsConn{c: c, done: make(chan struct{})}
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(d.pongTimeout))
	})
	_ = c.SetReadDeadline(time.Now().Add(d.pongTimeout))
	go wc.pingLoop(d.pingInterval)
	return wc, nil
}

type wsConn struct {
	c       *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := w.c.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (w *wsConn) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.writeMu.Lock()
		_ = w.c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		w.writeMu.Unlock()
		err = w.c.Close()
	})
	return err
}

func (w *wsConn) pingLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.writeMu.Lock()
			err := w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			w.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
