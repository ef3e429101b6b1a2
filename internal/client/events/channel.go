package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/mycocore/internal/logging"
)

var (
	ErrTransportClosed = errors.New("event transport closed")
	ErrChannelClosed   = errors.New("event channel closed")
)

type subscription struct {
	id int
	fn Listener
}

// Channel is the event hub of one client process.
type Channel struct {
	tab       string
	transport Transport
	log       logging.Logger
	now       func() time.Time

	mu        sync.Mutex
	nextID    int
	listeners []subscription
	remote    []func()
	closed    bool
}

// NewChannel creates a channel for the tab and, when transport is not nil,
// subscribes it to every topic so events from other tabs reach the same
// listeners.
func NewChannel(ctx context.Context, tab string, transport Transport, log logging.Logger) (*Channel, error) {
	if log == nil {
		log = logging.Nop()
	}
	c := &Channel{
		tab:       tab,
		transport: transport,
		log:       log.With("component", "events", "tab", tab),
		now:       time.Now,
	}
	if transport == nil {
		return c, nil
	}

	for _, topic := range Topics {
		unsub, err := transport.Subscribe(ctx, topic, c.receive)
		if err != nil {
			c.unsubscribeRemote()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		c.remote = append(c.remote, unsub)
	}
	return c, nil
}

// Tab returns the origin identifier stamped on emitted events.
func (c *Channel) Tab() string { return c.tab }

// Emit stamps e, delivers it to local listeners in subscription order and
// then publishes it to the other tabs. The stamped event is returned.
func (c *Channel) Emit(ctx context.Context, e Event) Event {
	if e.Timestamp == "" {
		e.Timestamp = FormatTimestamp(c.now())
	}
	if e.OriginTab == "" {
		e.OriginTab = c.tab
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return e
	}

	c.deliver(e)

	if c.transport == nil {
		return e
	}
	data, err := json.Marshal(e)
	if err != nil {
		c.log.Warn(ctx, "failed to encode event", "kind", e.Kind, "error", err)
		return e
	}
	if err := c.transport.Publish(ctx, TopicFor(e), data); err != nil {
		c.log.Warn(ctx, "failed to broadcast event", "kind", e.Kind, "error", err)
	}
	return e
}

// Subscribe registers fn for local and remote events. The returned func
// removes it and may be called any number of times.
func (c *Channel) Subscribe(fn Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, subscription{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.listeners {
				if s.id == id {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Close detaches the channel from the transport and drops all listeners.
// The transport itself is left open.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.listeners = nil
	c.mu.Unlock()

	c.unsubscribeRemote()
	return nil
}

func (c *Channel) unsubscribeRemote() {
	c.mu.Lock()
	remote := c.remote
	c.remote = nil
	c.mu.Unlock()
	for _, unsub := range remote {
		unsub()
	}
}

func (c *Channel) deliver(e Event) {
	c.mu.Lock()
	subs := append([]subscription(nil), c.listeners...)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(e)
	}
}

func (c *Channel) receive(data []byte) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		c.log.Warn(context.Background(), "dropping undecodable broadcast", "error", err)
		return
	}
	if e.OriginTab == c.tab {
		return
	}
	if !e.Kind.Valid() {
		c.log.Warn(context.Background(), "dropping broadcast with unknown kind", "kind", e.Kind)
		return
	}
	if e.Timestamp == "" {
		e.Timestamp = FormatTimestamp(c.now())
	}
	c.deliver(e)
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(raw, v)
}

// DecodePayload unmarshals the event payload into v.
func (e Event) DecodePayload(v any) error {
	return decodePayload(e.Payload, v)
}
