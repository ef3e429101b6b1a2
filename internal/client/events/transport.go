package events

import (
	"context"
	"sync"
)

// Topics used on the cross-process transport.
const (
	TopicSystem   = "mycocore.events.system"
	TopicUsername = "mycocore.events.username"
	TopicEmail    = "mycocore.events.email"
)

// Topics lists every topic a Channel listens on.
var Topics = []string{TopicSystem, TopicUsername, TopicEmail}

// TopicFor routes an event kind to its stream.
func TopicFor(e Event) string {
	switch e.Kind {
	case KindUsername:
		return TopicUsername
	case KindEmail, KindEmailVerified:
		return TopicEmail
	case KindProfileFieldChanged:
		var pc ProfileChange
		if decodePayload(e.Payload, &pc) == nil {
			switch pc.Field {
			case "username":
				return TopicUsername
			case "email", "pending_email":
				return TopicEmail
			}
		}
	}
	return TopicSystem
}

// Transport moves encoded events between processes. Implementations must
// deliver to handlers in every process subscribed to the topic, the
// publishing one included.
type Transport interface {
	Publish(ctx context.Context, topic string, data []byte) error
	Subscribe(ctx context.Context, topic string, handler func([]byte)) (unsubscribe func(), err error)
	Close() error
}

// MemoryBus is an in-process Transport. Several Channels sharing one bus
// behave like several tabs.
type MemoryBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string][]busSub
	closed bool
}

type busSub struct {
	id int
	h  func([]byte)
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]busSub)}
}

func (b *MemoryBus) Publish(_ context.Context, topic string, data []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrTransportClosed
	}
	subs := append([]busSub(nil), b.subs[topic]...)
	b.mu.Unlock()

	for _, s := range subs {
		cp := make([]byte, len(data))
		copy(cp, data)
		s.h(cp)
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, topic string, handler func([]byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrTransportClosed
	}
	id := b.nextID
	b.nextID++
	b.subs[topic] = append(b.subs[topic], busSub{id: id, h: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subs[topic]
			for i, s := range subs {
				if s.id == id {
					b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}, nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.subs = make(map[string][]busSub)
	b.mu.Unlock()
	return nil
}
