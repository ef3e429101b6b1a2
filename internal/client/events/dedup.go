package events

import "sync"

const DefaultRecencyCapacity = 100

// Deduplicator remembers the most recent RecencyKeys and rejects repeats.
// The oldest key is evicted once capacity is reached.
type Deduplicator struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
	order    []string
}

func NewDeduplicator(capacity int) *Deduplicator {
	if capacity <= 0 {
		capacity = DefaultRecencyCapacity
	}
	return &Deduplicator{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
	}
}

// Allow reports whether e is new, recording it if so.
func (d *Deduplicator) Allow(e Event) bool {
	key := RecencyKey(e)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return false
	}
	if len(d.order) == d.capacity {
		delete(d.seen, d.order[0])
		d.order = d.order[1:]
	}
	d.seen[key] = struct{}{}
	d.order = append(d.order, key)
	return true
}

func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

// Filter wraps next so it only sees events Allow accepts.
func (d *Deduplicator) Filter(next Listener) Listener {
	return func(e Event) {
		if d.Allow(e) {
			next(e)
		}
	}
}
