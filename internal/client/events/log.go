package events

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/mycocore/internal/client/models"
	"github.com/dmitrijs2005/mycocore/internal/client/repositories/eventlog"
	"github.com/dmitrijs2005/mycocore/internal/logging"
)

const DefaultLogCapacity = 100

// Log is the bounded, deduplicated display buffer of important events,
// persisted per user.
type Log struct {
	capacity int
	dedup    *Deduplicator
	repo     eventlog.Repository
	log      logging.Logger
	now      func() time.Time

	mu      sync.Mutex
	userID  string
	entries []models.LogEntry
}

// NewLog builds a display log. repo may be nil, in which case nothing is
// persisted.
func NewLog(capacity int, dedup *Deduplicator, repo eventlog.Repository, log logging.Logger) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	if dedup == nil {
		dedup = NewDeduplicator(DefaultRecencyCapacity)
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Log{
		capacity: capacity,
		dedup:    dedup,
		repo:     repo,
		log:      log.With("component", "eventlog"),
		now:      time.Now,
	}
}

// Load switches the log to userID and replaces the buffer with what was
// persisted for that user.
func (l *Log) Load(ctx context.Context, userID string) error {
	var stored []models.LogEntry
	if l.repo != nil && userID != "" {
		var err error
		stored, err = l.repo.List(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load event log: %w", err)
		}
	}
	if len(stored) > l.capacity {
		stored = stored[len(stored)-l.capacity:]
	}

	l.mu.Lock()
	l.userID = userID
	l.entries = stored
	l.mu.Unlock()
	return nil
}

// Unload forgets the current user without touching what is persisted.
func (l *Log) Unload() {
	l.mu.Lock()
	l.userID = ""
	l.entries = nil
	l.mu.Unlock()
}

// Listener adapts Add for Channel.Subscribe.
func (l *Log) Listener() Listener {
	return func(e Event) { l.Add(context.Background(), e) }
}

// Add appends e when its kind is important and it is not a recent
// duplicate. It reports whether the entry was kept.
func (l *Log) Add(ctx context.Context, e Event) bool {
	if !e.Kind.Important() || !l.dedup.Allow(e) {
		return false
	}

	ts := e.Timestamp
	if ts == "" {
		ts = FormatTimestamp(l.now())
	}
	entry := models.LogEntry{
		ID:        newEntryID(e.Kind, l.now()),
		Kind:      string(e.Kind),
		Message:   e.Message,
		Timestamp: ts,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.capacity {
		l.entries = append([]models.LogEntry(nil), l.entries[len(l.entries)-l.capacity:]...)
	}
	l.persist(ctx, l.userID, l.entries)
	return true
}

func (l *Log) persist(ctx context.Context, userID string, entries []models.LogEntry) {
	if l.repo == nil || userID == "" {
		return
	}
	if err := l.repo.Replace(ctx, userID, entries); err != nil {
		l.log.Warn(ctx, "failed to persist event log", "user_id", userID, "error", err)
	}
}

func (l *Log) Entries() []models.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.LogEntry(nil), l.entries...)
}

// Search returns entries whose kind, message, timestamp or id contain q,
// ignoring case. An empty q matches everything.
func (l *Log) Search(q string) []models.LogEntry {
	q = strings.ToLower(strings.TrimSpace(q))
	all := l.Entries()
	if q == "" {
		return all
	}
	out := make([]models.LogEntry, 0, len(all))
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.Kind), q) ||
			strings.Contains(strings.ToLower(e.Message), q) ||
			strings.Contains(strings.ToLower(e.Timestamp), q) ||
			strings.Contains(strings.ToLower(e.ID), q) {
			out = append(out, e)
		}
	}
	return out
}

// Clear empties the buffer and the persisted copy of the current user.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil

	if l.repo == nil || l.userID == "" {
		return nil
	}
	return l.repo.Clear(ctx, l.userID)
}

// WriteCSV writes entries as CSV with a header row. Nothing is written for
// an empty slice.
func WriteCSV(w io.Writer, entries []models.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write([]string{"type", "message", "timestamp", "id"}); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.Kind, e.Message, e.Timestamp, e.ID}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func newEntryID(k Kind, t time.Time) string {
	return fmt.Sprintf("%s-%d-%s", k, t.UnixMilli(), uuid.NewString()[:6])
}
