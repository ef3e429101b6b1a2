package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mycocore/internal/client/events"
)

var ErrMalformed = errors.New("malformed realtime message")

type inboundFrame struct {
	Type      *string         `json:"type"`
	Message   *string         `json:"message"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp"`
}

// ParseInbound turns a socket frame into an event. Plain text becomes a log
// event. JSON that is not an object with a known type and a string message
// is rejected with ErrMalformed.
func ParseInbound(data []byte) (events.Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return events.Event{}, fmt.Errorf("%w: empty frame", ErrMalformed)
	}
	if !json.Valid(trimmed) {
		if trimmed[0] == '{' || trimmed[0] == '[' {
			return events.Event{}, fmt.Errorf("%w: invalid json", ErrMalformed)
		}
		return events.Event{Kind: events.KindLog, Message: string(trimmed)}, nil
	}

	var f inboundFrame
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return events.Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Type == nil || f.Message == nil {
		return events.Event{}, fmt.Errorf("%w: missing type or message", ErrMalformed)
	}
	kind, err := events.ParseKind(*f.Type)
	if err != nil {
		return events.Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if bytes.Equal(f.Payload, []byte("null")) {
		f.Payload = nil
	}

	return events.Event{
		Kind:      kind,
		Message:   *f.Message,
		Payload:   f.Payload,
		Timestamp: f.Timestamp,
	}, nil
}
