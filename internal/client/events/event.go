package events

import (
	"encoding/json"
	"time"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

type Event struct {
	Kind      Kind            `json:"type"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	OriginTab string          `json:"source,omitempty"`
}

// Listener receives events. It must not block for long: local delivery is
// synchronous with Emit.
type Listener func(Event)

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// RecencyKey identifies an event for duplicate suppression: kind, message
// and the timestamp truncated to the second.
func RecencyKey(e Event) string {
	ts := e.Timestamp
	if len(ts) > 19 {
		ts = ts[:19]
	}
	return string(e.Kind) + "|" + e.Message + "|" + ts
}

// ProfileChange is the payload of a profile_field_changed event.
type ProfileChange struct {
	UserID string `json:"user_id,omitempty"`
	Field  string `json:"field"`
	Value  string `json:"value"`
}

// NewProfileChange builds a profile_field_changed event.
func NewProfileChange(userID, field, value, message string) Event {
	b, _ := json.Marshal(ProfileChange{UserID: userID, Field: field, Value: value})
	return Event{Kind: KindProfileFieldChanged, Message: message, Payload: b}
}
