package models

// LogEntry is one line of the user-visible event log, as displayed and as
// persisted per user in the local database.
type LogEntry struct {
	ID        string `json:"id"`
	Kind      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
