// Package realtime supervises the long-lived event socket of a session.
//
// The Supervisor walks the states Idle, Connecting, Connected, Disconnected,
// Reconnecting(n) and Failed. A dropped connection is retried after
// Backoff.Delay(n) until MaxAttempts reconnects have failed, after which the
// supervisor stays Failed until Rearm is called by a fresh login.
//
// Inbound frames are turned into events.Event values and emitted on the
// event channel; frames that cannot be understood are dropped with a
// warning event.
package realtime
