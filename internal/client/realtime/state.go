package realtime

import "fmt"

type Phase int

const (
	Idle Phase = iota
	Connecting
	Connected
	Disconnected
	Reconnecting
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is the supervised connection state. Attempt counts reconnects
// within the current failure episode and is zero while Connected.
type State struct {
	Phase   Phase
	Attempt int
}

func (s State) String() string {
	if s.Phase == Reconnecting {
		return fmt.Sprintf("reconnecting(%d)", s.Attempt)
	}
	return s.Phase.String()
}
