package realtime

import "time"

// Task is a pending scheduled call.
type Task interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
}

// TimerScheduler schedules on time.AfterFunc.
type TimerScheduler struct{}

func (TimerScheduler) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

// reconnectTask is the one pending reconnect of a supervisor.
type reconnectTask struct {
	gen     uint64
	attempt int
	task    Task
}

func (t *reconnectTask) cancel() {
	if t != nil && t.task != nil {
		t.task.Stop()
	}
}
