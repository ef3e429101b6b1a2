package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/mycocore/internal/client/events"
	"github.com/dmitrijs2005/mycocore/internal/client/session"
	"github.com/dmitrijs2005/mycocore/internal/logging"
)

var (
	ErrFailed    = errors.New("realtime connection failed, log in again to reconnect")
	ErrNoSession = errors.New("no session for realtime connection")
)

type SessionSource interface {
	Current() (session.Session, bool)
}

type Emitter interface {
	Emit(ctx context.Context, e events.Event) events.Event
}

type Config struct {
	URL     string
	Backoff Backoff
}

type watcher struct {
	id int
	fn func(State)
}

type Supervisor struct {
	cfg      Config
	dialer   Dialer
	sched    Scheduler
	sessions SessionSource
	emit     Emitter
	log      logging.Logger

	mu       sync.Mutex
	state    State
	gen      uint64
	userID   string
	base     context.Context
	conn     Conn
	pending  *reconnectTask
	watchers []watcher
	nextID   int
}

func NewSupervisor(cfg Config, dialer Dialer, sched Scheduler, sessions SessionSource, emit Emitter, log logging.Logger) *Supervisor {
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	if sched == nil {
		sched = TimerScheduler{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Supervisor{
		cfg:      cfg,
		dialer:   dialer,
		sched:    sched,
		sessions: sessions,
		emit:     emit,
		log:      log.With("component", "realtime"),
		base:     context.Background(),
	}
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) Connected() bool {
	return s.State().Phase == Connected
}

// Watch calls fn on every state change until the returned func is called.
func (s *Supervisor) Watch(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers = append(s.watchers, watcher{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, w := range s.watchers {
				if w.id == id {
					s.watchers = append(s.watchers[:i:i], s.watchers[i+1:]...)
					return
				}
			}
		})
	}
}

// Start connects for userID. The first dial runs on the caller's goroutine.
// It is a no-op unless the supervisor is Idle, and fails with ErrFailed
// until Rearm is called.
func (s *Supervisor) Start(ctx context.Context, userID string) error {
	s.mu.Lock()
	switch s.state.Phase {
	case Failed:
		s.mu.Unlock()
		return ErrFailed
	case Idle:
	default:
		s.mu.Unlock()
		return nil
	}

	sess, ok := s.sessions.Current()
	if !ok || sess.AccessToken == "" || (userID != "" && sess.UserID != userID) {
		s.mu.Unlock()
		return ErrNoSession
	}

	s.gen++
	gen := s.gen
	s.userID = userID
	s.base = context.WithoutCancel(ctx)
	st := State{Phase: Connecting}
	notify := s.setStateLocked(st)
	s.mu.Unlock()

	s.notify(notify, st)
	s.log.Info(ctx, "starting realtime connection", "user_id", userID)
	s.dial(ctx, gen, 0)
	return nil
}

// Stop cancels any pending reconnect and closes the socket. A Failed
// supervisor stays Failed.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.gen++
	s.pending.cancel()
	s.pending = nil
	conn := s.conn
	s.conn = nil
	s.userID = ""
	var notify []watcher
	if s.state.Phase != Failed && s.state.Phase != Idle {
		notify = s.setStateLocked(State{Phase: Idle})
	}
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	s.notify(notify, State{Phase: Idle})
}

// Rearm leaves the Failed state. Only a fresh login should call it.
func (s *Supervisor) Rearm() {
	s.mu.Lock()
	if s.state.Phase != Failed {
		s.mu.Unlock()
		return
	}
	notify := s.setStateLocked(State{Phase: Idle})
	s.mu.Unlock()
	s.notify(notify, State{Phase: Idle})
}

func (s *Supervisor) connect(ctx context.Context, gen uint64, attempt int) {
	st := State{Phase: Connecting, Attempt: attempt}
	notify, ok := s.transition(gen, st)
	if !ok {
		return
	}
	s.notify(notify, st)
	s.dial(ctx, gen, attempt)
}

func (s *Supervisor) dial(ctx context.Context, gen uint64, attempt int) {
	sess, have := s.sessions.Current()
	if !have || sess.AccessToken == "" {
		s.log.Warn(ctx, "session gone before connect, going idle")
		if notify, ok := s.transition(gen, State{Phase: Idle}); ok {
			s.notify(notify, State{Phase: Idle})
		}
		return
	}

	url, err := SocketURL(s.cfg.URL, sess.AccessToken)
	var conn Conn
	if err == nil {
		conn, err = s.dialer.Dial(ctx, url)
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		s.mu.Unlock()
		s.log.Warn(ctx, "realtime dial failed", "attempt", attempt, "error", err)
		s.dropped(ctx, gen, attempt, err)
		return
	}
	s.conn = conn
	connected := State{Phase: Connected}
	notify := s.setStateLocked(connected)
	s.mu.Unlock()

	s.notify(notify, connected)
	s.log.Info(ctx, "realtime connected")
	s.emit.Emit(ctx, events.Event{Kind: events.KindConnect, Message: "Realtime connection established"})

	go s.readLoop(gen, conn)
}

func (s *Supervisor) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			current := gen == s.gen && s.conn == conn
			if current {
				s.conn = nil
			}
			ctx := s.base
			s.mu.Unlock()

			_ = conn.Close()
			if current {
				s.log.Warn(ctx, "realtime connection lost", "error", err)
				s.dropped(ctx, gen, 0, err)
			}
			return
		}
		s.handle(gen, data)
	}
}

func (s *Supervisor) handle(gen uint64, data []byte) {
	s.mu.Lock()
	current := gen == s.gen
	ctx := s.base
	s.mu.Unlock()
	if !current {
		return
	}

	e, err := ParseInbound(data)
	if err != nil {
		s.log.Warn(ctx, "dropping realtime message", "error", err)
		s.emit.Emit(ctx, events.Event{Kind: events.KindWarning, Message: "Dropped malformed realtime message"})
		return
	}
	s.emit.Emit(ctx, e)
}

// dropped moves through Disconnected to either Reconnecting(attempt+1) or
// Failed.
func (s *Supervisor) dropped(ctx context.Context, gen uint64, attempt int, cause error) {
	disc := State{Phase: Disconnected, Attempt: attempt}
	notify, ok := s.transition(gen, disc)
	if !ok {
		return
	}
	s.notify(notify, disc)
	s.emit.Emit(ctx, events.Event{Kind: events.KindDisconnect, Message: "Realtime connection lost: " + cause.Error()})

	next := attempt + 1
	if next > s.cfg.Backoff.MaxAttempts {
		failed := State{Phase: Failed}
		notify, ok := s.transition(gen, failed)
		if !ok {
			return
		}
		s.notify(notify, failed)
		s.log.Error(ctx, "realtime connection failed", "attempts", attempt)
		s.emit.Emit(ctx, events.Event{
			Kind:    events.KindAuthError,
			Message: fmt.Sprintf("Realtime connection failed after %d attempts. Please log in again.", attempt),
		})
		return
	}

	delay := s.cfg.Backoff.Delay(next)
	st := State{Phase: Reconnecting, Attempt: next}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	notify = s.setStateLocked(st)
	task := &reconnectTask{gen: gen, attempt: next}
	s.pending = task
	task.task = s.sched.AfterFunc(delay, func() { s.fire(task) })
	s.mu.Unlock()

	s.notify(notify, st)
	s.emit.Emit(ctx, events.Event{
		Kind:    events.KindLog,
		Message: fmt.Sprintf("Reconnecting (attempt %d/%d) in %s", next, s.cfg.Backoff.MaxAttempts, delay),
	})
}

func (s *Supervisor) fire(task *reconnectTask) {
	s.mu.Lock()
	if s.pending != task || task.gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	ctx := s.base
	s.mu.Unlock()

	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	s.connect(dctx, task.gen, task.attempt)
}

const dialTimeout = 15 * time.Second

// transition sets st if gen is still current.
func (s *Supervisor) transition(gen uint64, st State) ([]watcher, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil, false
	}
	return s.setStateLocked(st), true
}

func (s *Supervisor) setStateLocked(st State) []watcher {
	s.state = st
	return append([]watcher(nil), s.watchers...)
}

func (s *Supervisor) notify(ws []watcher, st State) {
	for _, w := range ws {
		w.fn(st)
	}
}
