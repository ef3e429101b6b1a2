package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/mycocore/internal/client/events"
	"github.com/dmitrijs2005/mycocore/internal/client/session"
)

var errDial = errors.New("connection refused")

type fakeConn struct {
	msgs      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	failErr   error
	mu        sync.Mutex
}

func newFakeConn() *fakeConn {
	return &fakeConn{msgs: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case m := <-c.msgs:
		return m, nil
	case <-c.closed:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.failErr != nil {
			return nil, c.failErr
		}
		return nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// drop simulates the server going away.
func (c *fakeConn) drop(err error) {
	c.mu.Lock()
	c.failErr = err
	c.mu.Unlock()
	_ = c.Close()
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu    sync.Mutex
	urls  []string
	fail  bool
	conns []*fakeConn
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.fail {
		return nil, errDial
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setFail(v bool) {
	d.mu.Lock()
	d.fail = v
	d.mu.Unlock()
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type fakeTask struct {
	delay   time.Duration
	f       func()
	stopped bool
}

func (t *fakeTask) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeScheduler struct {
	mu    sync.Mutex
	tasks []*fakeTask
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTask{delay: d, f: f}
	s.tasks = append(s.tasks, t)
	return t
}

func (s *fakeScheduler) pending() *fakeTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return nil
	}
	return s.tasks[len(s.tasks)-1]
}

func (s *fakeScheduler) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.delay)
	}
	return out
}

// fireLast runs the newest task as the timer would.
func (s *fakeScheduler) fireLast() {
	t := s.pending()
	if t != nil && !t.stopped {
		t.f()
	}
}

type fakeSessions struct {
	mu   sync.Mutex
	sess *session.Session
}

func (f *fakeSessions) Current() (session.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess == nil {
		return session.Session{}, false
	}
	return *f.sess, true
}

type recorder struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recorder) Emit(_ context.Context, e events.Event) events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
	return e
}

func (r *recorder) ofKind(k events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.got {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) add(s State) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *stateLog) all() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}
