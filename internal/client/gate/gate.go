// Package gate implements the PIN check that unlocks a session after login.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/mycocore/internal/client/client"
	"github.com/dmitrijs2005/mycocore/internal/client/events"
	"github.com/dmitrijs2005/mycocore/internal/client/session"
	"github.com/dmitrijs2005/mycocore/internal/logging"
)

const DefaultPinLength = 4

var (
	ErrInvalidCode = errors.New("invalid PIN format")
	ErrRejected    = errors.New("invalid PIN")
	ErrBusy        = errors.New("PIN verification already in progress")
	ErrInterrupted = errors.New("gate was reset during verification")
)

type State int

const (
	Locked State = iota
	Verifying
	Unlocked
)

func (s State) String() string {
	switch s {
	case Locked:
		return "locked"
	case Verifying:
		return "verifying"
	case Unlocked:
		return "unlocked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Verifier interface {
	VerifyPin(ctx context.Context, pin string) (bool, error)
}

type Store interface {
	Current() (session.Session, bool)
	SetSecondaryFactorVerified(v bool)
}

type Emitter interface {
	Emit(ctx context.Context, e events.Event) events.Event
}

type Gate struct {
	length   int
	verifier Verifier
	store    Store
	emit     Emitter
	log      logging.Logger

	mu    sync.Mutex
	state State
	input string
	gen   uint64
}

func New(length int, verifier Verifier, store Store, emit Emitter, log logging.Logger) *Gate {
	if length <= 0 {
		length = DefaultPinLength
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Gate{
		length:   length,
		verifier: verifier,
		store:    store,
		emit:     emit,
		log:      log.With("component", "gate"),
	}
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Input returns the code being verified, empty after a rejection.
func (g *Gate) Input() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.input
}

// Reset relocks the gate and clears the session's verified flag.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.gen++
	g.state = Locked
	g.input = ""
	g.mu.Unlock()

	g.store.SetSecondaryFactorVerified(false)
}

// Submit verifies code with the server. A code of the wrong length or with
// non-digits fails with ErrInvalidCode before any network call. A refused
// code leaves the gate Locked and may be retried without limit.
func (g *Gate) Submit(ctx context.Context, code string) error {
	if !g.wellFormed(code) {
		return fmt.Errorf("%w: PIN must be %d digits", ErrInvalidCode, g.length)
	}

	if _, ok := g.store.Current(); !ok {
		return session.ErrNoSession
	}

	g.mu.Lock()
	switch g.state {
	case Unlocked:
		g.mu.Unlock()
		return nil
	case Verifying:
		g.mu.Unlock()
		return ErrBusy
	}
	g.state = Verifying
	g.input = code
	gen := g.gen
	g.mu.Unlock()

	ok, err := g.verifier.VerifyPin(ctx, code)

	g.mu.Lock()
	if gen != g.gen {
		g.mu.Unlock()
		return ErrInterrupted
	}
	if err != nil || !ok {
		g.state = Locked
		g.input = ""
		g.mu.Unlock()
		return g.rejected(ctx, err)
	}
	g.state = Unlocked
	g.mu.Unlock()

	g.store.SetSecondaryFactorVerified(true)
	g.log.Info(ctx, "secondary factor verified")
	g.emit.Emit(ctx, events.Event{Kind: events.KindAuthSuccess, Message: "PIN verified. Welcome back."})
	return nil
}

func (g *Gate) rejected(ctx context.Context, cause error) error {
	var out error
	switch {
	case cause == nil:
		out = ErrRejected
	case client.KindOf(cause) == client.KindNetwork:
		out = fmt.Errorf("PIN verification unavailable: %w", cause)
	default:
		out = fmt.Errorf("%w: %w", ErrRejected, cause)
	}
	g.log.Warn(ctx, "secondary factor rejected", "error", out)
	g.emit.Emit(ctx, events.Event{Kind: events.KindAuthError, Message: "PIN verification failed: " + out.Error()})
	return out
}

func (g *Gate) wellFormed(code string) bool {
	if len(code) != g.length {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
