// Package refresh exchanges the refresh credential held in the API client's
// cookie jar for a new access token.
package refresh

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/mycocore/internal/client/client"
	"github.com/dmitrijs2005/mycocore/internal/client/events"
	"github.com/dmitrijs2005/mycocore/internal/client/session"
	"github.com/dmitrijs2005/mycocore/internal/logging"
)

var ErrAuthExpired = errors.New("session expired, please log in again")

type API interface {
	Refresh(ctx context.Context) (string, error)
	Me(ctx context.Context) (*client.Profile, error)
	HasRefreshCredential() bool
}

type Store interface {
	Restore(ctx context.Context) (*session.Session, error)
	Install(ctx context.Context, s session.Session) error
	Clear(ctx context.Context) error
	Current() (session.Session, bool)
}

type Emitter interface {
	Emit(ctx context.Context, e events.Event) events.Event
}

type Coordinator struct {
	api   API
	store Store
	emit  Emitter
	log   logging.Logger

	group   singleflight.Group
	expired func(ctx context.Context)
}

func New(api API, store Store, emit Emitter, log logging.Logger) *Coordinator {
	if log == nil {
		log = logging.Nop()
	}
	return &Coordinator{api: api, store: store, emit: emit, log: log.With("component", "refresh")}
}

// OnExpired registers fn to run after a failed refresh has cleared the
// store. It must be called before the coordinator is used.
func (c *Coordinator) OnExpired(fn func(ctx context.Context)) {
	c.expired = fn
}

// Hook adapts Refresh to the API client's 401 hook.
func (c *Coordinator) Hook() client.UnauthorizedHook {
	return func(ctx context.Context) error {
		_, err := c.Refresh(ctx)
		return err
	}
}

// Refresh obtains a new access token and the matching profile. Concurrent
// callers share one attempt. On failure the store is cleared and the error
// wraps ErrAuthExpired.
func (c *Coordinator) Refresh(ctx context.Context) (*session.Session, error) {
	v, err, shared := c.group.Do("refresh", func() (any, error) {
		return c.refresh(client.WithoutRetry(ctx))
	})
	if shared {
		c.log.Debug(ctx, "joined in-flight refresh")
	}
	if err != nil {
		return nil, err
	}
	s := v.(session.Session)
	return &s, nil
}

func (c *Coordinator) refresh(ctx context.Context) (session.Session, error) {
	prev, hadPrev := c.store.Current()

	token, err := c.api.Refresh(ctx)
	if err != nil {
		return session.Session{}, c.fail(ctx, err)
	}

	next := session.Session{AccessToken: token}
	if hadPrev {
		next = prev
		next.AccessToken = token
	}
	if err := c.store.Install(ctx, next); err != nil {
		return session.Session{}, c.fail(ctx, err)
	}

	profile, err := c.api.Me(ctx)
	if err != nil {
		return session.Session{}, c.fail(ctx, err)
	}
	next.ApplyProfile(profile)
	// the second factor survives a refresh of the same principal only
	next.SecondaryFactorVerified = hadPrev && prev.SecondaryFactorVerified && prev.UserID == next.UserID

	if err := c.store.Install(ctx, next); err != nil {
		return session.Session{}, c.fail(ctx, err)
	}

	c.log.Info(ctx, "access token refreshed", "user_id", next.UserID)
	return next, nil
}

func (c *Coordinator) fail(ctx context.Context, cause error) error {
	c.log.Warn(ctx, "refresh failed, clearing session", "error", cause)
	if err := c.store.Clear(ctx); err != nil {
		c.log.Error(ctx, "failed to clear session", "error", err)
	}
	c.emit.Emit(ctx, events.Event{Kind: events.KindAuthError, Message: "Session expired. Please log in again."})
	if c.expired != nil {
		c.expired(ctx)
	}
	return fmt.Errorf("%w: %w", ErrAuthExpired, cause)
}

// Bootstrap restores the session at startup: a persisted token is installed
// and completed with the profile, otherwise a refresh credential is spent.
// It returns nil when the user has to log in.
func (c *Coordinator) Bootstrap(ctx context.Context) (*session.Session, error) {
	restored, err := c.store.Restore(ctx)
	if err != nil {
		c.log.Warn(ctx, "token slot unreadable", "error", err)
		restored = nil
	}

	if restored == nil {
		if c.api.HasRefreshCredential() {
			return c.Refresh(ctx)
		}
		return nil, nil
	}

	if err := c.store.Install(ctx, *restored); err != nil {
		return nil, err
	}

	profile, err := c.api.Me(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrAuthExpired):
		return nil, err
	case errors.Is(err, client.ErrUnauthorized):
		// the client's hook already spent the refresh credential
		return nil, c.fail(ctx, err)
	default:
		c.log.Warn(ctx, "profile unavailable, keeping restored session", "error", err)
		c.emit.Emit(ctx, events.Event{Kind: events.KindWarning, Message: "Profile unavailable: " + err.Error()})
		cur, _ := c.store.Current()
		return &cur, nil
	}

	cur, ok := c.store.Current()
	if !ok {
		return nil, nil
	}
	cur.ApplyProfile(profile)
	if err := c.store.Install(ctx, cur); err != nil {
		return nil, err
	}
	return &cur, nil
}
