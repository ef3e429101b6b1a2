// Package services contains the application services of the mycocore client.
// This file defines the account service: login, logout and the profile
// change flows, each of which keeps the session, the PIN gate, the realtime
// link and the event log in step.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mycocore/internal/client/client"
	"github.com/dmitrijs2005/mycocore/internal/client/events"
	"github.com/dmitrijs2005/mycocore/internal/client/session"
	"github.com/dmitrijs2005/mycocore/internal/logging"
)

var ErrMissingCredentials = errors.New("username and password are required")

// AuthService defines account operations for the CLI.
//
// Contract:
//   - Login: authenticate, install a fresh (PIN-locked) session and start
//     the realtime link for the new user.
//   - Logout: tear everything down; server errors never block local logout.
//   - Change*: call the server, then update the local profile and announce
//     the change to other tabs.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*session.Session, error)
	Logout(ctx context.Context) error
	ChangeUsername(ctx context.Context, newUsername string) error
	ChangeEmail(ctx context.Context, newEmail string) error
	CancelPendingEmail(ctx context.Context) error
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	ChangePin(ctx context.Context, oldPin, newPin string) error
}

type SessionStore interface {
	Install(ctx context.Context, sess session.Session) error
	Clear(ctx context.Context) error
	Current() (session.Session, bool)
	UpdateProfile(p session.ProfilePatch) error
}

type Gate interface {
	Reset()
}

type Link interface {
	Start(ctx context.Context, userID string) error
	Stop()
	Rearm()
}

type EventLog interface {
	Load(ctx context.Context, userID string) error
	Unload()
}

type Emitter interface {
	Emit(ctx context.Context, e events.Event) events.Event
}

// Deps groups the collaborators of the account service.
type Deps struct {
	Client client.Client
	Store  SessionStore
	Gate   Gate
	Link   Link
	Log    EventLog
	Events Emitter
}

type authService struct {
	Deps
	log logging.Logger
}

func NewAuthService(d Deps, log logging.Logger) AuthService {
	if log == nil {
		log = logging.Nop()
	}
	return &authService{Deps: d, log: log.With("component", "auth")}
}

// Login authenticates against the server. A refused login leaves any
// existing session untouched. The new session always starts with the
// secondary factor unverified, whatever the server reports.
func (a *authService) Login(ctx context.Context, username, password string) (*session.Session, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	res, err := a.Client.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}
	if err := session.ValidateTokenShape(res.AccessToken); err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}
	a.log.Debug(ctx, "login accepted", "server_pin_verified", res.PinVerified)

	a.Link.Stop()
	a.Log.Unload()

	sess := session.Session{Username: username, AccessToken: res.AccessToken}
	if err := a.Store.Install(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to install session: %w", err)
	}

	profile, err := a.Client.Me(ctx)
	if err != nil {
		if cerr := a.Store.Clear(ctx); cerr != nil {
			a.log.Warn(ctx, "failed to clear session", "error", cerr)
		}
		a.Gate.Reset()
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	sess.ApplyProfile(profile)
	if err := a.Store.Install(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to install session: %w", err)
	}

	a.Gate.Reset()

	if err := a.Log.Load(ctx, sess.UserID); err != nil {
		a.log.Warn(ctx, "failed to load event log", "error", err)
	}

	a.Link.Rearm()
	if err := a.Link.Start(ctx, sess.UserID); err != nil {
		a.log.Warn(ctx, "realtime link not started", "error", err)
	}

	a.Events.Emit(ctx, events.Event{Kind: events.KindLog, Message: "Logged in as " + sess.Username})
	out := sess
	return &out, nil
}

// Logout always ends the local session; the server call is best effort.
func (a *authService) Logout(ctx context.Context) error {
	a.Link.Stop()

	if err := a.Client.Logout(ctx); err != nil {
		a.log.Warn(ctx, "server logout failed", "error", err)
	}

	a.Events.Emit(ctx, events.Event{Kind: events.KindLog, Message: "Logged out"})

	err := a.Store.Clear(ctx)
	a.Gate.Reset()
	a.Log.Unload()
	if err != nil {
		return fmt.Errorf("logout error: %w", err)
	}
	return nil
}

func (a *authService) ChangeUsername(ctx context.Context, newUsername string) error {
	sess, ok := a.Store.Current()
	if !ok {
		return session.ErrNoSession
	}
	if err := a.Client.ChangeUsername(ctx, newUsername); err != nil {
		return fmt.Errorf("change username error: %w", err)
	}
	a.profileChanged(ctx, sess.UserID, "username", newUsername, "Username changed to "+newUsername)
	return nil
}

// ChangeEmail only records the address as pending; it becomes the email
// once the user follows the verification link.
func (a *authService) ChangeEmail(ctx context.Context, newEmail string) error {
	sess, ok := a.Store.Current()
	if !ok {
		return session.ErrNoSession
	}
	if err := a.Client.ChangeEmail(ctx, newEmail); err != nil {
		return fmt.Errorf("change email error: %w", err)
	}
	a.profileChanged(ctx, sess.UserID, "pending_email", newEmail, "Verification email sent to "+newEmail)
	return nil
}

func (a *authService) CancelPendingEmail(ctx context.Context) error {
	sess, ok := a.Store.Current()
	if !ok {
		return session.ErrNoSession
	}
	if err := a.Client.CancelPendingEmail(ctx); err != nil {
		return fmt.Errorf("cancel pending email error: %w", err)
	}
	a.profileChanged(ctx, sess.UserID, "pending_email", "", "Pending email change cancelled")
	return nil
}

func (a *authService) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if _, ok := a.Store.Current(); !ok {
		return session.ErrNoSession
	}
	if err := a.Client.ChangePassword(ctx, oldPassword, newPassword); err != nil {
		return fmt.Errorf("change password error: %w", err)
	}
	a.Events.Emit(ctx, events.Event{Kind: events.KindLog, Message: "Password changed"})
	return nil
}

// ChangePin relocks the gate: the server clears its verified flag too.
func (a *authService) ChangePin(ctx context.Context, oldPin, newPin string) error {
	if _, ok := a.Store.Current(); !ok {
		return session.ErrNoSession
	}
	if err := a.Client.ChangePin(ctx, oldPin, newPin); err != nil {
		return fmt.Errorf("change pin error: %w", err)
	}
	a.Gate.Reset()
	a.Events.Emit(ctx, events.Event{Kind: events.KindLog, Message: "PIN changed. Please verify the new PIN."})
	return nil
}

func (a *authService) profileChanged(ctx context.Context, userID, field, value, msg string) {
	if patch, ok := session.PatchFor(field, value); ok {
		if err := a.Store.UpdateProfile(patch); err != nil {
			a.log.Warn(ctx, "failed to update local profile", "field", field, "error", err)
		}
	}
	a.Events.Emit(ctx, events.NewProfileChange(userID, field, value, msg))
}
