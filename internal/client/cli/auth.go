package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mycocore/internal/client/gate"
)

// getSimpleText and getSecret are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getSecret = GetSecret

// Login prompts for credentials and starts a fresh, PIN-locked session.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	password, err := getSecret(a.out, "Enter password")
	if err != nil {
		return err
	}

	sess, err := a.auth.Login(ctx, username, password)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Logged in as %s. Enter your PIN with 'pin'.", sess.Username))
	return nil
}

// Pin asks for the PIN and submits it to the gate. A refused PIN may be
// retried any number of times.
func (a *App) Pin(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errors.New("not logged in")
	}
	if a.gate.State() == gate.Unlocked {
		printlnFn("Already unlocked.")
		return nil
	}
	code, err := getSecret(a.out, fmt.Sprintf("Enter %d-digit PIN", a.config.PinLength))
	if err != nil {
		return err
	}
	if err := a.gate.Submit(ctx, code); err != nil {
		return err
	}
	printlnFn("Unlocked.")
	return nil
}

// Logout always ends the local session, whatever the server says.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	printlnFn("Logged out.")
	return nil
}

func (a *App) Username(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter new username", a.out)
	if err != nil {
		return err
	}
	return a.auth.ChangeUsername(ctx, name)
}

// Email starts an email change, or cancels the pending one with
// "email cancel".
func (a *App) Email(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "cancel" {
		return a.auth.CancelPendingEmail(ctx)
	}
	addr, err := getSimpleText(a.reader, "Enter new email", a.out)
	if err != nil {
		return err
	}
	return a.auth.ChangeEmail(ctx, addr)
}

func (a *App) Password(ctx context.Context) error {
	oldPassword, err := getSecret(a.out, "Enter current password")
	if err != nil {
		return err
	}
	newPassword, err := getSecret(a.out, "Enter new password")
	if err != nil {
		return err
	}
	return a.auth.ChangePassword(ctx, oldPassword, newPassword)
}

func (a *App) ChangePin(ctx context.Context) error {
	oldPin, err := getSecret(a.out, "Enter current PIN")
	if err != nil {
		return err
	}
	newPin, err := getSecret(a.out, "Enter new PIN")
	if err != nil {
		return err
	}
	if err := a.auth.ChangePin(ctx, oldPin, newPin); err != nil {
		return err
	}
	printlnFn("PIN changed. Verify the new PIN with 'pin'.")
	return nil
}
