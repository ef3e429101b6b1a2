package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	isUnlocked() bool
	Login(ctx context.Context) error
	Pin(ctx context.Context) error
	Status(ctx context.Context) error
	ShowLog(ctx context.Context) error
	Search(ctx context.Context, query string) error
	Export(ctx context.Context, path string) error
	ClearLog(ctx context.Context) error
	Username(ctx context.Context) error
	Email(ctx context.Context, args []string) error
	Password(ctx context.Context) error
	ChangePin(ctx context.Context) error
	Logout(ctx context.Context) error
}

// protected commands need a session whose PIN has been verified.
var protected = map[string]bool{
	"log": true, "search": true, "export": true, "clear": true,
	"username": true, "email": true, "password": true, "changepin": true,
}

// runREPL starts a simple read–eval–print loop for the mycocore CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. The loop exits on scanner EOF
// or when the user types "exit" or "quit".
//
//	Not logged in:
//	  - help                — show available commands
//	  - login               — authenticate
//	  - exit | quit         — leave the program
//
//	Logged in, PIN not verified:
//	  - pin                 — verify the PIN
//	  - status              — show session and connection state
//	  - logout              — log out
//
//	Unlocked:
//	  - log                 — show the event log
//	  - search <text>       — filter the event log
//	  - export [file]       — write the event log as CSV
//	  - clear               — clear the event log
//	  - username            — change the username
//	  - email [cancel]      — change the email or cancel a pending change
//	  - password            — change the password
//	  - changepin           — change the PIN (relocks the session)
//
// Handlers report their own errors; the REPL only prints them.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("myco %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if protected[cmd] && !a.isUnlocked() {
			if a.isLoggedIn() {
				printlnFn("Locked. Verify your PIN with 'pin' first.")
			} else {
				printlnFn("Not logged in. Use 'login' first.")
			}
			continue
		}

		var err error
		switch cmd {
		case "help":
			switch {
			case a.isUnlocked():
				printlnFn("Available commands: status, log, search, export, clear, username, email, password, changepin, logout, exit")
			case a.isLoggedIn():
				printlnFn("Available commands: pin, status, logout, exit")
			default:
				printlnFn("Available commands: login, status, exit")
			}

		case "login":
			err = a.Login(ctx)

		case "pin":
			err = a.Pin(ctx)

		case "status":
			err = a.Status(ctx)

		case "log":
			err = a.ShowLog(ctx)

		case "search":
			if len(args) == 0 {
				printlnFn("Usage: search <text>")
				continue
			}
			err = a.Search(ctx, strings.Join(args, " "))

		case "export":
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			err = a.Export(ctx, path)

		case "clear":
			err = a.ClearLog(ctx)

		case "username":
			err = a.Username(ctx)

		case "email":
			err = a.Email(ctx, args)

		case "password":
			err = a.Password(ctx)

		case "changepin":
			err = a.ChangePin(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
