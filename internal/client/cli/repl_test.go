package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	loggedIn bool
	unlocked bool

	calls []string
	args  []string
	err   error
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) isUnlocked() bool { return f.unlocked }

func (f *fakeExec) record(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeExec) Login(context.Context) error {
	f.loggedIn = true
	return f.record("login")
}
func (f *fakeExec) Pin(context.Context) error {
	f.unlocked = true
	return f.record("pin")
}
func (f *fakeExec) Status(context.Context) error  { return f.record("status") }
func (f *fakeExec) ShowLog(context.Context) error { return f.record("log") }
func (f *fakeExec) Search(_ context.Context, q string) error {
	f.args = append(f.args, q)
	return f.record("search")
}
func (f *fakeExec) Export(_ context.Context, path string) error {
	f.args = append(f.args, path)
	return f.record("export")
}
func (f *fakeExec) ClearLog(context.Context) error { return f.record("clear") }
func (f *fakeExec) Username(context.Context) error { return f.record("username") }
func (f *fakeExec) Email(_ context.Context, args []string) error {
	f.args = append(f.args, strings.Join(args, " "))
	return f.record("email")
}
func (f *fakeExec) Password(context.Context) error  { return f.record("password") }
func (f *fakeExec) ChangePin(context.Context) error { return f.record("changepin") }
func (f *fakeExec) Logout(context.Context) error {
	f.loggedIn, f.unlocked = false, false
	return f.record("logout")
}

func capturePrint(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func run(exec execIface, lines ...string) {
	sc := bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n")))
	runREPL(context.Background(), exec, func() string { return "status" }, sc)
}

func TestRunREPL_LoginFlowAndCommands(t *testing.T) {
	capturePrint(t)
	exec := &fakeExec{}

	run(exec,
		"help",
		"login",
		"pin",
		"log",
		"search spore   count",
		"export out.csv",
		"export",
		"clear",
		"username",
		"email",
		"email cancel",
		"password",
		"changepin",
		"status",
		"logout",
		"exit",
	)

	require.Equal(t, []string{
		"login", "pin", "log", "search", "export", "export", "clear", "username",
		"email", "email", "password", "changepin", "status", "logout",
	}, exec.calls)
	require.Equal(t, []string{"spore count", "out.csv", "", "", "cancel"}, exec.args)
}

func TestRunREPL_ProtectedCommandsNeedUnlock(t *testing.T) {
	out := capturePrint(t)

	exec := &fakeExec{}
	run(exec, "log", "username", "exit")
	require.Empty(t, exec.calls)
	require.Contains(t, *out, "Not logged in. Use 'login' first.")

	*out = nil
	exec = &fakeExec{loggedIn: true}
	run(exec, "export x.csv", "changepin", "quit")
	require.Empty(t, exec.calls)
	require.Contains(t, *out, "Locked. Verify your PIN with 'pin' first.")
}

func TestRunREPL_HelpDependsOnState(t *testing.T) {
	out := capturePrint(t)

	run(&fakeExec{}, "help", "exit")
	require.Contains(t, *out, "Available commands: login, status, exit")

	*out = nil
	run(&fakeExec{loggedIn: true}, "help", "exit")
	require.Contains(t, *out, "Available commands: pin, status, logout, exit")

	*out = nil
	run(&fakeExec{loggedIn: true, unlocked: true}, "help", "exit")
	require.Contains(t, (*out)[1], "changepin")
}

func TestRunREPL_UsageErrorsAndUnknown(t *testing.T) {
	out := capturePrint(t)
	exec := &fakeExec{loggedIn: true, unlocked: true, err: errors.New("server said no")}

	run(exec, "", "search", "frobnicate", "username")

	require.Equal(t, []string{"username"}, exec.calls)
	require.Contains(t, *out, "Usage: search <text>")
	require.Contains(t, *out, "Unknown command: frobnicate")
	require.Contains(t, *out, "Error: server said no")
}

func TestRunREPL_StopsOnEOF(t *testing.T) {
	out := capturePrint(t)
	run(&fakeExec{}, "status")
	require.Equal(t, "myco status > ", (*out)[0])
	require.NotContains(t, *out, "Bye!")
}
