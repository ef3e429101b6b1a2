package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/mycocore/internal/client/events"
	"github.com/dmitrijs2005/mycocore/internal/client/models"
	"github.com/dmitrijs2005/mycocore/internal/client/session"
)

func (a *App) Status(ctx context.Context) error {
	sess, ok := a.store.Current()
	if !ok {
		printlnFn("Not logged in.")
		return nil
	}
	printlnFn(fmt.Sprintf("User:     %s (id %s, role %s)", sess.Username, sess.UserID, sess.Role))
	printlnFn(fmt.Sprintf("Email:    %s", sess.Profile.Email))
	if sess.Profile.PendingEmail != "" {
		printlnFn(fmt.Sprintf("Pending:  %s", sess.Profile.PendingEmail))
	}
	printlnFn(fmt.Sprintf("PIN:      %s", a.gate.State()))
	printlnFn(fmt.Sprintf("Realtime: %s", a.link.State()))
	return nil
}

func (a *App) ShowLog(ctx context.Context) error {
	printEntries(a.eventLog.Entries())
	return nil
}

func (a *App) Search(ctx context.Context, query string) error {
	printEntries(a.eventLog.Search(query))
	return nil
}

// Export writes the whole log as CSV, by default to
// mycocore_log_<username>.csv. An empty log writes nothing.
func (a *App) Export(ctx context.Context, path string) error {
	entries := a.eventLog.Entries()
	if len(entries) == 0 {
		printlnFn("Event log is empty, nothing exported.")
		return nil
	}
	if path == "" {
		path = exportName(a.store.Current())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := events.WriteCSV(f, entries); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write export file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	printlnFn(fmt.Sprintf("Exported %d entries to %s", len(entries), path))
	return nil
}

func (a *App) ClearLog(ctx context.Context) error {
	if err := a.eventLog.Clear(ctx); err != nil {
		return err
	}
	printlnFn("Event log cleared.")
	return nil
}

func exportName(sess session.Session, ok bool) string {
	name := "user"
	if ok && sess.Username != "" {
		name = sess.Username
	}
	return "mycocore_log_" + name + ".csv"
}

func printEntries(entries []models.LogEntry) {
	if len(entries) == 0 {
		printlnFn("No entries.")
		return
	}
	for _, e := range entries {
		printlnFn(fmt.Sprintf("[%s] %s: %s", e.Timestamp, e.Kind, e.Message))
	}
}
