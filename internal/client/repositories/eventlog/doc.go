// Package eventlog persists the per-user display log of system events.
//
// The log is small (bounded by the in-memory buffer that owns it) and is
// always written as a whole: Replace swaps the stored rows of one user inside
// a single transaction, so a crash never leaves a half-written log behind.
//
//	repo := eventlog.NewSQLiteRepository(db)
//	_ = repo.Replace(ctx, userID, entries)
//	entries, _ := repo.List(ctx, userID)
package eventlog
