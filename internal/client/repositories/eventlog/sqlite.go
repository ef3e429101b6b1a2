package eventlog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/mycocore/internal/client/models"
	"github.com/dmitrijs2005/mycocore/internal/dbx"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Replace(ctx context.Context, userID string, entries []models.LogEntry) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM event_log WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to clear event log: %w", err)
		}

		for i, e := range entries {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO event_log (user_id, seq, id, kind, message, timestamp)
				VALUES (?, ?, ?, ?, ?, ?)
			`, userID, i, e.ID, e.Kind, e.Message, e.Timestamp)
			if err != nil {
				return fmt.Errorf("failed to insert event log entry: %w", err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) List(ctx context.Context, userID string) ([]models.LogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, message, timestamp FROM event_log
		WHERE user_id = ? ORDER BY seq
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select event log: %w", err)
	}
	defer rows.Close()

	var result []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event log row: %w", err)
		}
		result = append(result, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM event_log WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear event log: %w", err)
	}
	return nil
}
