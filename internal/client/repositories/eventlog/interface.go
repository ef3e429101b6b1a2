package eventlog

import (
	"context"

	"github.com/dmitrijs2005/mycocore/internal/client/models"
)

// Repository stores ordered log entries keyed by user.
type Repository interface {
	// Replace overwrites the stored log of userID with entries, in order.
	Replace(ctx context.Context, userID string, entries []models.LogEntry) error

	// List returns the stored log of userID in insertion order.
	List(ctx context.Context, userID string) ([]models.LogEntry, error)

	// Clear removes the stored log of userID.
	Clear(ctx context.Context, userID string) error
}
