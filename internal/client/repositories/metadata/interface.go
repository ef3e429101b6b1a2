// Package metadata stores small named values (the access-token slot and
// similar) in the local SQLite database.
package metadata

import (
	"context"
)

// Repository is a durable key/value slot store. Get returns (nil, nil) for
// an absent key; Set is an upsert and Delete is idempotent, so concurrent
// writers from several client processes resolve as last-writer-wins.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
