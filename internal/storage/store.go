// Package storage provides snapshot store backends and supporting repositories.
package storage

import (
	"context"

	"github.com/treasury-tracker/internal/models"
	"github.com/treasury-tracker/internal/types"
)

// SnapshotStore is the append-only snapshot history. No update or delete
// operation exists; the history grows with every capture and "latest" is
// decided by insertion order, not by the recorded timestamp.
type SnapshotStore interface {
	// Append wraps rows with the current UTC timestamp and coin tag and
	// appends the resulting snapshot, returning it.
	Append(ctx context.Context, rows []types.Row, coin types.CoinTag) (*models.Snapshot, error)

	// LoadAll returns the full persisted sequence in append order. An empty
	// store yields an empty slice. A store that exists but cannot be decoded
	// fails with *types.StoreCorruptError.
	LoadAll(ctx context.Context) ([]*models.Snapshot, error)

	// Latest returns the last-appended snapshot whose coin matches, or the
	// last-appended snapshot overall when coin is empty. A miss returns
	// (nil, nil).
	Latest(ctx context.Context, coin types.CoinTag) (*models.Snapshot, error)

	// Close releases backend resources.
	Close() error
}
