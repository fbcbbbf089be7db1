// Package models provides the persisted data structures of the treasury tracker.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/treasury-tracker/internal/types"
)

// Snapshot is one immutable, timestamped, coin-tagged capture of a valuation
// table. Snapshots are only ever appended; recency is defined by insertion
// order in the store, not by the Timestamp field, and the two can diverge
// when writers append out of chronological order (e.g. backfills).
type Snapshot struct {
	ID        string        `json:"id"`
	Timestamp string        `json:"timestamp"` // UTC ISO-8601 capture time
	Coin      types.CoinTag `json:"coin"`
	Data      []types.Row   `json:"data"`
}

// NewSnapshot wraps a valuation table with the current UTC timestamp and a
// coin tag, assigning a fresh ID.
func NewSnapshot(rows []types.Row, coin types.CoinTag) *Snapshot {
	return &Snapshot{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Coin:      coin,
		Data:      rows,
	}
}

// CapturedAt parses the snapshot timestamp. The zero time is returned for
// timestamps written by foreign tools that do not conform to RFC 3339.
func (s *Snapshot) CapturedAt() time.Time {
	t, err := time.Parse(time.RFC3339, s.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}
