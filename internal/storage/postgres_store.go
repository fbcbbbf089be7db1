package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/treasury-tracker/internal/models"
	"github.com/treasury-tracker/internal/types"
)

// PostgresStore is the Postgres-backed snapshot store. Every append inserts
// one row; a bigserial insertion id is the recency key, so Latest preserves
// the insertion-order semantic even when snapshot timestamps are not
// chronological. Rows are never updated or deleted.
type PostgresStore struct {
	db *PostgresDB
}

// NewPostgresStore creates a Postgres-backed snapshot store
func NewPostgresStore(db *PostgresDB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append wraps rows into a snapshot and inserts it
func (s *PostgresStore) Append(ctx context.Context, rows []types.Row, coin types.CoinTag) (*models.Snapshot, error) {
	snap := models.NewSnapshot(rows, coin)

	dataJSON, err := json.Marshal(snap.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot data: %w", err)
	}

	query := `
		INSERT INTO snapshots (snapshot_id, coin, captured_at, data)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := s.db.pool.Exec(ctx, query, snap.ID, string(snap.Coin), snap.Timestamp, dataJSON); err != nil {
		return nil, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return snap, nil
}

// LoadAll returns the full history in insertion order
func (s *PostgresStore) LoadAll(ctx context.Context) ([]*models.Snapshot, error) {
	query := `
		SELECT snapshot_id, coin, captured_at, data
		FROM snapshots
		ORDER BY id ASC
	`

	rows, err := s.db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []*models.Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}

	return snapshots, nil
}

// Latest returns the last-inserted snapshot for a coin tag, or the
// last-inserted snapshot overall when the tag is empty
func (s *PostgresStore) Latest(ctx context.Context, coin types.CoinTag) (*models.Snapshot, error) {
	query := `
		SELECT snapshot_id, coin, captured_at, data
		FROM snapshots
		WHERE $1 = '' OR coin = $1
		ORDER BY id DESC
		LIMIT 1
	`

	row := s.db.pool.QueryRow(ctx, query, string(coin))

	snap, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// Close is a no-op; the pool is owned by the caller
func (s *PostgresStore) Close() error {
	return nil
}

// scanSnapshot decodes one snapshot row. An undecodable data payload is a
// corrupt store, which is fatal.
func scanSnapshot(row pgx.Row) (*models.Snapshot, error) {
	var snap models.Snapshot
	var coin string
	var dataJSON []byte

	if err := row.Scan(&snap.ID, &coin, &snap.Timestamp, &dataJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
	}

	snap.Coin = types.CoinTag(coin)

	if err := json.Unmarshal(dataJSON, &snap.Data); err != nil {
		return nil, &types.StoreCorruptError{Source: "snapshots table", Cause: err}
	}

	return &snap, nil
}

// compile-time interface checks
var (
	_ SnapshotStore = (*PostgresStore)(nil)
	_ SnapshotStore = (*FileStore)(nil)
)
