package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/treasury-tracker/internal/models"
	"github.com/treasury-tracker/internal/types"
	"github.com/treasury-tracker/internal/valuation"
)

// HoldingPoint is one company's valuation at one capture time
type HoldingPoint struct {
	SnapshotID string    `json:"snapshotId"`
	Coin       string    `json:"coin"`
	CapturedAt time.Time `json:"capturedAt"`
	Company    string    `json:"company"`
	Coins      float64   `json:"coins"`
	ValueUSD   float64   `json:"valueUsd"`
}

// HistoryRepository fans snapshot rows out into ClickHouse for time-series
// queries. The sink is optional; when disabled the dashboard history endpoint
// serves an empty series.
type HistoryRepository struct {
	db *ClickHouseDB
}

// NewHistoryRepository creates a holdings history repository
func NewHistoryRepository(db *ClickHouseDB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// RecordSnapshot inserts one history point per company row of a snapshot.
// Rows without a name column are skipped; the history table is keyed by company.
func (r *HistoryRepository) RecordSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if len(snap.Data) == 0 {
		return nil
	}

	capturedAt := snap.CapturedAt()
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	batch, err := r.db.conn.PrepareBatch(ctx, `
		INSERT INTO holdings_history (
			snapshot_id, coin, captured_at, company, coins, value_usd
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, row := range snap.Data {
		company, ok := row[types.ColumnName].(string)
		if !ok || company == "" {
			continue
		}

		err := batch.Append(
			snap.ID,
			string(snap.Coin),
			capturedAt,
			company,
			valuation.CoerceFloat(row[types.ColumnCoins]),
			valuation.CoerceFloat(row[types.ColumnValueUSD]),
		)
		if err != nil {
			return fmt.Errorf("failed to append history row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send history batch: %w", err)
	}

	return nil
}

// GetSeries returns history points for a coin tag within a time range,
// oldest first
func (r *HistoryRepository) GetSeries(ctx context.Context, coin types.CoinTag, from, to time.Time) ([]HoldingPoint, error) {
	query := `
		SELECT snapshot_id, coin, captured_at, company, coins, value_usd
		FROM holdings_history
		WHERE coin = ? AND captured_at >= ? AND captured_at <= ?
		ORDER BY captured_at ASC, company ASC
	`

	rows, err := r.db.conn.Query(ctx, query, string(coin), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings history: %w", err)
	}
	defer rows.Close()

	var points []HoldingPoint
	for rows.Next() {
		var p HoldingPoint
		if err := rows.Scan(&p.SnapshotID, &p.Coin, &p.CapturedAt, &p.Company, &p.Coins, &p.ValueUSD); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}

	return points, nil
}
