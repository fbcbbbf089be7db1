// Package service provides the capture and dashboard orchestration logic.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/treasury-tracker/internal/config"
	"github.com/treasury-tracker/internal/logging"
	"github.com/treasury-tracker/internal/models"
	"github.com/treasury-tracker/internal/normalize"
	"github.com/treasury-tracker/internal/storage"
	"github.com/treasury-tracker/internal/types"
	"github.com/treasury-tracker/internal/valuation"
)

// TreasuryClient is the upstream API surface the capture service needs
type TreasuryClient interface {
	GetCompaniesTreasury(ctx context.Context, assetID types.AssetID) (json.RawMessage, error)
	GetSimplePrice(ctx context.Context, ids []types.AssetID, vsCurrencies []string) (map[string]map[string]float64, error)
}

// HistorySink receives per-company valuation rows for time-series storage
type HistorySink interface {
	RecordSnapshot(ctx context.Context, snap *models.Snapshot) error
}

// CaptureService runs the fetch -> normalize -> valuate -> append pipeline.
// Upstream failures are reported per asset without aborting the other assets;
// only snapshot store failures are fatal to a run.
type CaptureService struct {
	client  TreasuryClient
	store   storage.SnapshotStore
	prices  *storage.PriceCache // optional
	history HistorySink         // optional
	cfg     config.CaptureConfig

	mu       sync.Mutex
	stopChan chan struct{}
	running  bool
}

// NewCaptureService creates a capture service. prices and history may be nil
// when the Redis cache or ClickHouse sink is disabled.
func NewCaptureService(
	client TreasuryClient,
	store storage.SnapshotStore,
	prices *storage.PriceCache,
	history HistorySink,
	cfg config.CaptureConfig,
) *CaptureService {
	return &CaptureService{
		client:  client,
		store:   store,
		prices:  prices,
		history: history,
		cfg:     cfg,
	}
}

// CaptureResult summarizes one capture run
type CaptureResult struct {
	Captured []*models.Snapshot       `json:"captured"`
	Skipped  []types.AssetID          `json:"skipped,omitempty"` // assets whose payload normalized to an empty table
	Failed   map[types.AssetID]string `json:"failed,omitempty"`
}

// CaptureAsset fetches, normalizes, valuates and appends one snapshot for an
// asset. An empty normalized table skips the append and returns (nil, nil);
// that is a deliberate silent-empty policy, not a failure.
func (s *CaptureService) CaptureAsset(ctx context.Context, assetID types.AssetID) (*models.Snapshot, error) {
	logger := logging.FromContext(ctx).WithField("asset", string(assetID))

	payload, err := s.client.GetCompaniesTreasury(ctx, assetID)
	if err != nil {
		return nil, err
	}

	priceUSD, fxRates, err := s.fetchRates(ctx, assetID)
	if err != nil {
		return nil, err
	}

	rows, err := normalize.Normalize(payload)
	if err != nil {
		return nil, &types.UpstreamError{Endpoint: fmt.Sprintf("companies/public_treasury/%s", assetID), Cause: err}
	}
	if len(rows) == 0 {
		logger.Warn("Normalized payload is empty, skipping snapshot")
		return nil, nil
	}

	rows = valuation.Valuate(rows, priceUSD, fxRates, s.cfg.DisplayCurrency)
	rows = valuation.ComputePnl(rows, s.cfg.AssumedCostPerCoinUSD)

	snap, err := s.store.Append(ctx, rows, types.CoinTag(assetID))
	if err != nil {
		return nil, err
	}

	s.recordHistory(ctx, snap)

	logger.WithFields(map[string]interface{}{
		"snapshotId": snap.ID,
		"companies":  len(snap.Data),
		"priceUsd":   priceUSD,
	}).Info("Snapshot captured")

	return snap, nil
}

// CaptureAll captures every configured asset. A per-asset upstream failure is
// recorded and the run continues; a store failure aborts immediately since no
// further snapshot can be trusted.
func (s *CaptureService) CaptureAll(ctx context.Context) (*CaptureResult, error) {
	logger := logging.FromContext(ctx)

	result := &CaptureResult{
		Failed: make(map[types.AssetID]string),
	}

	for _, assetID := range s.cfg.Assets {
		snap, err := s.CaptureAsset(ctx, assetID)
		if err != nil {
			if types.IsStoreCorrupt(err) {
				return nil, err
			}
			if !types.IsUpstreamError(err) && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.WithError(err).WithField("asset", string(assetID)).Error("Capture failed, skipping asset")
			result.Failed[assetID] = err.Error()
			continue
		}
		if snap == nil {
			result.Skipped = append(result.Skipped, assetID)
			continue
		}
		result.Captured = append(result.Captured, snap)
	}

	logger.WithFields(map[string]interface{}{
		"captured": len(result.Captured),
		"failed":   len(result.Failed),
	}).Info("Capture run complete")

	return result, nil
}

// CaptureMerged captures BTC and ETH together, outer-joined by company name,
// and appends the combined table under the synthetic merged tag. Companies
// missing on one side are zero-filled.
func (s *CaptureService) CaptureMerged(ctx context.Context) (*models.Snapshot, error) {
	btcRows, err := s.fetchValuated(ctx, types.AssetBitcoin)
	if err != nil {
		return nil, err
	}

	ethRows, err := s.fetchValuated(ctx, types.AssetEthereum)
	if err != nil {
		return nil, err
	}

	merged := MergeByName(btcRows, ethRows)

	snap, err := s.store.Append(ctx, merged, types.TagMergedBTCETH)
	if err != nil {
		return nil, err
	}

	s.recordHistory(ctx, snap)

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"snapshotId": snap.ID,
		"companies":  len(snap.Data),
	}).Info("Merged snapshot captured")

	return snap, nil
}

// fetchValuated runs the pipeline up to valuation for one asset (USD only)
func (s *CaptureService) fetchValuated(ctx context.Context, assetID types.AssetID) ([]types.Row, error) {
	payload, err := s.client.GetCompaniesTreasury(ctx, assetID)
	if err != nil {
		return nil, err
	}

	priceUSD, _, err := s.fetchRates(ctx, assetID)
	if err != nil {
		return nil, err
	}

	rows, err := normalize.Normalize(payload)
	if err != nil {
		return nil, &types.UpstreamError{Endpoint: fmt.Sprintf("companies/public_treasury/%s", assetID), Cause: err}
	}

	return valuation.Valuate(rows, priceUSD, map[string]float64{"usd": 1}, "usd"), nil
}

// MergeByName outer-joins two valuated tables by company name. Left rows keep
// their order, right-only rows follow in their own order.
func MergeByName(btcRows, ethRows []types.Row) []types.Row {
	merged := make([]types.Row, 0, len(btcRows)+len(ethRows))
	byName := make(map[string]types.Row)

	rowName := func(row types.Row) string {
		name, _ := row[types.ColumnName].(string)
		return name
	}

	for _, row := range btcRows {
		out := types.Row{
			types.ColumnName:  rowName(row),
			"btc_holdings":    valuation.CoerceFloat(row[types.ColumnCoins]),
			"btc_value_usd":   valuation.CoerceFloat(row[types.ColumnValueUSD]),
			"eth_holdings":    0.0,
			"eth_value_usd":   0.0,
			"total_value_usd": valuation.CoerceFloat(row[types.ColumnValueUSD]),
		}
		merged = append(merged, out)
		if name := rowName(row); name != "" {
			byName[name] = out
		}
	}

	for _, row := range ethRows {
		name := rowName(row)
		ethHoldings := valuation.CoerceFloat(row[types.ColumnCoins])
		ethValue := valuation.CoerceFloat(row[types.ColumnValueUSD])

		if name != "" {
			if existing, ok := byName[name]; ok {
				existing["eth_holdings"] = ethHoldings
				existing["eth_value_usd"] = ethValue
				existing["total_value_usd"] = valuation.CoerceFloat(existing["btc_value_usd"]) + ethValue
				continue
			}
		}

		merged = append(merged, types.Row{
			types.ColumnName:  name,
			"btc_holdings":    0.0,
			"btc_value_usd":   0.0,
			"eth_holdings":    ethHoldings,
			"eth_value_usd":   ethValue,
			"total_value_usd": ethValue,
		})
	}

	return merged
}

// fetchRates returns the asset's USD price and the FX rate table for the
// configured display currency. Rates go through the price cache when one is
// configured. A missing USD price degrades to zero, mirroring the valuation
// engine's lenient policy.
func (s *CaptureService) fetchRates(ctx context.Context, assetID types.AssetID) (float64, map[string]float64, error) {
	fiat := s.cfg.DisplayCurrency
	vsCurrencies := []string{"usd"}
	if fiat != "" && fiat != "usd" {
		vsCurrencies = append(vsCurrencies, fiat)
	}

	rates, ok := s.prices.Get(ctx, assetID, vsCurrencies)
	if !ok {
		resp, err := s.client.GetSimplePrice(ctx, []types.AssetID{assetID}, vsCurrencies)
		if err != nil {
			return 0, nil, err
		}
		rates = resp[string(assetID)]
		if rates != nil {
			s.prices.Put(ctx, assetID, vsCurrencies, rates)
		}
	}

	priceUSD := rates["usd"]

	fxRates := map[string]float64{"usd": 1}
	if fiat != "" && fiat != "usd" {
		if fiatPrice, ok := rates[fiat]; ok && priceUSD != 0 {
			// The upstream quotes the coin in each currency; the cross rate is
			// the ratio of the two quotes.
			fxRates[fiat] = fiatPrice / priceUSD
		}
	}

	return priceUSD, fxRates, nil
}

// recordHistory fans the snapshot out to the history sink. Sink failures are
// logged and swallowed; the snapshot is already durable in the store.
func (s *CaptureService) recordHistory(ctx context.Context, snap *models.Snapshot) {
	if s.history == nil {
		return
	}
	if err := s.history.RecordSnapshot(ctx, snap); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("snapshotId", snap.ID).Warn("History sink write failed")
	}
}

// Start begins periodic captures at the configured interval
func (s *CaptureService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("capture scheduler is already running")
	}
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("capture scheduler requires a positive interval")
	}

	s.stopChan = make(chan struct{})
	s.running = true

	logger := logging.FromContext(ctx)
	logger.WithField("interval", s.cfg.Interval.String()).Info("Capture scheduler started")

	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.CaptureAll(ctx); err != nil {
					logger.WithError(err).Error("Scheduled capture failed")
				}
			case <-s.stopChan:
				logger.Info("Capture scheduler stopped")
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop gracefully stops the capture scheduler
func (s *CaptureService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("capture scheduler is not running")
	}

	close(s.stopChan)
	s.running = false
	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *CaptureService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
