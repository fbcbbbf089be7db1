package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/treasury-tracker/internal/storage"
	"github.com/treasury-tracker/internal/types"
	"github.com/treasury-tracker/internal/valuation"
)

// DefaultTopHolders is how many companies the dashboard ranks when the caller
// does not ask for a specific count
const DefaultTopHolders = 10

// Circulating supply caps used for the supply-share panel. ETH has no hard
// cap; 120M approximates the circulating supply.
var defaultCirculatingSupply = map[types.CoinTag]float64{
	types.CoinTag(types.AssetBitcoin):  21_000_000,
	types.CoinTag(types.AssetEthereum): 120_000_000,
}

// HistorySource is the time-series query surface the dashboard needs
type HistorySource interface {
	GetSeries(ctx context.Context, coin types.CoinTag, from, to time.Time) ([]storage.HoldingPoint, error)
}

// DashboardService answers read-side queries over captured snapshots
type DashboardService struct {
	store   storage.SnapshotStore
	history HistorySource // optional
}

// NewDashboardService creates a dashboard service. history may be nil when
// the ClickHouse sink is disabled.
func NewDashboardService(store storage.SnapshotStore, history HistorySource) *DashboardService {
	return &DashboardService{store: store, history: history}
}

// KPISummary holds the headline numbers for one asset
type KPISummary struct {
	TotalHoldings  float64 `json:"totalHoldings"`
	TotalValueUSD  float64 `json:"totalValueUsd"`
	AverageHolding float64 `json:"averageHolding"`
	Companies      int     `json:"companies"`
}

// SupplyShare splits the circulating supply between tracked companies and
// everyone else
type SupplyShare struct {
	CompanyHoldings   float64 `json:"companyHoldings"`
	RestOfSupply      float64 `json:"restOfSupply"`
	CirculatingSupply float64 `json:"circulatingSupply"`
	SharePct          float64 `json:"sharePct"`
}

// TopHolder is one entry in the largest-holders ranking
type TopHolder struct {
	Name     string  `json:"name"`
	Coins    float64 `json:"coins"`
	ValueUSD float64 `json:"valueUsd"`
}

// Dashboard is the full read model for one asset's latest snapshot
type Dashboard struct {
	Coin        types.CoinTag `json:"coin"`
	SnapshotID  string        `json:"snapshotId"`
	Timestamp   string        `json:"timestamp"`
	KPIs        KPISummary    `json:"kpis"`
	SupplyShare *SupplyShare  `json:"supplyShare,omitempty"`
	TopHolders  []TopHolder   `json:"topHolders"`
}

// Projection is a what-if repricing of the latest snapshot
type Projection struct {
	Coin              types.CoinTag      `json:"coin"`
	SnapshotID        string             `json:"snapshotId"`
	Timestamp         string             `json:"timestamp"`
	Factor            float64            `json:"factor"`
	ImpliedPriceUSD   float64            `json:"impliedPriceUsd"`
	ProjectedPriceUSD float64            `json:"projectedPriceUsd"`
	TotalValueUSD     float64            `json:"totalValueUsd"`
	ProjectedValueUSD float64            `json:"projectedValueUsd"`
	Companies         []ProjectedHolding `json:"companies"`
}

// ProjectedHolding is one company's current and projected valuation
type ProjectedHolding struct {
	Name              string  `json:"name"`
	Coins             float64 `json:"coins"`
	ValueUSD          float64 `json:"valueUsd"`
	ProjectedValueUSD float64 `json:"projectedValueUsd"`
}

// ListSnapshots returns every stored snapshot in insertion order
func (s *DashboardService) ListSnapshots(ctx context.Context) ([]*SnapshotSummary, error) {
	snaps, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]*SnapshotSummary, 0, len(snaps))
	for _, snap := range snaps {
		summaries = append(summaries, &SnapshotSummary{
			ID:        snap.ID,
			Timestamp: snap.Timestamp,
			Coin:      snap.Coin,
			Companies: len(snap.Data),
		})
	}
	return summaries, nil
}

// SnapshotSummary is a snapshot without its row data, for listings
type SnapshotSummary struct {
	ID        string        `json:"id"`
	Timestamp string        `json:"timestamp"`
	Coin      types.CoinTag `json:"coin"`
	Companies int           `json:"companies"`
}

// LatestSnapshot returns the most recently appended snapshot for a coin tag.
// An empty tag means the overall latest. Returns a NOT_FOUND service error
// when nothing matches.
func (s *DashboardService) LatestSnapshot(ctx context.Context, coin types.CoinTag) (*SnapshotView, error) {
	snap, err := s.store.Latest(ctx, coin)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, types.NewServiceError("SNAPSHOT_NOT_FOUND", "no snapshot found for the requested coin")
	}
	return &SnapshotView{
		ID:        snap.ID,
		Timestamp: snap.Timestamp,
		Coin:      snap.Coin,
		Data:      snap.Data,
	}, nil
}

// SnapshotView is a full snapshot as served over the API
type SnapshotView struct {
	ID        string        `json:"id"`
	Timestamp string        `json:"timestamp"`
	Coin      types.CoinTag `json:"coin"`
	Data      []types.Row   `json:"data"`
}

// GetDashboard builds the dashboard read model from the latest snapshot of a
// coin. topN <= 0 falls back to DefaultTopHolders.
func (s *DashboardService) GetDashboard(ctx context.Context, coin types.CoinTag, topN int) (*Dashboard, error) {
	snap, err := s.store.Latest(ctx, coin)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, types.NewServiceError("SNAPSHOT_NOT_FOUND", "no snapshot found for the requested coin")
	}

	if topN <= 0 {
		topN = DefaultTopHolders
	}

	kpis := computeKPIs(snap.Data)

	dashboard := &Dashboard{
		Coin:       snap.Coin,
		SnapshotID: snap.ID,
		Timestamp:  snap.Timestamp,
		KPIs:       kpis,
		TopHolders: topHolders(snap.Data, topN),
	}

	if supply, ok := defaultCirculatingSupply[snap.Coin]; ok && supply > 0 {
		rest := supply - kpis.TotalHoldings
		if rest < 0 {
			rest = 0
		}
		dashboard.SupplyShare = &SupplyShare{
			CompanyHoldings:   kpis.TotalHoldings,
			RestOfSupply:      rest,
			CirculatingSupply: supply,
			SharePct:          kpis.TotalHoldings / supply * 100,
		}
	}

	return dashboard, nil
}

// GetProjection reprices the latest snapshot at factor times the implied
// price. The implied price is total value over total coins; a zero-coin
// snapshot uses a denominator of one so the projection degrades to zeros
// instead of dividing by zero.
func (s *DashboardService) GetProjection(ctx context.Context, coin types.CoinTag, factor float64) (*Projection, error) {
	snap, err := s.store.Latest(ctx, coin)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, types.NewServiceError("SNAPSHOT_NOT_FOUND", "no snapshot found for the requested coin")
	}
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, types.NewServiceError("INVALID_INPUT", "projection factor must be a positive number")
	}

	kpis := computeKPIs(snap.Data)

	denom := kpis.TotalHoldings
	if denom == 0 {
		denom = 1
	}
	impliedPrice := kpis.TotalValueUSD / denom
	projectedPrice := impliedPrice * factor

	companies := make([]ProjectedHolding, 0, len(snap.Data))
	var projectedTotal float64
	for _, row := range snap.Data {
		name, _ := row[types.ColumnName].(string)
		coins := valuation.CoerceFloat(row[types.ColumnCoins])
		projected := coins * projectedPrice
		projectedTotal += projected
		companies = append(companies, ProjectedHolding{
			Name:              name,
			Coins:             coins,
			ValueUSD:          valuation.CoerceFloat(row[types.ColumnValueUSD]),
			ProjectedValueUSD: projected,
		})
	}

	return &Projection{
		Coin:              snap.Coin,
		SnapshotID:        snap.ID,
		Timestamp:         snap.Timestamp,
		Factor:            factor,
		ImpliedPriceUSD:   impliedPrice,
		ProjectedPriceUSD: projectedPrice,
		TotalValueUSD:     kpis.TotalValueUSD,
		ProjectedValueUSD: projectedTotal,
		Companies:         companies,
	}, nil
}

// GetHistory returns the holdings time series for a coin. Without a history
// sink the series is empty rather than an error.
func (s *DashboardService) GetHistory(ctx context.Context, coin types.CoinTag, from, to time.Time) ([]storage.HoldingPoint, error) {
	if s.history == nil {
		return []storage.HoldingPoint{}, nil
	}
	points, err := s.history.GetSeries(ctx, coin, from, to)
	if err != nil {
		return nil, err
	}
	if points == nil {
		points = []storage.HoldingPoint{}
	}
	return points, nil
}

func computeKPIs(rows []types.Row) KPISummary {
	kpis := KPISummary{Companies: len(rows)}
	for _, row := range rows {
		kpis.TotalHoldings += valuation.CoerceFloat(row[types.ColumnCoins])
		kpis.TotalValueUSD += valuation.CoerceFloat(row[types.ColumnValueUSD])
	}
	if kpis.Companies > 0 {
		kpis.AverageHolding = kpis.TotalHoldings / float64(kpis.Companies)
	}
	return kpis
}

func topHolders(rows []types.Row, n int) []TopHolder {
	holders := make([]TopHolder, 0, len(rows))
	for _, row := range rows {
		name, _ := row[types.ColumnName].(string)
		holders = append(holders, TopHolder{
			Name:     name,
			Coins:    valuation.CoerceFloat(row[types.ColumnCoins]),
			ValueUSD: valuation.CoerceFloat(row[types.ColumnValueUSD]),
		})
	}

	sort.SliceStable(holders, func(i, j int) bool {
		return holders[i].ValueUSD > holders[j].ValueUSD
	})

	if len(holders) > n {
		holders = holders[:n]
	}
	return holders
}
