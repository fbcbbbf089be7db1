package valuation

import (
	"testing"

	"github.com/treasury-tracker/internal/types"
)

func TestResolveAmountColumn_CandidatePriority(t *testing.T) {
	rows := []types.Row{
		{"holdings": 5.0, "total_holdings": 10.0, "quantity": 1.0},
	}

	column, ok := ResolveAmountColumn(rows)
	if !ok {
		t.Fatal("Expected a column to resolve")
	}
	if column != "total_holdings" {
		t.Errorf("Expected total_holdings to win, got %s", column)
	}
}

func TestResolveAmountColumn_NumericFallback(t *testing.T) {
	rows := []types.Row{
		{"name": "Alpha", "shares": 100.0},
		{"name": "Beta", "shares": 200.0},
	}

	column, ok := ResolveAmountColumn(rows)
	if !ok {
		t.Fatal("Expected a column to resolve")
	}
	if column != "shares" {
		t.Errorf("Expected shares via numeric fallback, got %s", column)
	}
}

func TestResolveAmountColumn_MixedColumnDisqualified(t *testing.T) {
	// A single non-numeric value disqualifies the column entirely
	rows := []types.Row{
		{"shares": 100.0},
		{"shares": "n/a"},
	}

	if _, ok := ResolveAmountColumn(rows); ok {
		t.Fatal("Expected no usable column")
	}
}

func TestResolveAmountColumn_MissingValuesAllowed(t *testing.T) {
	rows := []types.Row{
		{"name": "Alpha", "shares": 100.0},
		{"name": "Beta"},
	}

	column, ok := ResolveAmountColumn(rows)
	if !ok || column != "shares" {
		t.Fatalf("Expected shares despite a missing value, got %s (ok=%v)", column, ok)
	}
}

func TestResolveAmountColumn_NoRows(t *testing.T) {
	if _, ok := ResolveAmountColumn(nil); ok {
		t.Fatal("Expected no column for empty input")
	}
}

func TestCoerceFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected float64
	}{
		{"float", 1.5, 1.5},
		{"int", 7, 7},
		{"numeric string", " 42.5 ", 42.5},
		{"non-numeric string", "n/a", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoerceFloat(tt.input); got != tt.expected {
				t.Errorf("CoerceFloat(%v) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValuate_SetsValueColumns(t *testing.T) {
	rows := []types.Row{
		{"name": "Alpha", "total_holdings": 10.0},
		{"name": "Beta", "total_holdings": "2.5"},
	}

	out := Valuate(rows, 100, map[string]float64{"usd": 1}, "usd")

	if out[0][types.ColumnValueUSD] != 1000.0 {
		t.Errorf("Expected value_usd 1000, got %v", out[0][types.ColumnValueUSD])
	}
	if out[1][types.ColumnCoins] != 2.5 {
		t.Errorf("Expected coins 2.5 from string coercion, got %v", out[1][types.ColumnCoins])
	}
	// Input rows stay untouched
	if _, ok := rows[0][types.ColumnValueUSD]; ok {
		t.Error("Valuate mutated its input")
	}
}

func TestValuate_DisplayCurrency(t *testing.T) {
	rows := []types.Row{{"total_holdings": 2.0}}

	out := Valuate(rows, 100, map[string]float64{"usd": 1, "eur": 0.9}, "eur")

	if out[0][types.ValueColumn("eur")] != 180.0 {
		t.Errorf("Expected value_eur 180, got %v", out[0][types.ValueColumn("eur")])
	}
}

func TestValuate_MissingFXRateOmitsColumn(t *testing.T) {
	rows := []types.Row{{"total_holdings": 2.0}}

	out := Valuate(rows, 100, map[string]float64{"usd": 1}, "eur")

	if _, ok := out[0][types.ValueColumn("eur")]; ok {
		t.Error("Expected no value_eur column without an FX rate")
	}
	if out[0][types.ColumnValueUSD] != 200.0 {
		t.Errorf("Expected value_usd 200, got %v", out[0][types.ColumnValueUSD])
	}
}

func TestValuate_NoAmountColumn(t *testing.T) {
	rows := []types.Row{{"name": "Alpha"}}

	out := Valuate(rows, 100, map[string]float64{"usd": 1}, "usd")

	if out[0][types.ColumnCoins] != 0.0 {
		t.Errorf("Expected zero coins, got %v", out[0][types.ColumnCoins])
	}
	if out[0][types.ColumnValueUSD] != 0.0 {
		t.Errorf("Expected zero value, got %v", out[0][types.ColumnValueUSD])
	}
}

func TestComputePnl_ZeroCostLeavesGroupUndefined(t *testing.T) {
	rows := []types.Row{
		{types.ColumnCoins: 10.0, types.ColumnValueUSD: 1000.0},
	}

	out := ComputePnl(rows, 0)

	for _, column := range []string{types.ColumnCostBasisUSD, types.ColumnPnlUSD, types.ColumnPnlPct} {
		value, ok := out[0][column]
		if !ok {
			t.Errorf("Expected %s to be present", column)
		}
		if value != nil {
			t.Errorf("Expected %s to be nil, got %v", column, value)
		}
	}
}

func TestComputePnl_Computed(t *testing.T) {
	rows := []types.Row{
		{types.ColumnCoins: 10.0, types.ColumnValueUSD: 1500.0},
	}

	out := ComputePnl(rows, 100)

	if out[0][types.ColumnCostBasisUSD] != 1000.0 {
		t.Errorf("Expected cost basis 1000, got %v", out[0][types.ColumnCostBasisUSD])
	}
	if out[0][types.ColumnPnlUSD] != 500.0 {
		t.Errorf("Expected pnl 500, got %v", out[0][types.ColumnPnlUSD])
	}
	if out[0][types.ColumnPnlPct] != 0.5 {
		t.Errorf("Expected pnl_pct 0.5, got %v", out[0][types.ColumnPnlPct])
	}
}

func TestComputePnl_ZeroCoinsLeavesPctUndefined(t *testing.T) {
	rows := []types.Row{
		{types.ColumnCoins: 0.0, types.ColumnValueUSD: 100.0},
	}

	out := ComputePnl(rows, 100)

	if out[0][types.ColumnCostBasisUSD] != 0.0 {
		t.Errorf("Expected cost basis 0, got %v", out[0][types.ColumnCostBasisUSD])
	}
	if out[0][types.ColumnPnlUSD] != 100.0 {
		t.Errorf("Expected pnl 100, got %v", out[0][types.ColumnPnlUSD])
	}
	if out[0][types.ColumnPnlPct] != nil {
		t.Errorf("Expected pnl_pct nil on zero cost basis, got %v", out[0][types.ColumnPnlPct])
	}
}
