// Package valuation attaches USD values, optional FX-converted values, and
// optional what-if PnL columns to normalized holding tables.
//
// The engine is deliberately forgiving: a missing amount column, a value that
// fails to parse, a missing FX rate, or absent PnL inputs all degrade to
// zero/absent/undefined instead of raising. That policy shields captures from
// schema drift in the upstream payload; only the snapshot store may fail hard.
package valuation

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/treasury-tracker/internal/types"
)

// ResolveAmountColumn decides which column carries the held-asset quantity.
// It scans the fixed candidate list first, then falls back to the first
// all-numeric column in lexicographic order. The second return is false when
// no usable column exists, in which case the quantity is treated as zero.
func ResolveAmountColumn(rows []types.Row) (string, bool) {
	if len(rows) == 0 {
		return "", false
	}

	present := make(map[string]bool)
	for _, row := range rows {
		for column := range row {
			present[column] = true
		}
	}

	for _, candidate := range types.AmountColumnCandidates {
		if present[candidate] {
			return candidate, true
		}
	}

	// Lexicographic order keeps the fallback deterministic; row maps carry no
	// insertion order.
	columns := make([]string, 0, len(present))
	for column := range present {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	for _, column := range columns {
		if columnIsNumeric(rows, column) {
			return column, true
		}
	}

	return "", false
}

// columnIsNumeric reports whether every present value in the column is a JSON
// number. Rows missing the column do not disqualify it.
func columnIsNumeric(rows []types.Row, column string) bool {
	seen := false
	for _, row := range rows {
		value, ok := row[column]
		if !ok || value == nil {
			continue
		}
		if !isNumber(value) {
			return false
		}
		seen = true
	}
	return seen
}

// isNumber reports whether a decoded JSON value is a number
func isNumber(value interface{}) bool {
	switch value.(type) {
	case float64, float32, int, int32, int64, json.Number:
		return true
	default:
		return false
	}
}

// CoerceFloat converts a decoded JSON value to float64. Non-numeric or
// missing values coerce to zero, never an error.
func CoerceFloat(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Valuate attaches the coins and value_usd columns, plus a value_<fiat>
// column when a non-USD display currency is requested and a rate is known.
// Input rows are not mutated.
func Valuate(rows []types.Row, coinPriceUSD float64, fxRates map[string]float64, displayCurrency string) []types.Row {
	out := make([]types.Row, len(rows))
	for i, row := range rows {
		out[i] = row.Clone()
	}

	amountColumn, found := ResolveAmountColumn(rows)

	fiat := strings.ToLower(displayCurrency)
	fxRate, haveFX := 0.0, false
	if fiat != "" && fiat != "usd" && fxRates != nil {
		fxRate, haveFX = fxRates[fiat]
	}

	for _, row := range out {
		coins := 0.0
		if found {
			coins = CoerceFloat(row[amountColumn])
		}

		valueUSD := coins * coinPriceUSD

		row[types.ColumnCoins] = coins
		row[types.ColumnValueUSD] = valueUSD
		if haveFX {
			row[types.ValueColumn(fiat)] = valueUSD * fxRate
		}
	}

	return out
}

// ComputePnl attaches cost_basis_usd, pnl_usd and pnl_pct. The three columns
// are always set as a group: with no assumed cost (zero) they are all
// undefined, which is an expected path rather than a degraded one. A cost
// basis of zero leaves pnl_pct undefined instead of infinite.
func ComputePnl(rows []types.Row, assumedCostPerCoinUSD float64) []types.Row {
	out := make([]types.Row, len(rows))
	for i, row := range rows {
		out[i] = row.Clone()
	}

	if assumedCostPerCoinUSD == 0 {
		for _, row := range out {
			row[types.ColumnCostBasisUSD] = nil
			row[types.ColumnPnlUSD] = nil
			row[types.ColumnPnlPct] = nil
		}
		return out
	}

	for _, row := range out {
		coins := CoerceFloat(row[types.ColumnCoins])
		valueUSD := CoerceFloat(row[types.ColumnValueUSD])

		costBasis := coins * assumedCostPerCoinUSD
		pnl := valueUSD - costBasis

		row[types.ColumnCostBasisUSD] = costBasis
		row[types.ColumnPnlUSD] = pnl

		pct := pnl / costBasis
		if costBasis == 0 || math.IsInf(pct, 0) || math.IsNaN(pct) {
			row[types.ColumnPnlPct] = nil
		} else {
			row[types.ColumnPnlPct] = pct
		}
	}

	return out
}
