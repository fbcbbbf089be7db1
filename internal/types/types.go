// Package types provides common type definitions for the treasury tracker system.
package types

import (
	"errors"
	"fmt"
)

// AssetID represents a tracked crypto asset identifier as used by the upstream API
type AssetID string

const (
	// AssetBitcoin represents the bitcoin treasury endpoint
	AssetBitcoin AssetID = "bitcoin"
	// AssetEthereum represents the ethereum treasury endpoint
	AssetEthereum AssetID = "ethereum"
)

// CoinTag is the partition key of a snapshot. It is either an AssetID or a
// synthetic composite tag for cross-asset merges; the store treats it as opaque.
type CoinTag string

// TagMergedBTCETH tags the combined BTC+ETH snapshot produced by merged captures
const TagMergedBTCETH CoinTag = "btc_eth_merged"

// Row is one normalized company record. Values are plain decoded JSON; nested
// payload objects appear as dotted-path columns. A nil value means "undefined"
// and serializes as JSON null.
type Row map[string]interface{}

// Clone returns a shallow copy of the row
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Well-known column names attached by the valuation engine
const (
	ColumnName         = "name"
	ColumnCoins        = "coins"
	ColumnValueUSD     = "value_usd"
	ColumnCostBasisUSD = "cost_basis_usd"
	ColumnPnlUSD       = "pnl_usd"
	ColumnPnlPct       = "pnl_pct"
)

// ValueColumn returns the display-currency value column name for a fiat code
func ValueColumn(fiat string) string {
	return "value_" + fiat
}

// AmountColumnCandidates is the priority list used to resolve which input
// column carries the held-asset quantity. Order matters.
var AmountColumnCandidates = []string{
	"total_holdings",
	"holdings",
	"amount",
	"quantity",
	"total_btc_holdings",
	"total_eth_holdings",
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError creates a service error with a stable code
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message}
}

// UpstreamError represents a failed fetch against the upstream API: a non-2xx
// HTTP status or a transport failure. Fetches are never retried automatically;
// callers decide whether to skip the asset.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Cause      error
}

func (e *UpstreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream request failed: %s: %v", e.Endpoint, e.Cause)
	}
	return fmt.Sprintf("upstream request failed: %s: status %d", e.Endpoint, e.StatusCode)
}

// Unwrap returns the underlying transport error, if any
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// StoreCorruptError represents a snapshot store that exists but cannot be
// deserialized. This is fatal: no valid snapshot history can be established,
// so no partial recovery is attempted.
type StoreCorruptError struct {
	Source string
	Cause  error
}

func (e *StoreCorruptError) Error() string {
	return fmt.Sprintf("snapshot store corrupt: %s: %v", e.Source, e.Cause)
}

// Unwrap returns the underlying decode error
func (e *StoreCorruptError) Unwrap() error {
	return e.Cause
}

// IsUpstreamError reports whether err is (or wraps) an UpstreamError
func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// IsStoreCorrupt reports whether err is (or wraps) a StoreCorruptError
func IsStoreCorrupt(err error) bool {
	var se *StoreCorruptError
	return errors.As(err, &se)
}
