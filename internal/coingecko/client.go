// Package coingecko provides the client for the upstream public-treasury and price API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/treasury-tracker/internal/types"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the pro API base used when no override is configured
const DefaultBaseURL = "https://pro-api.coingecko.com/api/v3"

// apiKeyHeader carries the optional static API key
const apiKeyHeader = "x-cg-pro-api-key"

// Client fetches public-company treasury holdings and simple prices.
// Requests are never retried: a non-2xx status or transport failure surfaces
// as *types.UpstreamError and the caller decides whether to skip the asset.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the API base URL (used for tests and self-hosted proxies)
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout overrides the per-request deadline
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// WithRequestsPerSecond overrides the client-side rate limit
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewClient creates an upstream API client. The API key is optional; without
// it requests are sent unauthenticated.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(3), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetCompaniesTreasury fetches the raw public-treasury payload for an asset.
// The payload shape varies upstream, so it is returned undecoded for the
// normalizer to classify.
func (c *Client) GetCompaniesTreasury(ctx context.Context, assetID types.AssetID) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/companies/public_treasury/%s", c.baseURL, url.PathEscape(string(assetID)))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	return json.RawMessage(body), nil
}

// GetSimplePrice fetches a batched price lookup: asset id -> currency -> rate
func (c *Client) GetSimplePrice(ctx context.Context, ids []types.AssetID, vsCurrencies []string) (map[string]map[string]float64, error) {
	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = string(id)
	}

	params := url.Values{}
	params.Set("ids", strings.Join(idStrs, ","))
	params.Set("vs_currencies", strings.ToLower(strings.Join(vsCurrencies, ",")))

	endpoint := fmt.Sprintf("%s/simple/price?%s", c.baseURL, params.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var prices map[string]map[string]float64
	if err := json.Unmarshal(body, &prices); err != nil {
		return nil, &types.UpstreamError{Endpoint: endpoint, Cause: fmt.Errorf("decoding price response: %w", err)}
	}

	return prices, nil
}

// get issues a single GET and returns the response body
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &types.UpstreamError{Endpoint: endpoint, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &types.UpstreamError{Endpoint: endpoint, Cause: err}
	}

	req.Header.Set("accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &types.UpstreamError{Endpoint: endpoint, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &types.UpstreamError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.UpstreamError{Endpoint: endpoint, Cause: err}
	}

	return body, nil
}
