// Package client talks to the backtest service that owns the precomputed
// dashboard data and runs parameterized backtests.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newthinker/quantlens/internal/backtest"
	"github.com/newthinker/quantlens/internal/core"
	"go.uber.org/zap"
)

const (
	ledgerPath       = "/api/uploadLedger"
	transactionsPath = "/api/uploadTransactions"
	metricsPath      = "/api/uploadMetrics"
	backtestPath     = "/api/backtest"

	// maxErrorBody bounds how much of a failed response is quoted in errors.
	maxErrorBody = 256
)

// Client is an HTTP client for the backtest service.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.logger = log }
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// Per-request deadlines come from the caller's context; this is a
		// backstop for callers that pass context.Background().
		client: &http.Client{Timeout: 5 * time.Minute},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch loads precomputed results when params is nil and runs a
// parameterized backtest otherwise.
func (c *Client) Fetch(ctx context.Context, params *backtest.Parameters) (*backtest.Result, error) {
	if params == nil {
		return c.Dashboard(ctx)
	}
	return c.Backtest(ctx, *params)
}

// Ledger fetches the precomputed portfolio ledger.
func (c *Client) Ledger(ctx context.Context) ([]backtest.LedgerEntry, error) {
	var ledger []backtest.LedgerEntry
	if err := c.get(ctx, ledgerPath, nil, &ledger); err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, core.WrapError(core.ErrDecode, fmt.Errorf("%s: expected array, got null", ledgerPath))
	}
	return ledger, nil
}

// Transactions fetches the precomputed trade records.
func (c *Client) Transactions(ctx context.Context) ([]backtest.TradeRecord, error) {
	var trades []backtest.TradeRecord
	if err := c.get(ctx, transactionsPath, nil, &trades); err != nil {
		return nil, err
	}
	if trades == nil {
		return nil, core.WrapError(core.ErrDecode, fmt.Errorf("%s: expected array, got null", transactionsPath))
	}
	return trades, nil
}

// Metrics fetches the precomputed summary metrics.
func (c *Client) Metrics(ctx context.Context) (*backtest.SummaryMetrics, error) {
	var raw json.RawMessage
	if err := c.get(ctx, metricsPath, nil, &raw); err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, core.WrapError(core.ErrDecode, fmt.Errorf("%s: expected object, got null", metricsPath))
	}
	var m backtest.SummaryMetrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, core.WrapError(core.ErrDecode, fmt.Errorf("%s: %w", metricsPath, err))
	}
	return &m, nil
}

// Dashboard fetches ledger, transactions and metrics in sequence. The
// first failure aborts the whole fetch.
func (c *Client) Dashboard(ctx context.Context) (*backtest.Result, error) {
	ledger, err := c.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	trades, err := c.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	metrics, err := c.Metrics(ctx)
	if err != nil {
		return nil, err
	}
	return &backtest.Result{Ledger: ledger, Trades: trades, Metrics: metrics}, nil
}

// backtestResponse mirrors the service payload; ledger and transactions
// must be present, metrics may be omitted.
type backtestResponse struct {
	Ledger       json.RawMessage `json:"ledger"`
	Transactions json.RawMessage `json:"transactions"`
	Metrics      json.RawMessage `json:"metrics"`
}

// Backtest runs a parameterized backtest. When the service returns no
// metrics they are derived from the ledger.
func (c *Client) Backtest(ctx context.Context, params backtest.Parameters) (*backtest.Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var resp backtestResponse
	if err := c.get(ctx, backtestPath, params.Query(), &resp); err != nil {
		return nil, err
	}

	result := &backtest.Result{}
	if isNull(resp.Ledger) || isNull(resp.Transactions) {
		return nil, core.WrapError(core.ErrDecode,
			fmt.Errorf("%s: response must contain ledger and transactions", backtestPath))
	}
	if err := json.Unmarshal(resp.Ledger, &result.Ledger); err != nil {
		return nil, core.WrapError(core.ErrDecode, fmt.Errorf("%s ledger: %w", backtestPath, err))
	}
	if err := json.Unmarshal(resp.Transactions, &result.Trades); err != nil {
		return nil, core.WrapError(core.ErrDecode, fmt.Errorf("%s transactions: %w", backtestPath, err))
	}

	if !isNull(resp.Metrics) {
		var m backtest.SummaryMetrics
		if err := json.Unmarshal(resp.Metrics, &m); err != nil {
			return nil, core.WrapError(core.ErrDecode, fmt.Errorf("%s metrics: %w", backtestPath, err))
		}
		result.Metrics = &m
	} else if m, err := backtest.DeriveMetrics(result.Ledger); err == nil {
		result.Metrics = &m
		result.MetricsDerived = true
	} else {
		c.logger.Debug("metrics unavailable", zap.Error(err))
	}

	return result, nil
}

// get performs a GET and decodes the JSON body into out, classifying
// failures as network, status or decode errors.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return core.WrapError(core.ErrNetwork, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return core.WrapError(core.ErrTimeout, fmt.Errorf("GET %s: %w", path, err))
		}
		return core.WrapError(core.ErrNetwork, fmt.Errorf("GET %s: %w", path, err))
	}
	defer resp.Body.Close()

	c.logger.Debug("backtest service response",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return core.WrapError(core.ErrHTTPStatus,
			fmt.Errorf("GET %s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return core.WrapError(core.ErrTimeout, fmt.Errorf("GET %s: %w", path, err))
		}
		return core.WrapError(core.ErrDecode, fmt.Errorf("GET %s: %w", path, err))
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
