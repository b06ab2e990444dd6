package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/quantlens/internal/backtest"
	"github.com/newthinker/quantlens/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ledgerJSON = `[
		{"date":"2024-01-01","portfolio_value":100000,"cash":50000,"invested":50000,"num_positions":5,"SPY":470},
		{"date":"2024-01-02","portfolio_value":101000,"cash":40000,"invested":61000,"num_positions":6,"SPY":471}
	]`
	tradesJSON  = `[{"symbol":"AAA","purchase_date":"2024-01-01","sell_date":"2024-03-01","start_price":10,"end_price":11,"return":0.1,"strat_edge":0.02,"confidence":0.8}]`
	metricsJSON = `{"net_return":-3.2,"benchmarked_return":5.0,"cagr":1.1,"sharpe_ratio":0.6}`
)

func newServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func validParams() backtest.Parameters {
	return backtest.Parameters{
		TopK:           42,
		InitialCapital: 100000,
		SellThreshold:  0.3,
		StartPeriod:    "2021_Q1",
		EndPeriod:      "2024_Q4",
		RandomSeed:     7,
	}
}

func TestClient_Dashboard(t *testing.T) {
	server := newServer(t, map[string]string{
		ledgerPath:       ledgerJSON,
		transactionsPath: tradesJSON,
		metricsPath:      metricsJSON,
	})

	c := New(server.URL + "/")
	result, err := c.Dashboard(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Ledger, 2)
	assert.Equal(t, 470.0, result.Ledger[0].BenchmarkValue)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, "AAA", result.Trades[0].Symbol)
	require.NotNil(t, result.Metrics)
	assert.Equal(t, -3.2, result.Metrics.NetReturnPct)
	assert.False(t, result.MetricsDerived)
}

func TestClient_Fetch_NilParamsUsesDashboard(t *testing.T) {
	server := newServer(t, map[string]string{
		ledgerPath:       `[]`,
		transactionsPath: `[]`,
		metricsPath:      metricsJSON,
	})

	result, err := New(server.URL).Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Ledger)
	assert.NotNil(t, result.Ledger, "empty array should decode to an empty, non-nil slice")
}

func TestClient_Backtest_SendsQuery(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = map[string]string{}
		for k := range r.URL.Query() {
			got[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(`{"ledger":` + ledgerJSON + `,"transactions":` + tradesJSON + `,"metrics":` + metricsJSON + `}`))
	}))
	defer server.Close()

	params := validParams()
	result, err := New(server.URL).Fetch(context.Background(), &params)
	require.NoError(t, err)

	assert.Equal(t, "42", got["topK"])
	assert.Equal(t, "100000", got["initialCapital"])
	assert.Equal(t, "0.3", got["sellThreshold"])
	assert.Equal(t, "2021_Q1", got["startPeriod"])
	assert.Equal(t, "2024_Q4", got["endPeriod"])
	assert.Equal(t, "7", got["randomSeed"])
	assert.Equal(t, 0.6, result.Metrics.SharpeRatio)
}

func TestClient_Backtest_DerivesMissingMetrics(t *testing.T) {
	server := newServer(t, map[string]string{
		backtestPath: `{"ledger":` + ledgerJSON + `,"transactions":[]}`,
	})

	result, err := New(server.URL).Backtest(context.Background(), validParams())
	require.NoError(t, err)
	require.NotNil(t, result.Metrics)
	assert.True(t, result.MetricsDerived)
	assert.InDelta(t, 1.0, result.Metrics.NetReturnPct, 1e-9)
}

func TestClient_Backtest_ValidationBeforeRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	params := validParams()
	params.StartPeriod, params.EndPeriod = "2024_Q1", "2023_Q1"

	_, err := New(server.URL).Backtest(context.Background(), params)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.False(t, called, "no request should be sent for invalid parameters")
}

func TestClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    *core.Error
	}{
		{
			name: "server error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			want: core.ErrHTTPStatus,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>oops</html>"))
			},
			want: core.ErrDecode,
		},
		{
			name: "wrong shape",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"ledger":"nope"}`))
			},
			want: core.ErrDecode,
		},
		{
			name: "null array",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`null`))
			},
			want: core.ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := New(server.URL).Dashboard(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "expected %s, got %v", tt.want.Code, err)
		})
	}
}

func TestClient_Backtest_MissingSections(t *testing.T) {
	server := newServer(t, map[string]string{
		backtestPath: `{"ledger":[]}`,
	})

	_, err := New(server.URL).Backtest(context.Background(), validParams())
	assert.ErrorIs(t, err, core.ErrDecode)
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(url).Ledger(context.Background())
	assert.ErrorIs(t, err, core.ErrNetwork)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(server.URL).Ledger(ctx)
	assert.ErrorIs(t, err, core.ErrTimeout)
}
