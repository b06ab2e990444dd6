package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/quantlens/internal/api/session"
	"github.com/newthinker/quantlens/internal/backtest"
	"github.com/newthinker/quantlens/internal/metrics"
	"github.com/newthinker/quantlens/internal/pipeline"
	"go.uber.org/zap"
)

func testDeps() Dependencies {
	fetch := pipeline.FetcherFunc(func(ctx context.Context, params *backtest.Parameters) (*backtest.Result, error) {
		return &backtest.Result{
			Ledger: []backtest.LedgerEntry{{Date: "2024-01-02", PortfolioValue: 100, BenchmarkValue: 90}},
			Trades: []backtest.TradeRecord{{PurchaseDate: "2024-01-02", SellDate: "2024-02-01", Symbol: "AAA", StartPrice: 1, EndPrice: 2, ReturnPct: 1}},
		}, nil
	})
	return Dependencies{
		Dashboard: session.NewResults(pipeline.New(pipeline.Config{Name: "dashboard"}, fetch, nil), nil),
		Sessions: session.NewStore(10, time.Hour, func(id string) *pipeline.Pipeline {
			return pipeline.New(pipeline.Config{Name: id}, fetch, nil)
		}, nil),
		FormDefaults: backtest.Parameters{
			TopK: 5, InitialCapital: 1000, SellThreshold: 0.3,
			StartPeriod: "2021_Q1", EndPeriod: "2021_Q4", RandomSeed: 1,
		},
		Metrics: metrics.NewRegistry(),
	}
}

func newTestServer(t *testing.T, apiKey string) *Server {
	t.Helper()
	srv, err := NewServer(Config{
		Host:        "localhost",
		Port:        0,
		APIKey:      apiKey,
		PageSize:    10,
		WaitTimeout: time.Second,
		MetricsPath: "/metrics",
	}, testDeps(), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, "")

	w := serve(srv, httptest.NewRequest("GET", "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected request ID header")
	}
}

func TestServer_RequiresDependencies(t *testing.T) {
	if _, err := NewServer(Config{}, Dependencies{}, nil); err == nil {
		t.Error("expected error without pipelines")
	}
}

func TestServer_APIAuth_Required(t *testing.T) {
	srv := newTestServer(t, "test-key")

	w := serve(srv, httptest.NewRequest("GET", "/api/v1/dashboard", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", w.Code)
	}
}

func TestServer_APIAuth_ValidKey(t *testing.T) {
	srv := newTestServer(t, "test-key")

	req := httptest.NewRequest("GET", "/api/v1/dashboard", nil)
	req.Header.Set("X-API-Key", "test-key")
	w := serve(srv, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with key, got %d", w.Code)
	}
}

func TestServer_APIAuth_Disabled(t *testing.T) {
	srv := newTestServer(t, "")

	w := serve(srv, httptest.NewRequest("GET", "/api/v1/dashboard", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with disabled auth, got %d", w.Code)
	}
}

func TestServer_WebPagesSkipAuth(t *testing.T) {
	srv := newTestServer(t, "test-key")

	for _, path := range []string{"/", "/backtest"} {
		w := serve(srv, httptest.NewRequest("GET", path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestServer_UnknownPath(t *testing.T) {
	srv := newTestServer(t, "")

	w := serve(srv, httptest.NewRequest("GET", "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestServer_BacktestRoundTrip(t *testing.T) {
	srv := newTestServer(t, "")

	form := url.Values{
		"topK":           {"5"},
		"initialCapital": {"1000"},
		"sellThreshold":  {"0.3"},
		"startPeriod":    {"2021_Q1"},
		"endPeriod":      {"2021_Q2"},
		"randomSeed":     {"1"},
		"modelStrategy":  {"MLP"},
	}
	req := httptest.NewRequest("POST", "/backtest", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := serve(srv, req)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", w.Code)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected session cookie, got %d cookies", len(cookies))
	}

	req = httptest.NewRequest("GET", "/api/v1/session", nil)
	req.AddCookie(cookies[0])
	w = serve(srv, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"phase":"succeeded"`) {
		t.Errorf("expected settled session, got %s", w.Body.String())
	}
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t, "")

	serve(srv, httptest.NewRequest("GET", "/api/health", nil))
	w := serve(srv, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Error("expected http metrics in exposition")
	}
	if !strings.Contains(w.Body.String(), `route="/api/health"`) {
		t.Error("expected requests labelled by route pattern")
	}
}
