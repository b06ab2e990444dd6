package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/quantlens/internal/backtest"
	"github.com/newthinker/quantlens/internal/core"
	"github.com/newthinker/quantlens/internal/pipeline"
)

func newFactory(result *backtest.Result) Factory {
	return func(id string) *pipeline.Pipeline {
		return pipeline.New(pipeline.Config{Name: id}, pipeline.FetcherFunc(
			func(ctx context.Context, params *backtest.Parameters) (*backtest.Result, error) {
				return result, nil
			}), nil)
	}
}

type gaugeFunc func(int)

func (f gaugeFunc) SetSessionsActive(n int) { f(n) }

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore(10, time.Hour, newFactory(&backtest.Result{}), nil)

	sess := store.Create()
	if sess.ID == "" {
		t.Fatal("expected session ID")
	}
	if sess.Pipeline == nil || sess.Chart == nil {
		t.Fatal("expected pipeline and chart")
	}
	if got := sess.Pipeline.State().Phase; got != pipeline.PhaseIdle {
		t.Errorf("expected idle pipeline, got %s", got)
	}

	got, err := store.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != sess {
		t.Error("expected the same session")
	}
}

func TestStore_NotFound(t *testing.T) {
	store := NewStore(10, time.Hour, newFactory(nil), nil)

	_, err := store.Get("nonexistent")
	if !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStore_MaxSize(t *testing.T) {
	store := NewStore(2, time.Hour, newFactory(nil), nil)

	first := store.Create()
	second := store.Create()
	store.Create() // evicts first

	if _, err := store.Get(first.ID); err == nil {
		t.Error("expected oldest session to be evicted")
	}
	if _, err := store.Get(second.ID); err != nil {
		t.Errorf("expected second session to survive: %v", err)
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", store.Len())
	}
}

func TestStore_TTL(t *testing.T) {
	store := NewStore(10, time.Minute, newFactory(nil), nil)
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	sess := store.Create()

	now = now.Add(30 * time.Second)
	if _, err := store.Get(sess.ID); err != nil {
		t.Fatalf("session expired too early: %v", err)
	}

	// Get refreshed the idle timer.
	now = now.Add(50 * time.Second)
	if _, err := store.Get(sess.ID); err != nil {
		t.Fatalf("session expired despite use: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(sess.ID); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("expected expired session, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("expected expired session to be removed, got %d", store.Len())
	}
}

func TestStore_CreateSweepsExpired(t *testing.T) {
	store := NewStore(10, time.Minute, newFactory(nil), nil)
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Create()
	store.Create()
	now = now.Add(time.Hour)
	store.Create()

	if store.Len() != 1 {
		t.Errorf("expected 1 session after sweep, got %d", store.Len())
	}
}

func TestStore_GetOrCreate(t *testing.T) {
	store := NewStore(10, time.Hour, newFactory(nil), nil)

	sess, created := store.GetOrCreate("")
	if !created {
		t.Error("expected a new session for empty id")
	}

	again, created := store.GetOrCreate(sess.ID)
	if created || again != sess {
		t.Error("expected existing session")
	}

	_, created = store.GetOrCreate("unknown")
	if !created {
		t.Error("expected a new session for unknown id")
	}
}

func TestStore_Gauge(t *testing.T) {
	store := NewStore(2, time.Hour, newFactory(nil), nil)

	var last int
	store.SetGauge(gaugeFunc(func(n int) { last = n }))

	store.Create()
	if last != 1 {
		t.Errorf("expected gauge 1, got %d", last)
	}
	store.Create()
	store.Create()
	if last != 2 {
		t.Errorf("expected gauge capped at 2, got %d", last)
	}
}

func TestResults_ChartFollowsPipeline(t *testing.T) {
	result := &backtest.Result{
		Ledger: []backtest.LedgerEntry{
			{Date: "2024-01-02", PortfolioValue: 100, BenchmarkValue: 90},
			{Date: "2024-01-03", PortfolioValue: 110, BenchmarkValue: 95},
		},
	}
	store := NewStore(10, time.Hour, newFactory(result), nil)
	sess := store.Create()

	params := backtest.Parameters{
		TopK: 5, InitialCapital: 1000, SellThreshold: 0.3,
		StartPeriod: "2021_Q1", EndPeriod: "2021_Q4", RandomSeed: 1,
	}
	token, err := sess.Pipeline.Submit(&params)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := sess.Pipeline.Wait(context.Background(), token); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	if got := sess.Chart.Chart().Len(); got != 2 {
		t.Errorf("expected chart with 2 points, got %d", got)
	}
}
