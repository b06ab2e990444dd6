// Package pipeline manages the lifecycle of fetching or computing backtest
// results: one state bundle, one current request token, and a guard that
// drops responses from superseded requests.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/newthinker/quantlens/internal/backtest"
	"github.com/newthinker/quantlens/internal/core"
	"go.uber.org/zap"
)

// Phase is the request lifecycle phase.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePending   Phase = "pending"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Outcomes reported to a Recorder.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeTimeout   = "timeout"
	OutcomeStale     = "stale"
)

// DefaultTimeout bounds a pending request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Fetcher produces a result. A nil params means "precomputed results".
type Fetcher interface {
	Fetch(ctx context.Context, params *backtest.Parameters) (*backtest.Result, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, params *backtest.Parameters) (*backtest.Result, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, params *backtest.Parameters) (*backtest.Result, error) {
	return f(ctx, params)
}

// Recorder receives request outcomes, typically for metrics.
type Recorder interface {
	RecordRequest(mode, outcome string, duration float64)
}

// State is an immutable snapshot of the pipeline. Slices are shared with
// the pipeline and must not be modified by readers.
type State struct {
	Phase          Phase                    `json:"phase"`
	Token          uint64                   `json:"token"`
	Ledger         []backtest.LedgerEntry   `json:"ledger"`
	Trades         []backtest.TradeRecord   `json:"transactions"`
	Metrics        *backtest.SummaryMetrics `json:"metrics,omitempty"`
	MetricsDerived bool                     `json:"metrics_derived,omitempty"`
	ErrorCode      string                   `json:"error_code,omitempty"`
	ErrorMessage   string                   `json:"error_message,omitempty"`
	Params         *backtest.Parameters     `json:"params,omitempty"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// HasData reports whether the snapshot carries a result set.
func (s State) HasData() bool {
	return s.Ledger != nil || s.Trades != nil || s.Metrics != nil
}

// Mode names the kind of request for logs and metrics.
func (s State) Mode() string {
	return modeOf(s.Params)
}

// Config configures a Pipeline.
type Config struct {
	// Name distinguishes pipelines in logs.
	Name string
	// Timeout forces a pending request to fail once exceeded.
	Timeout time.Duration
}

// Pipeline owns the request state bundle.
type Pipeline struct {
	fetcher  Fetcher
	recorder Recorder
	logger   *zap.Logger
	name     string
	timeout  time.Duration

	mu          sync.RWMutex
	state       State
	token       uint64
	inflight    map[uint64]chan struct{}
	subscribers []func(State)
}

// New creates an idle pipeline.
func New(cfg Config, fetcher Fetcher, logger *zap.Logger) *Pipeline {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:  fetcher,
		logger:   logger.With(zap.String("pipeline", cfg.Name)),
		name:     cfg.Name,
		timeout:  cfg.Timeout,
		state:    State{Phase: PhaseIdle, UpdatedAt: time.Now()},
		inflight: make(map[uint64]chan struct{}),
	}
}

// SetRecorder sets the outcome recorder.
func (p *Pipeline) SetRecorder(r Recorder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recorder = r
}

// Subscribe registers fn to be called with every new state. Callbacks run
// outside the pipeline lock, on the goroutine that caused the transition,
// so they may run concurrently; use State.Token to order them.
func (p *Pipeline) Subscribe(fn func(State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// State returns the current snapshot.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Submit starts a new request cycle and returns its token. Invalid
// parameters are rejected synchronously without leaving the current phase.
// Any earlier in-flight request keeps running but its result is discarded.
func (p *Pipeline) Submit(params *backtest.Parameters) (uint64, error) {
	if params != nil {
		if err := params.Validate(); err != nil {
			return 0, err
		}
		copied := *params
		params = &copied
	}

	p.mu.Lock()
	p.token++
	token := p.token
	done := make(chan struct{})
	p.inflight[token] = done

	// Previous data stays visible while the new request is pending.
	next := p.state
	next.Phase = PhasePending
	next.Token = token
	next.Params = params
	next.ErrorCode = ""
	next.ErrorMessage = ""
	next.UpdatedAt = time.Now()
	p.state = next
	subs := p.subscribersLocked()
	p.mu.Unlock()

	p.logger.Info("request submitted",
		zap.Uint64("token", token),
		zap.String("mode", modeOf(params)),
	)
	notify(subs, next)

	go p.run(token, params, done)
	return token, nil
}

// Wait blocks until the request identified by token has settled, whether
// its result was applied or discarded, or until ctx is done.
func (p *Pipeline) Wait(ctx context.Context, token uint64) error {
	p.mu.RLock()
	done, ok := p.inflight[token]
	p.mu.RUnlock()
	if !ok {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) run(token uint64, params *backtest.Parameters, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		delete(p.inflight, token)
		p.mu.Unlock()
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	type fetched struct {
		result *backtest.Result
		err    error
	}
	ch := make(chan fetched, 1)

	start := time.Now()
	go func() {
		r, err := p.fetcher.Fetch(ctx, params)
		ch <- fetched{r, err}
	}()

	var (
		result *backtest.Result
		err    error
	)
	// A fetcher that ignores ctx must not keep the request pending forever.
	select {
	case f := <-ch:
		result, err = f.result, f.err
	case <-ctx.Done():
		err = core.WrapError(core.ErrTimeout, fmt.Errorf("no response within %s", p.timeout))
	}
	if err == nil && result == nil {
		err = core.WrapError(core.ErrDecode, errors.New("empty result"))
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, core.ErrTimeout) {
		err = core.WrapError(core.ErrTimeout, fmt.Errorf("no response within %s: %w", p.timeout, err))
	}
	elapsed := time.Since(start)

	p.apply(token, params, result, err, elapsed)
}

// apply stores the outcome of request token, unless a newer request has
// been submitted since.
func (p *Pipeline) apply(token uint64, params *backtest.Parameters, result *backtest.Result, err error, elapsed time.Duration) {
	mode := modeOf(params)

	p.mu.Lock()
	recorder := p.recorder
	if token != p.token {
		current := p.token
		p.mu.Unlock()

		p.logger.Info("discarding superseded response",
			zap.Uint64("token", token),
			zap.Uint64("current", current),
			zap.Error(err),
		)
		if recorder != nil {
			recorder.RecordRequest(mode, OutcomeStale, elapsed.Seconds())
		}
		return
	}

	next := State{
		Token:     token,
		Params:    params,
		UpdatedAt: time.Now(),
	}
	outcome := OutcomeSucceeded
	if err != nil {
		next.Phase = PhaseFailed
		next.ErrorCode = core.Code(err)
		next.ErrorMessage = core.Describe(err)
		outcome = OutcomeFailed
		if errors.Is(err, core.ErrTimeout) {
			outcome = OutcomeTimeout
		}
	} else {
		next.Phase = PhaseSucceeded
		next.Ledger = result.Ledger
		next.Trades = result.Trades
		next.Metrics = result.Metrics
		next.MetricsDerived = result.MetricsDerived
	}
	p.state = next
	subs := p.subscribersLocked()
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("request failed",
			zap.Uint64("token", token),
			zap.String("mode", mode),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
	} else {
		p.logger.Info("request succeeded",
			zap.Uint64("token", token),
			zap.String("mode", mode),
			zap.Duration("duration", elapsed),
			zap.Int("ledger_entries", len(next.Ledger)),
			zap.Int("trades", len(next.Trades)),
		)
	}
	if recorder != nil {
		recorder.RecordRequest(mode, outcome, elapsed.Seconds())
	}
	notify(subs, next)
}

func (p *Pipeline) subscribersLocked() []func(State) {
	if len(p.subscribers) == 0 {
		return nil
	}
	return slices.Clone(p.subscribers)
}

func notify(subs []func(State), s State) {
	for _, fn := range subs {
		fn(s)
	}
}

func modeOf(params *backtest.Parameters) string {
	if params == nil {
		return "dashboard"
	}
	return "backtest"
}
