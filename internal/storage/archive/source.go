package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/newthinker/quantlens/internal/backtest"
	"github.com/newthinker/quantlens/internal/core"
	"go.uber.org/zap"
)

// Result file base names. Each is stored as <name>.json, or for the ledger
// and transactions also as <name>.csv.
const (
	LedgerName       = "ledger"
	TransactionsName = "transactions"
	MetricsName      = "metrics"
)

// Source serves a precomputed result set from a Storage. It only answers
// dashboard requests; parameterized backtests need the live service.
type Source struct {
	store  Storage
	prefix string
	logger *zap.Logger
}

// NewSource reads result files below prefix in store.
func NewSource(store Storage, prefix string, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{store: store, prefix: prefix, logger: logger}
}

// Fetch loads ledger, transactions and metrics. Missing metrics are derived
// from the ledger.
func (s *Source) Fetch(ctx context.Context, params *backtest.Parameters) (*backtest.Result, error) {
	if params != nil {
		return nil, core.WrapError(core.ErrUnsupported,
			fmt.Errorf("archive source serves precomputed results only"))
	}

	var result backtest.Result

	data, format, err := s.readAny(ctx, LedgerName, "json", "csv")
	if err != nil {
		return nil, err
	}
	if result.Ledger, err = decodeLedger(data, format); err != nil {
		return nil, core.WrapError(core.ErrDecode, fmt.Errorf("%s.%s: %w", LedgerName, format, err))
	}

	data, format, err = s.readAny(ctx, TransactionsName, "json", "csv")
	if err != nil {
		return nil, err
	}
	if result.Trades, err = decodeTrades(data, format); err != nil {
		return nil, core.WrapError(core.ErrDecode, fmt.Errorf("%s.%s: %w", TransactionsName, format, err))
	}

	data, _, err = s.readAny(ctx, MetricsName, "json")
	switch {
	case err == nil:
		var m backtest.SummaryMetrics
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, core.WrapError(core.ErrDecode, fmt.Errorf("%s.json: %w", MetricsName, err))
		}
		result.Metrics = &m
	case errors.Is(err, core.ErrNoData):
		m, derr := backtest.DeriveMetrics(result.Ledger)
		if derr != nil {
			s.logger.Warn("archive has no metrics and they cannot be derived", zap.Error(derr))
			break
		}
		result.Metrics = &m
		result.MetricsDerived = true
	default:
		return nil, err
	}

	s.logger.Debug("loaded archived results",
		zap.String("prefix", s.prefix),
		zap.Int("ledger_entries", len(result.Ledger)),
		zap.Int("trades", len(result.Trades)),
		zap.Bool("metrics_derived", result.MetricsDerived),
	)
	return &result, nil
}

// Publish writes result as JSON files that Fetch can read back.
func (s *Source) Publish(ctx context.Context, result *backtest.Result) error {
	type file struct {
		name string
		v    any
	}
	ledger, trades := result.Ledger, result.Trades
	if ledger == nil {
		ledger = []backtest.LedgerEntry{}
	}
	if trades == nil {
		trades = []backtest.TradeRecord{}
	}
	files := []file{
		{LedgerName, ledger},
		{TransactionsName, trades},
	}
	if result.Metrics != nil && !result.MetricsDerived {
		files = append(files, file{MetricsName, result.Metrics})
	}

	for _, f := range files {
		data, err := json.MarshalIndent(f.v, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding %s: %w", f.name, err)
		}
		if err := s.store.Write(ctx, s.path(f.name+".json"), data); err != nil {
			return core.WrapError(core.ErrArchive, fmt.Errorf("writing %s: %w", f.name, err))
		}
	}
	s.logger.Info("published results", zap.String("prefix", s.prefix))
	return nil
}

// readAny returns the first existing <name>.<ext> in extension order.
func (s *Source) readAny(ctx context.Context, name string, exts ...string) ([]byte, string, error) {
	for _, ext := range exts {
		p := s.path(name + "." + ext)
		ok, err := s.store.Exists(ctx, p)
		if err != nil {
			return nil, "", core.WrapError(core.ErrArchive, fmt.Errorf("%s: %w", p, err))
		}
		if !ok {
			continue
		}
		data, err := s.store.Read(ctx, p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, "", core.WrapError(core.ErrArchive, fmt.Errorf("%s: %w", p, err))
		}
		return data, ext, nil
	}
	return nil, "", core.WrapError(core.ErrNoData, fmt.Errorf("no %s file under %q", name, s.prefix))
}

func (s *Source) path(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func decodeLedger(data []byte, format string) ([]backtest.LedgerEntry, error) {
	if format == "csv" {
		return ledgerFromCSV(data)
	}
	var out []backtest.LedgerEntry
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("expected array, got null")
	}
	return out, nil
}

func decodeTrades(data []byte, format string) ([]backtest.TradeRecord, error) {
	if format == "csv" {
		return tradesFromCSV(data)
	}
	var out []backtest.TradeRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("expected array, got null")
	}
	return out, nil
}
