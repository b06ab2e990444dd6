package backtest

import (
	"encoding/json"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date layout used on the wire.
const DateLayout = "2006-01-02"

// LedgerEntry is one trading day of the simulated portfolio.
type LedgerEntry struct {
	Date           string  `json:"date"`
	PortfolioValue float64 `json:"portfolio_value"`
	Cash           float64 `json:"cash"`
	Invested       float64 `json:"invested"`
	NumPositions   int     `json:"num_positions"`
	BenchmarkValue float64 `json:"benchmark_value"`
}

// UnmarshalJSON accepts the legacy "SPY" key for the benchmark series.
func (e *LedgerEntry) UnmarshalJSON(data []byte) error {
	type plain LedgerEntry
	var wire struct {
		plain
		SPY *float64 `json:"SPY"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*e = LedgerEntry(wire.plain)
	if wire.SPY != nil && e.BenchmarkValue == 0 {
		e.BenchmarkValue = *wire.SPY
	}
	return nil
}

// Day returns the calendar-date part of Date, dropping any time suffix.
func (e LedgerEntry) Day() string {
	return DayOf(e.Date)
}

// Time parses the entry's calendar date.
func (e LedgerEntry) Time() (time.Time, error) {
	return time.Parse(DateLayout, e.Day())
}

// TradeRecord is one executed round-trip trade.
type TradeRecord struct {
	PurchaseDate   string   `json:"purchase_date"`
	SellDate       string   `json:"sell_date"`
	Symbol         string   `json:"symbol"`
	StartPrice     float64  `json:"start_price"`
	EndPrice       float64  `json:"end_price"`
	ReturnPct      float64  `json:"return"`
	StrategyEdge   *float64 `json:"strat_edge"`
	Confidence     *float64 `json:"confidence"`
	Quarter        string   `json:"quarter,omitempty"`
	BaselineReturn *float64 `json:"baseline_return,omitempty"`
}

// SummaryMetrics is the aggregate performance record. The first three
// fields are in percentage units.
type SummaryMetrics struct {
	NetReturnPct       float64 `json:"net_return"`
	BenchmarkReturnPct float64 `json:"benchmarked_return"`
	CAGRPct            float64 `json:"cagr"`
	SharpeRatio        float64 `json:"sharpe_ratio"`
}

// Result is one complete data set produced by a request.
type Result struct {
	Ledger  []LedgerEntry   `json:"ledger"`
	Trades  []TradeRecord   `json:"transactions"`
	Metrics *SummaryMetrics `json:"metrics,omitempty"`
	// MetricsDerived is set when Metrics was computed from the ledger
	// rather than delivered by the backtest service.
	MetricsDerived bool `json:"metrics_derived,omitempty"`
}

// DayOf trims a trailing time component from an ISO timestamp.
func DayOf(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}

// Float returns a pointer to v, for building nullable fields.
func Float(v float64) *float64 {
	return &v
}
