// Package summary formats aggregate backtest metrics into display cards.
package summary

import (
	"fmt"

	"github.com/newthinker/quantlens/internal/backtest"
)

// Indicator classifies a metric for its badge.
type Indicator string

const (
	Up      Indicator = "up"
	Down    Indicator = "down"
	Pass    Indicator = "pass"
	Caution Indicator = "caution"
)

// Symbol is the badge glyph for the indicator.
func (i Indicator) Symbol() string {
	switch i {
	case Up:
		return "↑"
	case Down:
		return "↓"
	case Pass:
		return "✓"
	case Caution:
		return "!"
	}
	return ""
}

// Good reports whether the indicator is favourable.
func (i Indicator) Good() bool { return i == Up || i == Pass }

// SharpeThreshold is the ratio above which risk-adjusted return passes.
const SharpeThreshold = 1.0

// Card is one formatted metric.
type Card struct {
	Label       string    `json:"label"`
	Value       string    `json:"value"`
	Indicator   Indicator `json:"indicator"`
	Description string    `json:"description"`
}

// Symbol is the card's badge glyph.
func (c Card) Symbol() string { return c.Indicator.Symbol() }

// Format produces the four summary cards in display order.
func Format(m backtest.SummaryMetrics) []Card {
	return []Card{
		{
			Label:       "Net Return",
			Value:       FormatPercent(m.NetReturnPct),
			Indicator:   direction(m.NetReturnPct),
			Description: "Overall portfolio performance",
		},
		{
			Label:       "Benchmark Return",
			Value:       FormatPercent(m.BenchmarkReturnPct),
			Indicator:   direction(m.BenchmarkReturnPct),
			Description: "Market comparison",
		},
		{
			Label:       "CAGR",
			Value:       FormatPercent(m.CAGRPct),
			Indicator:   direction(m.CAGRPct),
			Description: "Compound Annual Growth Rate",
		},
		{
			Label:       "Sharpe Ratio",
			Value:       FormatRatio(m.SharpeRatio),
			Indicator:   sharpe(m.SharpeRatio),
			Description: "Risk-adjusted return",
		},
	}
}

// FormatPercent renders a value already in percentage units, e.g. 5 → "5.00%".
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// FormatRatio renders a ratio with two decimals.
func FormatRatio(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// direction is Up for positive values; zero counts as down.
func direction(v float64) Indicator {
	if v > 0 {
		return Up
	}
	return Down
}

func sharpe(v float64) Indicator {
	if v > SharpeThreshold {
		return Pass
	}
	return Caution
}
