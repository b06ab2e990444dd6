// Package chart turns ledger entries into a multi-series time chart and
// renders it as inline SVG.
package chart

import (
	"time"

	"github.com/newthinker/quantlens/internal/backtest"
	"go.uber.org/zap"
)

// SeriesKey identifies one of the ledger series.
type SeriesKey string

const (
	Portfolio SeriesKey = "portfolio_value"
	Benchmark SeriesKey = "benchmark_value"
	Positions SeriesKey = "num_positions"
	Cash      SeriesKey = "cash"
	Invested  SeriesKey = "invested"
)

// Keys lists all series in drawing order.
var Keys = []SeriesKey{Portfolio, Benchmark, Positions, Cash, Invested}

// Scale is the vertical axis a series is plotted against.
type Scale string

const (
	// ScaleMoney is the right-hand axis shared by all currency series.
	ScaleMoney Scale = "right"
	// ScaleCount is the left-hand axis for the position count.
	ScaleCount Scale = "left"
)

// Style is how a series is drawn.
type Style string

const (
	StyleArea Style = "area"
	StyleLine Style = "line"
)

type seriesDef struct {
	key   SeriesKey
	label string
	scale Scale
	style Style
	color string
	value func(backtest.LedgerEntry) float64
}

var defs = []seriesDef{
	{Portfolio, "Portfolio Value", ScaleMoney, StyleArea, "#4caf50",
		func(e backtest.LedgerEntry) float64 { return e.PortfolioValue }},
	{Benchmark, "Benchmark", ScaleMoney, StyleLine, "#ffffff",
		func(e backtest.LedgerEntry) float64 { return e.BenchmarkValue }},
	{Positions, "Number of Positions", ScaleCount, StyleLine, "#dce6ff",
		func(e backtest.LedgerEntry) float64 { return float64(e.NumPositions) }},
	{Cash, "Cash Amount", ScaleMoney, StyleLine, "#b30d33",
		func(e backtest.LedgerEntry) float64 { return e.Cash }},
	{Invested, "Invested Amount", ScaleMoney, StyleLine, "#b605b9",
		func(e backtest.LedgerEntry) float64 { return e.Invested }},
}

// Point is one dated value.
type Point struct {
	Date  string    `json:"date"`
	Time  time.Time `json:"-"`
	Value float64   `json:"value"`
}

// Series is one materialized line or area.
type Series struct {
	Key    SeriesKey `json:"key"`
	Label  string    `json:"label"`
	Scale  Scale     `json:"scale"`
	Style  Style     `json:"style"`
	Color  string    `json:"color"`
	Points []Point   `json:"points"`
}

// Chart holds every series for one data set. It is built once per data
// update and is not modified afterwards.
type Chart struct {
	Series []Series
	// Start and End bound the time axis.
	Start, End time.Time
}

// Build materializes all series from entries, in delivered order. Entries
// whose date cannot be parsed are skipped and logged.
func Build(entries []backtest.LedgerEntry, logger *zap.Logger) *Chart {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Chart{Series: make([]Series, len(defs))}
	for i, d := range defs {
		c.Series[i] = Series{
			Key:    d.key,
			Label:  d.label,
			Scale:  d.scale,
			Style:  d.style,
			Color:  d.color,
			Points: make([]Point, 0, len(entries)),
		}
	}

	for i, e := range entries {
		t, err := e.Time()
		if err != nil {
			logger.Warn("skipping ledger entry with invalid date",
				zap.Int("index", i),
				zap.String("date", e.Date),
				zap.Error(err),
			)
			continue
		}
		if c.Start.IsZero() || t.Before(c.Start) {
			c.Start = t
		}
		if c.End.IsZero() || t.After(c.End) {
			c.End = t
		}
		for j, d := range defs {
			c.Series[j].Points = append(c.Series[j].Points, Point{
				Date:  e.Day(),
				Time:  t,
				Value: d.value(e),
			})
		}
	}
	return c
}

// Len is the number of plotted dates.
func (c *Chart) Len() int {
	if c == nil || len(c.Series) == 0 {
		return 0
	}
	return len(c.Series[0].Points)
}

// Empty reports whether there is nothing to plot.
func (c *Chart) Empty() bool { return c.Len() == 0 }

// Lookup returns the series for key.
func (c *Chart) Lookup(key SeriesKey) (Series, bool) {
	if c == nil {
		return Series{}, false
	}
	for _, s := range c.Series {
		if s.Key == key {
			return s, true
		}
	}
	return Series{}, false
}

// Label returns the display label for key.
func Label(key SeriesKey) string {
	for _, d := range defs {
		if d.key == key {
			return d.label
		}
	}
	return string(key)
}
