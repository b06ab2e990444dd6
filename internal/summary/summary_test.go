package summary

import (
	"testing"

	"github.com/newthinker/quantlens/internal/backtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_MixedScenario(t *testing.T) {
	m := backtest.SummaryMetrics{
		NetReturnPct:       -3.2,
		BenchmarkReturnPct: 5.0,
		CAGRPct:            1.1,
		SharpeRatio:        0.6,
	}
	orig := m

	cards := Format(m)
	require.Len(t, cards, 4)

	want := []struct {
		label, value string
		ind          Indicator
		symbol       string
	}{
		{"Net Return", "-3.20%", Down, "↓"},
		{"Benchmark Return", "5.00%", Up, "↑"},
		{"CAGR", "1.10%", Up, "↑"},
		{"Sharpe Ratio", "0.60", Caution, "!"},
	}
	for i, w := range want {
		assert.Equal(t, w.label, cards[i].Label)
		assert.Equal(t, w.value, cards[i].Value)
		assert.Equal(t, w.ind, cards[i].Indicator)
		assert.Equal(t, w.symbol, cards[i].Symbol())
		assert.NotEmpty(t, cards[i].Description)
	}
	assert.Equal(t, orig, m)
}

func TestFormat_Boundaries(t *testing.T) {
	tests := []struct {
		name   string
		m      backtest.SummaryMetrics
		net    Indicator
		sharpe Indicator
	}{
		{"zero is down", backtest.SummaryMetrics{NetReturnPct: 0, SharpeRatio: 1}, Down, Caution},
		{"just above", backtest.SummaryMetrics{NetReturnPct: 0.001, SharpeRatio: 1.0001}, Up, Pass},
		{"negative sharpe", backtest.SummaryMetrics{NetReturnPct: 12, SharpeRatio: -0.4}, Up, Caution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards := Format(tt.m)
			assert.Equal(t, tt.net, cards[0].Indicator)
			assert.Equal(t, tt.sharpe, cards[3].Indicator)
		})
	}
}

func TestIndicator(t *testing.T) {
	assert.True(t, Up.Good())
	assert.True(t, Pass.Good())
	assert.False(t, Down.Good())
	assert.False(t, Caution.Good())
	assert.Equal(t, "✓", Pass.Symbol())
	assert.Empty(t, Indicator("other").Symbol())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "12.35%", FormatPercent(12.346))
	assert.Equal(t, "-0.50%", FormatPercent(-0.5))
	assert.Equal(t, "1.57", FormatRatio(1.5678))
}
