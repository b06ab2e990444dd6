package backtest

import (
	"fmt"
	"math"

	"github.com/newthinker/quantlens/internal/core"
)

const tradingDaysPerYear = 252

// DeriveMetrics computes summary metrics from a ledger when the backtest
// service did not supply them. Returns are relative to the first entry.
func DeriveMetrics(ledger []LedgerEntry) (SummaryMetrics, error) {
	if len(ledger) == 0 {
		return SummaryMetrics{}, core.ErrNoData
	}

	first, last := ledger[0], ledger[len(ledger)-1]
	if first.PortfolioValue <= 0 {
		return SummaryMetrics{}, core.WrapError(core.ErrNoData,
			fmt.Errorf("initial portfolio value must be positive, got %v", first.PortfolioValue))
	}

	m := SummaryMetrics{
		NetReturnPct: (last.PortfolioValue/first.PortfolioValue - 1) * 100,
	}
	if first.BenchmarkValue > 0 {
		m.BenchmarkReturnPct = (last.BenchmarkValue/first.BenchmarkValue - 1) * 100
	}

	start, errStart := first.Time()
	end, errEnd := last.Time()
	if errStart == nil && errEnd == nil && end.After(start) {
		years := end.Sub(start).Hours() / 24 / 365.25
		m.CAGRPct = (math.Pow(last.PortfolioValue/first.PortfolioValue, 1/years) - 1) * 100
	}

	m.SharpeRatio = calculateSharpeRatio(dailyReturns(ledger))
	return m, nil
}

// dailyReturns converts consecutive portfolio values into simple returns,
// skipping days that follow a non-positive value.
func dailyReturns(ledger []LedgerEntry) []float64 {
	if len(ledger) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(ledger)-1)
	for i := 1; i < len(ledger); i++ {
		prev := ledger[i-1].PortfolioValue
		if prev <= 0 {
			continue
		}
		returns = append(returns, ledger[i].PortfolioValue/prev-1)
	}
	return returns
}

// calculateSharpeRatio computes risk-adjusted return
// Assumes risk-free rate of 0 for simplicity
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))

	if stdDev == 0 {
		return 0
	}

	annualizedReturn := mean * tradingDaysPerYear
	annualizedStdDev := stdDev * math.Sqrt(tradingDaysPerYear)

	return annualizedReturn / annualizedStdDev
}
