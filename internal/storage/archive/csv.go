package archive

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/newthinker/quantlens/internal/backtest"
)

// csvTable is a CSV file with a header row, as written by a dataframe
// export. Unknown columns, including an unnamed index column, are ignored.
type csvTable struct {
	cols map[string]int
	rows [][]string
}

func parseCSV(data []byte) (*csvTable, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("missing header row")
	}

	t := &csvTable{cols: make(map[string]int), rows: records[1:]}
	for i, name := range records[0] {
		t.cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	return t, nil
}

func (t *csvTable) require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := t.cols[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// field returns the trimmed cell of column name, or "" if absent.
func (t *csvTable) field(row []string, name string) string {
	i, ok := t.cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *csvTable) float(row []string, name string) (float64, error) {
	v, err := strconv.ParseFloat(t.field(row, name), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	// Required columns must hold a finite value.
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: missing value", name)
	}
	return v, nil
}

// optFloat treats empty and NaN cells as null.
func (t *csvTable) optFloat(row []string, name string) (*float64, error) {
	s := t.field(row, name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	return &v, nil
}

func ledgerFromCSV(data []byte) ([]backtest.LedgerEntry, error) {
	t, err := parseCSV(data)
	if err != nil {
		return nil, err
	}
	if err := t.require("date", "portfolio_value", "cash", "invested", "num_positions"); err != nil {
		return nil, err
	}
	benchmark := "benchmark_value"
	if _, ok := t.cols[benchmark]; !ok {
		benchmark = "SPY"
	}

	out := make([]backtest.LedgerEntry, 0, len(t.rows))
	for i, row := range t.rows {
		e := backtest.LedgerEntry{Date: t.field(row, "date")}
		var positions float64
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{"portfolio_value", &e.PortfolioValue},
			{"cash", &e.Cash},
			{"invested", &e.Invested},
			{"num_positions", &positions},
		} {
			if *f.dst, err = t.float(row, f.name); err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		e.NumPositions = int(math.Round(positions))
		if b, err := t.optFloat(row, benchmark); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		} else if b != nil {
			e.BenchmarkValue = *b
		}
		out = append(out, e)
	}
	return out, nil
}

func tradesFromCSV(data []byte) ([]backtest.TradeRecord, error) {
	t, err := parseCSV(data)
	if err != nil {
		return nil, err
	}
	if err := t.require("purchase_date", "sell_date", "symbol", "start_price", "end_price", "return"); err != nil {
		return nil, err
	}

	out := make([]backtest.TradeRecord, 0, len(t.rows))
	for i, row := range t.rows {
		r := backtest.TradeRecord{
			PurchaseDate: t.field(row, "purchase_date"),
			SellDate:     t.field(row, "sell_date"),
			Symbol:       t.field(row, "symbol"),
			Quarter:      t.field(row, "quarter"),
		}
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{"start_price", &r.StartPrice},
			{"end_price", &r.EndPrice},
			{"return", &r.ReturnPct},
		} {
			if *f.dst, err = t.float(row, f.name); err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		for _, f := range []struct {
			name string
			dst  **float64
		}{
			{"strat_edge", &r.StrategyEdge},
			{"confidence", &r.Confidence},
			{"baseline_return", &r.BaselineReturn},
		} {
			if *f.dst, err = t.optFloat(row, f.name); err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		out = append(out, r)
	}
	return out, nil
}
