package table

import (
	"sort"
	"strings"

	"github.com/newthinker/quantlens/internal/backtest"
)

// Sort returns a sorted copy of records. Numeric columns compare by value,
// text and date columns lexicographically (ISO dates sort correctly). Null
// values go last in either direction and ties keep input order. An unknown
// key returns an unsorted copy.
func Sort(records []backtest.TradeRecord, key string, dir Direction) []backtest.TradeRecord {
	out := make([]backtest.TradeRecord, len(records))
	copy(out, records)

	col, ok := Lookup(key)
	if !ok {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(col, col.Value(out[i]), col.Value(out[j]), dir)
	})
	return out
}

// less orders a before b. Nulls are placed after every present value
// before direction is applied, so they stay last when descending.
func less(col Column, a, b Value, dir Direction) bool {
	if !a.Present || !b.Present {
		return a.Present && !b.Present
	}

	c := compare(col, a, b)
	if dir == Descending {
		return c > 0
	}
	return c < 0
}

func compare(col Column, a, b Value) int {
	if col.Kind.Numeric() {
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a.Str, b.Str)
}
