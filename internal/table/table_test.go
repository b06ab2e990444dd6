package table

import (
	"fmt"
	"math"
	"net/url"
	"testing"

	"github.com/newthinker/quantlens/internal/backtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trade(symbol, purchase string, ret float64, confidence *float64) backtest.TradeRecord {
	return backtest.TradeRecord{
		Symbol:       symbol,
		PurchaseDate: purchase,
		SellDate:     purchase,
		StartPrice:   10,
		EndPrice:     10 * (1 + ret),
		ReturnPct:    ret,
		StrategyEdge: backtest.Float(ret / 2),
		Confidence:   confidence,
	}
}

// dataset builds n records with repeating values so ties and nulls occur.
func dataset(n int) []backtest.TradeRecord {
	out := make([]backtest.TradeRecord, n)
	for i := range out {
		var conf *float64
		if i%4 != 0 {
			conf = backtest.Float(float64(i%7) / 10)
		}
		out[i] = trade(
			fmt.Sprintf("S%03d", (i*37)%11),
			fmt.Sprintf("2023-%02d-%02d", i%12+1, i%28+1),
			float64((i*13)%9-4)/100,
			conf,
		)
	}
	return out
}

func symbols(records []backtest.TradeRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Symbol
	}
	return out
}

func TestSort_NullConfidenceLastBothDirections(t *testing.T) {
	records := []backtest.TradeRecord{
		trade("BBB", "2024-01-01", 0.1, nil),
		trade("AAA", "2024-01-01", 0.1, backtest.Float(0.8)),
		trade("CCC", "2024-01-01", 0.1, backtest.Float(0.5)),
	}

	asc := Sort(records, KeyConfidence, Ascending)
	assert.Equal(t, []string{"CCC", "AAA", "BBB"}, symbols(asc))

	desc := Sort(records, KeyConfidence, Descending)
	assert.Equal(t, []string{"AAA", "CCC", "BBB"}, symbols(desc))
}

func TestSort_Numeric(t *testing.T) {
	records := []backtest.TradeRecord{
		trade("A", "2024-01-01", 0.10, nil),
		trade("B", "2024-01-01", -0.50, nil),
		trade("C", "2024-01-01", 0.02, nil),
	}
	// Lexicographic order of "0.1", "-0.5", "0.02" would differ.
	assert.Equal(t, []string{"B", "C", "A"}, symbols(Sort(records, KeyReturn, Ascending)))
	assert.Equal(t, []string{"A", "C", "B"}, symbols(Sort(records, KeyReturn, Descending)))
}

func TestSort_NaNSortsLikeNull(t *testing.T) {
	records := []backtest.TradeRecord{
		trade("AAA", "2024-01-01", 0.3, nil),
		trade("BBB", "2024-01-01", math.NaN(), nil),
		trade("CCC", "2024-01-01", 0.1, nil),
	}

	assert.Equal(t, []string{"CCC", "AAA", "BBB"}, symbols(Sort(records, KeyReturn, Ascending)))
	assert.Equal(t, []string{"AAA", "CCC", "BBB"}, symbols(Sort(records, KeyReturn, Descending)))

	cell := FormatCell(mustColumn(t, KeyReturn), records[1])
	assert.Equal(t, placeholder, cell.Text)
}

func TestSort_DatesLexicographic(t *testing.T) {
	records := []backtest.TradeRecord{
		trade("A", "2024-02-01", 0, nil),
		trade("B", "2023-12-31", 0, nil),
		trade("C", "2024-01-15", 0, nil),
	}
	assert.Equal(t, []string{"B", "C", "A"}, symbols(Sort(records, KeyPurchaseDate, Ascending)))
}

func TestSort_StableTies(t *testing.T) {
	records := []backtest.TradeRecord{
		trade("first", "2024-01-01", 0.1, nil),
		trade("second", "2024-01-01", 0.1, nil),
		trade("third", "2024-01-01", 0.1, nil),
	}
	assert.Equal(t, []string{"first", "second", "third"}, symbols(Sort(records, KeyReturn, Ascending)))
	assert.Equal(t, []string{"first", "second", "third"}, symbols(Sort(records, KeyReturn, Descending)))
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	records := dataset(20)
	before := symbols(records)

	Sort(records, KeySymbol, Descending)
	assert.Equal(t, before, symbols(records))
}

func TestSort_UnknownKeyKeepsOrder(t *testing.T) {
	records := dataset(5)
	assert.Equal(t, symbols(records), symbols(Sort(records, "nope", Ascending)))
}

func TestSort_PreservesMultisetAndIsIdempotent(t *testing.T) {
	records := dataset(73)

	for _, col := range Columns() {
		for _, dir := range []Direction{Ascending, Descending} {
			t.Run(col.Key+"/"+string(dir), func(t *testing.T) {
				once := Sort(records, col.Key, dir)
				twice := Sort(once, col.Key, dir)

				assert.ElementsMatch(t, records, once)
				assert.Equal(t, once, twice)
			})
		}
	}
}

func TestPaginate_ConcatenationReconstructsSortedData(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 49, 50, 51, 137} {
		for _, size := range PageSizes {
			t.Run(fmt.Sprintf("n=%d/size=%d", n, size), func(t *testing.T) {
				sorted := Sort(dataset(n), KeyConfidence, Descending)

				var joined []backtest.TradeRecord
				pages := PageCount(n, size)
				for page := 0; page < pages; page++ {
					rows, got := Paginate(sorted, page, size)
					require.Equal(t, page, got)
					assert.Len(t, rows, min(size, n-page*size))
					joined = append(joined, rows...)
				}
				assert.Equal(t, len(sorted), len(joined))
				if n > 0 {
					assert.Equal(t, sorted, joined)
				}
			})
		}
	}
}

func TestClampPage(t *testing.T) {
	assert.Equal(t, 0, ClampPage(-3, 100, 10))
	assert.Equal(t, 9, ClampPage(42, 100, 10))
	assert.Equal(t, 2, ClampPage(2, 25, 10))
	assert.Equal(t, 0, ClampPage(5, 0, 10))
}

func TestPaginate_ClampsOutOfRange(t *testing.T) {
	rows, page := Paginate(dataset(25), 99, 10)
	assert.Equal(t, 2, page)
	assert.Len(t, rows, 5)
}

func TestState_Click(t *testing.T) {
	s := DefaultState()

	s = s.Click(KeyPurchaseDate)
	assert.Equal(t, Descending, s.Direction, "active column toggles")

	s = s.Click(KeyPurchaseDate)
	assert.Equal(t, Ascending, s.Direction)

	s = s.Click(KeyPurchaseDate).Click(KeySymbol)
	assert.Equal(t, KeySymbol, s.SortKey)
	assert.Equal(t, Ascending, s.Direction, "new column starts ascending")

	assert.Equal(t, s, s.Click("unknown"))
}

func TestState_WithPageSize(t *testing.T) {
	s := DefaultState().WithPage(3, 100)
	require.Equal(t, 3, s.Page)

	s = s.WithPageSize(25)
	assert.Equal(t, 25, s.PageSize)
	assert.Equal(t, 0, s.Page, "changing page size resets page")

	unchanged := s.WithPage(1, 100).WithPageSize(7)
	assert.Equal(t, 25, unchanged.PageSize)
	assert.Equal(t, 1, unchanged.Page)
}

func TestState_ValuesRoundTrip(t *testing.T) {
	s := State{SortKey: KeyConfidence, Direction: Descending, Page: 2, PageSize: 50}
	assert.Equal(t, s, ParseState(s.Values()))
}

func TestParseState_InvalidFallsBack(t *testing.T) {
	s := ParseState(url.Values{
		"sort": {"password"},
		"dir":  {"sideways"},
		"size": {"13"},
		"page": {"-4"},
	})
	assert.Equal(t, DefaultState(), s)
}

func TestFormatCell(t *testing.T) {
	r := backtest.TradeRecord{
		Symbol:       "AAA",
		PurchaseDate: "2024-01-02T00:00:00",
		StartPrice:   1234.5,
		EndPrice:     99.999,
		ReturnPct:    -0.032,
		StrategyEdge: backtest.Float(0),
		Confidence:   backtest.Float(0.8),
	}

	cells := map[string]Cell{}
	for _, col := range Columns() {
		cells[col.Key] = FormatCell(col, r)
	}

	assert.Equal(t, "AAA", cells[KeySymbol].Text)
	assert.True(t, cells[KeySymbol].Emphasis)

	assert.Equal(t, "2024-01-02", cells[KeyPurchaseDate].Text)
	assert.Equal(t, "—", cells[KeySellDate].Text, "empty date renders as placeholder")

	assert.Equal(t, "$1234.50", cells[KeyStartPrice].Text)
	assert.Equal(t, "$100.00", cells[KeyEndPrice].Text)
	assert.Equal(t, AlignRight, cells[KeyStartPrice].Align)

	assert.Equal(t, "-3.20%", cells[KeyReturn].Text)
	assert.Equal(t, ToneNegative, cells[KeyReturn].Tone)
	assert.Equal(t, "+0.00%", cells[KeyStrategyEdge].Text)
	assert.Equal(t, TonePositive, cells[KeyStrategyEdge].Tone, "zero counts as non-negative")

	assert.Equal(t, "80.00%", cells[KeyConfidence].Text)
	assert.True(t, cells[KeyConfidence].HasBar)
	assert.InDelta(t, 80, cells[KeyConfidence].Bar, 1e-9)
}

func TestFormatCell_NullConfidence(t *testing.T) {
	col, ok := Lookup(KeyConfidence)
	require.True(t, ok)

	cell := FormatCell(col, backtest.TradeRecord{})
	assert.Equal(t, "—", cell.Text)
	assert.False(t, cell.HasBar)
}

func TestFormatCurrency_Negative(t *testing.T) {
	assert.Equal(t, "-$5.25", FormatCurrency(-5.25))
}

func TestBuild_Empty(t *testing.T) {
	v := Build(nil, DefaultState())
	assert.True(t, v.Empty)
	assert.Equal(t, EmptyMessage, v.Message)
	assert.Empty(t, v.Rows)
}

func TestBuild_PageAndHeaders(t *testing.T) {
	records := dataset(30)
	state := State{SortKey: KeySymbol, Direction: Descending, Page: 5, PageSize: 25}

	v := Build(records, state)
	require.False(t, v.Empty)
	assert.Equal(t, 1, v.State.Page, "page is clamped")
	assert.Equal(t, 2, v.PageCount)
	assert.Len(t, v.Rows, 5)
	assert.Equal(t, 26, v.First)
	assert.Equal(t, 30, v.Last)
	assert.True(t, v.HasPrev())
	assert.False(t, v.HasNext())

	require.Len(t, v.Headers, len(Columns()))
	for _, h := range v.Headers {
		if h.Key == KeySymbol {
			assert.True(t, h.Active)
			assert.Equal(t, Descending, h.Direction)
			assert.Equal(t, Ascending, h.Next.Direction)
		} else {
			assert.False(t, h.Active)
			assert.Equal(t, h.Key, h.Next.SortKey)
		}
	}

	// Rows of the last page are the tail of the descending symbol order.
	sorted := Sort(records, KeySymbol, Descending)
	for i, row := range v.Rows {
		assert.Equal(t, sorted[25+i].Symbol, row[0].Text)
	}
}

func mustColumn(t *testing.T, key string) Column {
	t.Helper()
	col, ok := Lookup(key)
	require.True(t, ok, "column %s", key)
	return col
}
