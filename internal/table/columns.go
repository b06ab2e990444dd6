// Package table sorts, paginates and formats trade records for display.
// Every displayed field is described by a Column; the same descriptor drives
// comparison and formatting.
package table

import (
	"math"

	"github.com/newthinker/quantlens/internal/backtest"
)

// Kind determines how a column's values compare and render.
type Kind string

const (
	KindText          Kind = "text"
	KindDate          Kind = "date"
	KindNumber        Kind = "number"
	KindCurrency      Kind = "currency"
	KindPercent       Kind = "percent"
	KindSignedPercent Kind = "signed_percent"
)

// Numeric reports whether values of this kind compare as numbers.
func (k Kind) Numeric() bool {
	switch k {
	case KindNumber, KindCurrency, KindPercent, KindSignedPercent:
		return true
	default:
		return false
	}
}

// Align is the horizontal alignment of a column.
type Align string

const (
	AlignLeft  Align = "left"
	AlignRight Align = "right"
)

// Value is one field of one record. Present is false for null or absent
// values, which always sort last.
type Value struct {
	Num     float64
	Str     string
	Present bool
}

// num treats NaN as absent so it sorts with the nulls.
func num(v float64) Value { return Value{Num: v, Present: !math.IsNaN(v)} }
func str(s string) Value  { return Value{Str: s, Present: s != ""} }

func numPtr(v *float64) Value {
	if v == nil {
		return Value{}
	}
	return num(*v)
}

// Column describes one displayed field.
type Column struct {
	Key   string
	Label string
	Kind  Kind
	Align Align
	// Emphasis marks the column whose cells stand out, such as the symbol.
	Emphasis bool
	value    func(backtest.TradeRecord) Value
}

// Value extracts this column's field from r.
func (c Column) Value(r backtest.TradeRecord) Value {
	return c.value(r)
}

// Column keys.
const (
	KeySymbol       = "symbol"
	KeyPurchaseDate = "purchase_date"
	KeySellDate     = "sell_date"
	KeyStartPrice   = "start_price"
	KeyEndPrice     = "end_price"
	KeyReturn       = "return"
	KeyStrategyEdge = "strat_edge"
	KeyConfidence   = "confidence"
)

var columns = []Column{
	{Key: KeySymbol, Label: "Symbol", Kind: KindText, Align: AlignLeft, Emphasis: true,
		value: func(r backtest.TradeRecord) Value { return str(r.Symbol) }},
	{Key: KeyPurchaseDate, Label: "Purchase Date", Kind: KindDate, Align: AlignLeft,
		value: func(r backtest.TradeRecord) Value { return str(r.PurchaseDate) }},
	{Key: KeySellDate, Label: "Sell Date", Kind: KindDate, Align: AlignLeft,
		value: func(r backtest.TradeRecord) Value { return str(r.SellDate) }},
	{Key: KeyStartPrice, Label: "Start Price", Kind: KindCurrency, Align: AlignRight,
		value: func(r backtest.TradeRecord) Value { return num(r.StartPrice) }},
	{Key: KeyEndPrice, Label: "End Price", Kind: KindCurrency, Align: AlignRight,
		value: func(r backtest.TradeRecord) Value { return num(r.EndPrice) }},
	{Key: KeyReturn, Label: "Return", Kind: KindSignedPercent, Align: AlignRight,
		value: func(r backtest.TradeRecord) Value { return num(r.ReturnPct) }},
	{Key: KeyStrategyEdge, Label: "Edge", Kind: KindSignedPercent, Align: AlignRight,
		value: func(r backtest.TradeRecord) Value { return numPtr(r.StrategyEdge) }},
	{Key: KeyConfidence, Label: "Confidence", Kind: KindPercent, Align: AlignLeft,
		value: func(r backtest.TradeRecord) Value { return numPtr(r.Confidence) }},
}

// Columns returns the displayed columns in order.
func Columns() []Column {
	return append([]Column(nil), columns...)
}

// Lookup finds a column by key.
func Lookup(key string) (Column, bool) {
	for _, c := range columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}
