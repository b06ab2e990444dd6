package table

import (
	"github.com/newthinker/quantlens/internal/backtest"
	"github.com/shopspring/decimal"
)

// Tone classifies a signed value for coloring.
type Tone string

const (
	ToneNeutral  Tone = ""
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
)

// placeholder is shown for null values.
const placeholder = "—"

// Cell is one formatted table cell.
type Cell struct {
	Text     string
	Align    Align
	Tone     Tone
	Emphasis bool
	// Bar is the 0-100 width of a proportion indicator; HasBar reports
	// whether one is drawn.
	Bar    float64
	HasBar bool
}

// FormatCell renders the column's field of r.
func FormatCell(col Column, r backtest.TradeRecord) Cell {
	v := col.Value(r)
	cell := Cell{Align: col.Align, Emphasis: col.Emphasis}
	if !v.Present {
		cell.Text = placeholder
		return cell
	}

	switch col.Kind {
	case KindCurrency:
		cell.Text = FormatCurrency(v.Num)
	case KindPercent:
		cell.Text = FormatPercent(v.Num)
		cell.Bar = clamp(v.Num*100, 0, 100)
		cell.HasBar = true
	case KindSignedPercent:
		cell.Text = FormatSignedPercent(v.Num)
		cell.Tone = ToneOf(v.Num)
	case KindNumber:
		cell.Text = decimal.NewFromFloat(v.Num).String()
	case KindDate:
		cell.Text = backtest.DayOf(v.Str)
	default:
		cell.Text = v.Str
	}
	return cell
}

// FormatCurrency renders a price with two decimals, e.g. "$1234.50".
func FormatCurrency(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// FormatPercent renders a fraction as a percentage, e.g. 0.8 → "80.00%".
func FormatPercent(fraction float64) string {
	return percent(fraction).StringFixed(2) + "%"
}

// FormatSignedPercent is FormatPercent with an explicit sign for
// non-negative values, e.g. 0.05 → "+5.00%".
func FormatSignedPercent(fraction float64) string {
	p := percent(fraction)
	if p.IsNegative() {
		return p.StringFixed(2) + "%"
	}
	return "+" + p.StringFixed(2) + "%"
}

// ToneOf is positive for non-negative values and negative otherwise.
func ToneOf(v float64) Tone {
	if v < 0 {
		return ToneNegative
	}
	return TonePositive
}

func percent(fraction float64) decimal.Decimal {
	return decimal.NewFromFloat(fraction).Mul(decimal.NewFromInt(100)).Round(2)
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
