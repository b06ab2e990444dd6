package chart

import (
	"fmt"
	"html/template"
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Size is the SVG viewport in pixels.
type Size struct {
	Width  int
	Height int
}

// DefaultSize is used for sizes too small to hold the plot area.
var DefaultSize = Size{Width: 960, Height: 320}

const (
	marginTop    = 16
	marginBottom = 28
	marginLeft   = 56
	marginRight  = 72
	tickCount    = 5
	// scalePad is the fraction of the value span left empty above and
	// below the data.
	scalePad = 0.1
)

var printer = message.NewPrinter(language.English)

// FormatValue renders v as a rounded integer with thousands separators,
// e.g. 1234567.8 → "1,234,568".
func FormatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return printer.Sprintf("%d", int64(math.Round(v)))
}

func (s Size) normalize() Size {
	if s.Width <= marginLeft+marginRight || s.Height <= marginTop+marginBottom {
		return DefaultSize
	}
	return s
}

type extent struct {
	lo, hi float64
	ok     bool
}

func (e *extent) add(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	if !e.ok {
		e.lo, e.hi, e.ok = v, v, true
		return
	}
	e.lo = math.Min(e.lo, v)
	e.hi = math.Max(e.hi, v)
}

func (e extent) padded() extent {
	span := e.hi - e.lo
	if span == 0 {
		d := math.Max(math.Abs(e.hi)*scalePad, 1)
		return extent{lo: e.lo - d, hi: e.hi + d, ok: e.ok}
	}
	return extent{lo: e.lo - span*scalePad, hi: e.hi + span*scalePad, ok: e.ok}
}

type plot struct {
	x0, x1, y0, y1 float64
	start          time.Time
	span           float64
}

func (p plot) x(t time.Time) float64 {
	if p.span <= 0 {
		return (p.x0 + p.x1) / 2
	}
	return p.x0 + t.Sub(p.start).Seconds()/p.span*(p.x1-p.x0)
}

func (p plot) y(v float64, e extent) float64 {
	return p.y1 - (v-e.lo)/(e.hi-e.lo)*(p.y1-p.y0)
}

// Render draws the visible series as an inline SVG document. An empty
// chart renders nothing. Hidden series are skipped; their points are
// untouched.
func (c *Chart) Render(vis Visibility, size Size) template.HTML {
	if c.Empty() {
		return ""
	}
	size = size.normalize()

	p := plot{
		x0:    marginLeft,
		x1:    float64(size.Width - marginRight),
		y0:    marginTop,
		y1:    float64(size.Height - marginBottom),
		start: c.Start,
		span:  c.End.Sub(c.Start).Seconds(),
	}

	extents := map[Scale]extent{}
	for _, s := range c.Series {
		if !vis.Visible(s.Key) {
			continue
		}
		e := extents[s.Scale]
		for _, pt := range s.Points {
			e.add(pt.Value)
		}
		extents[s.Scale] = e
	}
	for k, e := range extents {
		extents[k] = e.padded()
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" class="chart" viewBox="0 0 %d %d" width="%d" height="%d" role="img" aria-label="Simulated portfolio history">`,
		size.Width, size.Height, size.Width, size.Height)
	fmt.Fprintf(&b, `<line class="axis" x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#334158"/>`, p.x0, p.y1, p.x1, p.y1)

	writeDateLabels(&b, p, c.Series[0].Points)
	if e, ok := extents[ScaleMoney]; ok && e.ok {
		writeTicks(&b, p, e, p.x1+6, "start")
	}
	if e, ok := extents[ScaleCount]; ok && e.ok {
		writeTicks(&b, p, e, p.x0-6, "end")
	}

	for _, s := range c.Series {
		if !vis.Visible(s.Key) {
			continue
		}
		if e := extents[s.Scale]; e.ok {
			writeSeries(&b, p, e, s)
		}
	}

	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}

func writeDateLabels(b *strings.Builder, p plot, points []Point) {
	idx := []int{0}
	if n := len(points); n > 1 {
		if n > 2 {
			idx = append(idx, n/2)
		}
		idx = append(idx, n-1)
	}
	for i, at := range idx {
		anchor := "middle"
		if len(idx) > 1 {
			switch i {
			case 0:
				anchor = "start"
			case len(idx) - 1:
				anchor = "end"
			}
		}
		pt := points[at]
		fmt.Fprintf(b, `<text class="tick" x="%.1f" y="%.1f" text-anchor="%s" fill="#cbd5e1" font-size="11">%s</text>`,
			p.x(pt.Time), p.y1+18, anchor, template.HTMLEscapeString(pt.Date))
	}
}

func writeTicks(b *strings.Builder, p plot, e extent, x float64, anchor string) {
	for i := 0; i < tickCount; i++ {
		v := e.lo + (e.hi-e.lo)*float64(i)/float64(tickCount-1)
		fmt.Fprintf(b, `<text class="tick" x="%.1f" y="%.1f" text-anchor="%s" dominant-baseline="middle" fill="#cbd5e1" font-size="11">%s</text>`,
			x, p.y(v, e), anchor, FormatValue(v))
	}
}

func writeSeries(b *strings.Builder, p plot, e extent, s Series) {
	var (
		path         strings.Builder
		drawn        int
		first        float64
		lastX, lastY float64
	)
	for _, pt := range s.Points {
		if math.IsNaN(pt.Value) || math.IsInf(pt.Value, 0) {
			continue
		}
		x, y := p.x(pt.Time), p.y(pt.Value, e)
		if drawn == 0 {
			first = x
			fmt.Fprintf(&path, "M%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&path, " L%.1f,%.1f", x, y)
		}
		lastX, lastY = x, y
		drawn++
	}

	label := template.HTMLEscapeString(s.Label)
	switch drawn {
	case 0:
		return
	case 1:
		fmt.Fprintf(b, `<circle class="series series-%s" cx="%.1f" cy="%.1f" r="3" fill="%s"><title>%s</title></circle>`,
			s.Key, lastX, lastY, s.Color, label)
		return
	}

	if s.Style == StyleArea {
		fmt.Fprintf(b, `<path class="area area-%s" d="%s L%.1f,%.1f L%.1f,%.1f Z" fill="%s" fill-opacity="0.25" stroke="none"/>`,
			s.Key, path.String(), lastX, p.y1, first, p.y1, s.Color)
	}
	fmt.Fprintf(b, `<path class="series series-%s" d="%s" fill="none" stroke="%s" stroke-width="2"><title>%s</title></path>`,
		s.Key, path.String(), s.Color, label)
}
