package chart

import "strings"

// hiddenAll encodes a Visibility with no series shown.
const hiddenAll = "none"

// Visibility is the per-series display toggle state. Changing it never
// alters the materialized series.
type Visibility struct {
	Portfolio bool `json:"portfolio_value"`
	Benchmark bool `json:"benchmark_value"`
	Positions bool `json:"num_positions"`
	Cash      bool `json:"cash"`
	Invested  bool `json:"invested"`
}

// DefaultVisibility shows the portfolio and benchmark series.
func DefaultVisibility() Visibility {
	return Visibility{Portfolio: true, Benchmark: true}
}

func (v *Visibility) flag(key SeriesKey) *bool {
	switch key {
	case Portfolio:
		return &v.Portfolio
	case Benchmark:
		return &v.Benchmark
	case Positions:
		return &v.Positions
	case Cash:
		return &v.Cash
	case Invested:
		return &v.Invested
	}
	return nil
}

// Visible reports whether key is shown.
func (v Visibility) Visible(key SeriesKey) bool {
	if f := v.flag(key); f != nil {
		return *f
	}
	return false
}

// Toggle returns v with key flipped. Unknown keys are ignored.
func (v Visibility) Toggle(key SeriesKey) Visibility {
	if f := v.flag(key); f != nil {
		*f = !*f
	}
	return v
}

// Shown lists the visible keys in drawing order.
func (v Visibility) Shown() []SeriesKey {
	var out []SeriesKey
	for _, k := range Keys {
		if v.Visible(k) {
			out = append(out, k)
		}
	}
	return out
}

// String encodes v for a URL query, e.g. "portfolio_value,cash".
func (v Visibility) String() string {
	shown := v.Shown()
	if len(shown) == 0 {
		return hiddenAll
	}
	parts := make([]string, len(shown))
	for i, k := range shown {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

// ParseVisibility decodes a value produced by String. An empty string
// yields the default.
func ParseVisibility(s string) Visibility {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultVisibility()
	}
	var v Visibility
	if s == hiddenAll {
		return v
	}
	for _, part := range strings.Split(s, ",") {
		if f := v.flag(SeriesKey(strings.TrimSpace(part))); f != nil {
			*f = true
		}
	}
	return v
}
