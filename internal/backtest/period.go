package backtest

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	yearFirst    = regexp.MustCompile(`^(\d{4})_[Qq]([1-4])$`)
	quarterFirst = regexp.MustCompile(`^[Qq]([1-4])_(\d{4})$`)
)

// Period is a fiscal quarter used as a backtest range boundary.
type Period struct {
	Year    int
	Quarter int
}

// ParsePeriod accepts both "2021_Q1" and "Q1_2021".
func ParsePeriod(token string) (Period, error) {
	if m := yearFirst.FindStringSubmatch(token); m != nil {
		return newPeriod(m[1], m[2])
	}
	if m := quarterFirst.FindStringSubmatch(token); m != nil {
		return newPeriod(m[2], m[1])
	}
	return Period{}, fmt.Errorf("invalid period %q (expected YYYY_Qn or Qn_YYYY)", token)
}

func newPeriod(year, quarter string) (Period, error) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return Period{}, fmt.Errorf("invalid year %q: %w", year, err)
	}
	q, err := strconv.Atoi(quarter)
	if err != nil {
		return Period{}, fmt.Errorf("invalid quarter %q: %w", quarter, err)
	}
	return Period{Year: y, Quarter: q}, nil
}

// String returns the canonical YYYY_Qn form.
func (p Period) String() string {
	return fmt.Sprintf("%d_Q%d", p.Year, p.Quarter)
}

// Compare returns -1, 0 or 1 depending on chronological order.
func (p Period) Compare(other Period) int {
	a := p.Year*4 + p.Quarter
	b := other.Year*4 + other.Quarter
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Next returns the following quarter.
func (p Period) Next() Period {
	if p.Quarter == 4 {
		return Period{Year: p.Year + 1, Quarter: 1}
	}
	return Period{Year: p.Year, Quarter: p.Quarter + 1}
}
