package table

import "github.com/newthinker/quantlens/internal/backtest"

// PageCount is the number of pages needed for total records; an empty set
// still has one (empty) page.
func PageCount(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// ClampPage limits page to [0, PageCount-1].
func ClampPage(page, total, size int) int {
	last := PageCount(total, size) - 1
	switch {
	case page < 0:
		return 0
	case page > last:
		return last
	default:
		return page
	}
}

// Paginate returns the rows of page (after clamping) and the clamped page
// index. The slice aliases records.
func Paginate(records []backtest.TradeRecord, page, size int) ([]backtest.TradeRecord, int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	page = ClampPage(page, len(records), size)

	start := page * size
	if start >= len(records) {
		return nil, page
	}
	end := min(start+size, len(records))
	return records[start:end], page
}
