package table

import "github.com/newthinker/quantlens/internal/backtest"

// EmptyMessage is shown instead of a table when there are no records.
const EmptyMessage = "No transaction data available."

// Header is a column header with its sort indicator.
type Header struct {
	Column
	Active    bool
	Direction Direction
	// Next is the state after clicking this header.
	Next State
}

// View is a fully formatted page of the table.
type View struct {
	Empty     bool
	Message   string
	Headers   []Header
	Rows      [][]Cell
	State     State
	Total     int
	PageCount int
	// First and Last are 1-based row numbers of the current page.
	First, Last int
	PageSizes   []int
}

// HasPrev reports whether a previous page exists.
func (v View) HasPrev() bool { return v.State.Page > 0 }

// HasNext reports whether a following page exists.
func (v View) HasNext() bool { return v.State.Page < v.PageCount-1 }

// Build sorts, paginates and formats records according to state. The input
// slice is not modified.
func Build(records []backtest.TradeRecord, state State) View {
	state = state.Normalize()
	if len(records) == 0 {
		state.Page = 0
		return View{Empty: true, Message: EmptyMessage, State: state, PageCount: 1, PageSizes: PageSizes}
	}

	sorted := Sort(records, state.SortKey, state.Direction)
	rows, page := Paginate(sorted, state.Page, state.PageSize)
	state.Page = page

	view := View{
		State:     state,
		Total:     len(records),
		PageCount: PageCount(len(records), state.PageSize),
		First:     page*state.PageSize + 1,
		Last:      page*state.PageSize + len(rows),
		PageSizes: PageSizes,
	}

	for _, col := range columns {
		dir := Ascending
		if col.Key == state.SortKey {
			dir = state.Direction
		}
		view.Headers = append(view.Headers, Header{
			Column:    col,
			Active:    col.Key == state.SortKey,
			Direction: dir,
			Next:      state.Click(col.Key),
		})
	}

	view.Rows = make([][]Cell, 0, len(rows))
	for _, r := range rows {
		cells := make([]Cell, len(columns))
		for i, col := range columns {
			cells[i] = FormatCell(col, r)
		}
		view.Rows = append(view.Rows, cells)
	}
	return view
}
