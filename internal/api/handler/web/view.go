package web

import (
	"html/template"
	"net/url"
	"time"

	"github.com/newthinker/quantlens/internal/api/session"
	"github.com/newthinker/quantlens/internal/chart"
	"github.com/newthinker/quantlens/internal/pipeline"
	"github.com/newthinker/quantlens/internal/summary"
	"github.com/newthinker/quantlens/internal/table"
)

// viewState is the per-request presentation state carried in the query
// string: table sort and page, plus visible chart series.
type viewState struct {
	Table table.State
	Show  chart.Visibility
}

func parseViewState(q url.Values, pageSize int) viewState {
	st := table.ParseState(q)
	if q.Get("size") == "" {
		st = st.WithPageSize(pageSize)
	}
	return viewState{Table: st, Show: chart.ParseVisibility(q.Get("show"))}
}

func (v viewState) values() url.Values {
	q := v.Table.Values()
	q.Set("show", v.Show.String())
	return q
}

func (v viewState) href(path string) string {
	return path + "?" + v.values().Encode()
}

func (v viewState) withTable(st table.State) viewState {
	v.Table = st
	return v
}

// SeriesToggle is a legend entry that flips one series on or off.
type SeriesToggle struct {
	Key     chart.SeriesKey
	Label   string
	Color   string
	Visible bool
	Href    string
}

// HeaderLink is a sortable column header.
type HeaderLink struct {
	table.Header
	Href string
}

// Arrow is the sort indicator shown next to the active header.
func (h HeaderLink) Arrow() string {
	if !h.Active {
		return ""
	}
	if h.Direction == table.Descending {
		return "▼"
	}
	return "▲"
}

// PageSizeLink selects a page size.
type PageSizeLink struct {
	Size   int
	Active bool
	Href   string
}

// ResultsView is everything the results partial draws from one snapshot.
type ResultsView struct {
	Phase        pipeline.Phase
	ErrorCode    string
	ErrorMessage string
	UpdatedAt    time.Time
	HasData      bool

	Chart  template.HTML
	Series []SeriesToggle

	Cards          []summary.Card
	MetricsDerived bool

	Table     table.View
	Headers   []HeaderLink
	PrevHref  string
	NextHref  string
	PageSizes []PageSizeLink
}

// Pending reports whether a request is in flight.
func (v ResultsView) Pending() bool { return v.Phase == pipeline.PhasePending }

// Failed reports whether the latest request failed.
func (v ResultsView) Failed() bool { return v.Phase == pipeline.PhaseFailed }

// PageNumber is the 1-based current table page.
func (v ResultsView) PageNumber() int { return v.Table.State.Page + 1 }

// Idle reports whether nothing has been requested yet.
func (v ResultsView) Idle() bool { return v.Phase == pipeline.PhaseIdle }

// buildResults renders the current snapshot of res for the page at path.
func buildResults(res *session.Results, st viewState, path string) ResultsView {
	state := res.Pipeline.State()
	view := ResultsView{
		Phase:          state.Phase,
		ErrorCode:      state.ErrorCode,
		ErrorMessage:   state.ErrorMessage,
		UpdatedAt:      state.UpdatedAt,
		HasData:        state.HasData(),
		MetricsDerived: state.MetricsDerived,
	}

	c := res.Chart.Chart()
	view.Chart = c.Render(st.Show, chart.DefaultSize)
	for _, key := range chart.Keys {
		s, _ := c.Lookup(key)
		view.Series = append(view.Series, SeriesToggle{
			Key:     key,
			Label:   chart.Label(key),
			Color:   s.Color,
			Visible: st.Show.Visible(key),
			Href:    viewState{Table: st.Table, Show: st.Show.Toggle(key)}.href(path),
		})
	}

	if state.Metrics != nil {
		view.Cards = summary.Format(*state.Metrics)
	}

	view.Table = table.Build(state.Trades, st.Table)
	ts := view.Table.State
	for _, h := range view.Table.Headers {
		view.Headers = append(view.Headers, HeaderLink{Header: h, Href: st.withTable(h.Next).href(path)})
	}
	if view.Table.HasPrev() {
		view.PrevHref = st.withTable(ts.WithPage(ts.Page-1, view.Table.Total)).href(path)
	}
	if view.Table.HasNext() {
		view.NextHref = st.withTable(ts.WithPage(ts.Page+1, view.Table.Total)).href(path)
	}
	for _, size := range view.Table.PageSizes {
		view.PageSizes = append(view.PageSizes, PageSizeLink{
			Size:   size,
			Active: size == ts.PageSize,
			Href:   st.withTable(ts.WithPageSize(size)).href(path),
		})
	}
	return view
}
