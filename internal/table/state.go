package table

import (
	"net/url"
	"strconv"
)

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// PageSizes are the selectable page sizes.
var PageSizes = []int{10, 25, 50}

// DefaultPageSize is used when no valid page size is given.
const DefaultPageSize = 10

// State is the sort and pagination state of a table view. It is a plain
// value: transitions return a new State.
type State struct {
	SortKey   string    `json:"sort"`
	Direction Direction `json:"dir"`
	Page      int       `json:"page"`
	PageSize  int       `json:"size"`
}

// DefaultState sorts by purchase date, ascending, first page.
func DefaultState() State {
	return State{
		SortKey:   KeyPurchaseDate,
		Direction: Ascending,
		Page:      0,
		PageSize:  DefaultPageSize,
	}
}

// Click returns the state after clicking a column header: the active
// column flips direction, any other column becomes active ascending.
// Unknown keys leave the state unchanged.
func (s State) Click(key string) State {
	if _, ok := Lookup(key); !ok {
		return s
	}
	if s.SortKey == key {
		if s.Direction == Ascending {
			s.Direction = Descending
		} else {
			s.Direction = Ascending
		}
		return s
	}
	s.SortKey = key
	s.Direction = Ascending
	return s
}

// WithPageSize changes the page size and resets to the first page. Sizes
// outside PageSizes are ignored.
func (s State) WithPageSize(size int) State {
	if !validPageSize(size) {
		return s
	}
	s.PageSize = size
	s.Page = 0
	return s
}

// WithPage moves to page, clamped to the valid range for total records.
func (s State) WithPage(page, total int) State {
	s.Page = ClampPage(page, total, s.PageSize)
	return s
}

// Normalize replaces invalid fields with defaults.
func (s State) Normalize() State {
	def := DefaultState()
	if _, ok := Lookup(s.SortKey); !ok {
		s.SortKey = def.SortKey
	}
	if s.Direction != Ascending && s.Direction != Descending {
		s.Direction = def.Direction
	}
	if !validPageSize(s.PageSize) {
		s.PageSize = def.PageSize
	}
	if s.Page < 0 {
		s.Page = 0
	}
	return s
}

// Values encodes the state as URL query values.
func (s State) Values() url.Values {
	v := url.Values{}
	v.Set("sort", s.SortKey)
	v.Set("dir", string(s.Direction))
	v.Set("page", strconv.Itoa(s.Page))
	v.Set("size", strconv.Itoa(s.PageSize))
	return v
}

// ParseState decodes a state written by Values. Missing or invalid fields
// fall back to defaults.
func ParseState(v url.Values) State {
	s := DefaultState()
	if key := v.Get("sort"); key != "" {
		s.SortKey = key
	}
	if dir := v.Get("dir"); dir != "" {
		s.Direction = Direction(dir)
	}
	if size, err := strconv.Atoi(v.Get("size")); err == nil {
		s.PageSize = size
	}
	if page, err := strconv.Atoi(v.Get("page")); err == nil {
		s.Page = page
	}
	return s.Normalize()
}

func validPageSize(size int) bool {
	for _, n := range PageSizes {
		if n == size {
			return true
		}
	}
	return false
}
