package datatable

// Direction is the direction of a sort.
type Direction string

const (
	// Ascending sorts from the smallest to the largest value.
	Ascending Direction = "asc"

	// Descending sorts from the largest to the smallest value.
	Descending Direction = "desc"
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	return string(d)
}

// Indicator returns the glyph shown next to a sorted header.
func (d Direction) Indicator() string {
	switch d {
	case Ascending:
		return "↑"
	case Descending:
		return "↓"
	default:
		return ""
	}
}

// SortEntry selects the column and direction of a sort.
type SortEntry struct {
	ColumnID  string    `json:"column_id"`
	Direction Direction `json:"direction"`
}

// ViewState is the mutable view state of a [Table].
//
// The three fields are independent: changing one never resets the others.
type ViewState struct {
	// FilterText is the global filter. Empty means no filtering.
	FilterText string `json:"filter_text"`

	// Sort holds the active sort. Tables keep at most one entry; an empty
	// slice means the source order is kept.
	Sort []SortEntry `json:"sort"`

	// Visibility maps column IDs to their visibility. Columns without an
	// entry are visible.
	Visibility map[string]bool `json:"visibility"`
}

// IsVisible reports whether the column with the given ID is visible.
func (s ViewState) IsVisible(columnID string) bool {
	visible, ok := s.Visibility[columnID]
	return !ok || visible
}

// SortDirection returns the direction the column is sorted in, if it is the
// active sort column.
func (s ViewState) SortDirection(columnID string) (Direction, bool) {
	for _, e := range s.Sort {
		if e.ColumnID == columnID {
			return e.Direction, true
		}
	}
	return "", false
}

// clone returns a deep copy of the state.
func (s ViewState) clone() ViewState {
	cp := ViewState{FilterText: s.FilterText}
	if len(s.Sort) > 0 {
		cp.Sort = append([]SortEntry(nil), s.Sort...)
	}
	cp.Visibility = make(map[string]bool, len(s.Visibility))
	for k, v := range s.Visibility {
		cp.Visibility[k] = v
	}
	return cp
}

// nextSort returns the sort that follows a header click on columnID.
//
// A column cycles unsorted → ascending → descending → unsorted. Clicking a
// column other than the active one discards the active sort and starts the
// new column at ascending.
func nextSort(current []SortEntry, columnID string) []SortEntry {
	if len(current) == 0 || current[0].ColumnID != columnID {
		return []SortEntry{{ColumnID: columnID, Direction: Ascending}}
	}

	switch current[0].Direction {
	case Ascending:
		return []SortEntry{{ColumnID: columnID, Direction: Descending}}
	default:
		return nil
	}
}
