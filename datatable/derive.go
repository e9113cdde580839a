package datatable

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Cell is one projected cell of a derived row.
type Cell struct {
	// ColumnID identifies the column the cell belongs to.
	ColumnID string

	// Value is the resolved value, nil when missing.
	Value any
}

// Row is one row of the derived view.
type Row[T any] struct {
	// Index is the position of the row in the source dataset. It is used
	// as the rendering key.
	Index int

	// Original is the source row.
	Original T

	// Cells holds one cell per visible column, in schema order.
	Cells []Cell
}

// Derive computes the rows shown for the given state.
//
// Derive is a pure function: it never mutates rows or state. Rows are
// filtered against the visible columns only, sorted stably by the active
// sort column (nil values last in both directions), and projected onto the
// visible columns in schema order. Panicking accessors resolve to nil and
// are logged to [slog.Default].
func Derive[T any](rows []T, columns []Column[T], state ViewState) []Row[T] {
	return derive(rows, columns, state, slog.Default())
}

func derive[T any](rows []T, columns []Column[T], state ViewState, logger *slog.Logger) []Row[T] {
	resolve := cellResolver[T](logger)
	visible := visibleColumns(columns, state)
	indexes := filterRows(rows, visible, state.FilterText, resolve)
	sortRows(rows, indexes, columns, state.Sort, resolve)

	out := make([]Row[T], 0, len(indexes))
	for _, i := range indexes {
		cells := make([]Cell, len(visible))
		for j, col := range visible {
			cells[j] = Cell{
				ColumnID: col.columnID(),
				Value:    resolve(col, rows[i]),
			}
		}
		out = append(out, Row[T]{Index: i, Original: rows[i], Cells: cells})
	}
	return out
}

// cellResolver returns a function resolving a column for a row that logs
// accessor panics with a correlation ID.
func cellResolver[T any](logger *slog.Logger) func(Column[T], T) any {
	return func(col Column[T], row T) any {
		value, r, stack := col.Accessor.resolve(row)
		if r != nil {
			logger.Error("accessor panic",
				"correlation_id", uuid.NewString(),
				"column", col.columnID(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)
		}
		return value
	}
}

// visibleColumns returns the visible columns in schema order.
func visibleColumns[T any](columns []Column[T], state ViewState) []Column[T] {
	visible := make([]Column[T], 0, len(columns))
	for _, col := range columns {
		if !col.Hideable() || state.IsVisible(col.columnID()) {
			visible = append(visible, col)
		}
	}
	return visible
}

// filterRows returns the source indexes of the rows matching filterText.
func filterRows[T any](rows []T, visible []Column[T], filterText string, resolve func(Column[T], T) any) []int {
	indexes := make([]int, 0, len(rows))
	if filterText == "" {
		for i := range rows {
			indexes = append(indexes, i)
		}
		return indexes
	}

	needle := foldCase(filterText)
	for i, row := range rows {
		if rowMatches(row, visible, needle, resolve) {
			indexes = append(indexes, i)
		}
	}
	return indexes
}

// rowMatches reports whether any visible cell contains needle.
func rowMatches[T any](row T, visible []Column[T], needle string, resolve func(Column[T], T) any) bool {
	for _, col := range visible {
		s := Stringify(resolve(col, row))
		if s != "" && strings.Contains(foldCase(s), needle) {
			return true
		}
	}
	return false
}

// sortRows stably sorts indexes in place by the first sort entry.
func sortRows[T any](rows []T, indexes []int, columns []Column[T], entries []SortEntry, resolve func(Column[T], T) any) {
	if len(entries) == 0 || len(indexes) < 2 {
		return
	}

	entry := entries[0]
	var col *Column[T]
	for i := range columns {
		if columns[i].columnID() == entry.ColumnID {
			col = &columns[i]
			break
		}
	}
	if col == nil {
		return
	}

	// resolve keys once, aligned with indexes
	keys := make(map[int]any, len(indexes))
	for _, i := range indexes {
		keys[i] = resolve(*col, rows[i])
	}

	desc := entry.Direction == Descending
	sort.SliceStable(indexes, func(a, b int) bool {
		ka, kb := keys[indexes[a]], keys[indexes[b]]
		// nil sorts last regardless of direction
		switch {
		case ka == nil && kb == nil:
			return false
		case ka == nil:
			return false
		case kb == nil:
			return true
		}

		c := CompareValues(ka, kb)
		if desc {
			c = -c
		}
		return c < 0
	})
}
