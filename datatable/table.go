package datatable

import (
	"errors"
	"fmt"
	"log/slog"
)

const defaultFilterPlaceholder = "Filter…"

// tableConfig holds mutable state during Table construction.
type tableConfig struct {
	visibility  map[string]bool
	placeholder string
	logger      *slog.Logger
}

// Option configures a [Table] during construction.
type Option func(*tableConfig) error

// WithInitialVisibility seeds the column visibility map.
//
// The map is copied and consumed once; afterwards visibility is owned by the
// table and changed only through [Table.SetColumnVisible]. Columns without an
// entry start visible.
func WithInitialVisibility(visibility map[string]bool) Option {
	return func(cfg *tableConfig) error {
		for k, v := range visibility {
			cfg.visibility[k] = v
		}
		return nil
	}
}

// WithFilterPlaceholder sets the placeholder of the filter input.
// Defaults to "Filter…".
func WithFilterPlaceholder(placeholder string) Option {
	return func(cfg *tableConfig) error {
		cfg.placeholder = placeholder
		return nil
	}
}

// WithLogger sets the logger used to report panicking accessors and cell
// renderers.
// Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *tableConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// Table is a data table over rows of type T.
//
// Table holds the dataset supplied by its host, the column schema and the
// view state. The derived rows are memoized and recomputed after any change
// to the data or the view state.
//
// Table is not safe for concurrent use.
type Table[T any] struct {
	columns     []Column[T]
	index       map[string]int
	placeholder string
	logger      *slog.Logger

	state   ViewState
	rows    []T
	loading bool
	failed  bool

	derived []Row[T]
	fresh   bool
}

// New creates a [Table] for the given column schema.
//
// Returns an error if a column has no ID (and no field accessor to derive it
// from) or if two columns share an ID.
func New[T any](columns []Column[T], opts ...Option) (*Table[T], error) {
	cfg := &tableConfig{
		visibility:  make(map[string]bool),
		placeholder: defaultFilterPlaceholder,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	index := make(map[string]int, len(columns))
	for i, col := range columns {
		id := col.columnID()
		if id == "" {
			return nil, fmt.Errorf("column %d: id is required when the accessor is not a field", i)
		}
		if _, dup := index[id]; dup {
			return nil, fmt.Errorf("duplicate column id: %q", id)
		}
		index[id] = i
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	cp := make([]Column[T], len(columns))
	copy(cp, columns)
	for i := range cp {
		cp[i].ID = cp[i].columnID()
	}

	return &Table[T]{
		columns:     cp,
		index:       index,
		placeholder: cfg.placeholder,
		logger:      logger,
		state:       ViewState{Visibility: cfg.visibility},
	}, nil
}

// MustNew is like [New] but panics on an invalid schema.
func MustNew[T any](columns []Column[T], opts ...Option) *Table[T] {
	t, err := New(columns, opts...)
	if err != nil {
		panic("datatable: " + err.Error())
	}
	return t
}

// SetData replaces the dataset and the host-reported loading and error
// flags. The rows slice is never modified by the table.
//
// Passing the same slice and flags again keeps the memoized rows, so hosts
// may call SetData on every render. A slice whose contents changed in place
// must be passed as a new slice.
func (t *Table[T]) SetData(rows []T, isLoading, isError bool) {
	if t.fresh && isLoading == t.loading && isError == t.failed && sameSlice(rows, t.rows) {
		return
	}
	t.rows = rows
	t.loading = isLoading
	t.failed = isError
	t.fresh = false
}

// SetFilterText replaces the global filter text.
func (t *Table[T]) SetFilterText(text string) {
	t.state.FilterText = text
	t.fresh = false
}

// ToggleSort advances the sort cycle of a column.
//
// See [ViewState] for the cycle. ToggleSort is a no-op for unknown or
// non-sortable columns.
func (t *Table[T]) ToggleSort(columnID string) {
	col, ok := t.column(columnID)
	if !ok || !col.Sortable() {
		return
	}
	t.state.Sort = nextSort(t.state.Sort, columnID)
	t.fresh = false
}

// SetColumnVisible shows or hides a column. It is idempotent and does not
// affect the filter or the sort. Unknown columns are ignored, as are
// attempts to hide a column that is not hideable.
func (t *Table[T]) SetColumnVisible(columnID string, visible bool) {
	col, ok := t.column(columnID)
	if !ok || (!visible && !col.Hideable()) {
		return
	}
	t.state.Visibility[columnID] = visible
	t.fresh = false
}

// State returns a copy of the current view state.
func (t *Table[T]) State() ViewState {
	return t.state.clone()
}

// LeafColumns returns the full flat column list in schema order, hidden
// columns included.
func (t *Table[T]) LeafColumns() []Column[T] {
	cp := make([]Column[T], len(t.columns))
	copy(cp, t.columns)
	return cp
}

// VisibleColumns returns the visible columns in schema order.
func (t *Table[T]) VisibleColumns() []Column[T] {
	return visibleColumns(t.columns, t.state)
}

// Rows returns the derived rows for the current data and state.
func (t *Table[T]) Rows() []Row[T] {
	if !t.fresh {
		t.derived = derive(t.rows, t.columns, t.state, t.logger)
		t.fresh = true
	}
	return t.derived
}

// sameSlice reports whether a and b share the same backing array and length.
func sameSlice[T any](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

// column looks up a column by ID.
func (t *Table[T]) column(columnID string) (Column[T], bool) {
	i, ok := t.index[columnID]
	if !ok {
		return Column[T]{}, false
	}
	return t.columns[i], true
}
