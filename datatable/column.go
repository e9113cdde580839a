package datatable

import (
	"html/template"
	"reflect"
	"runtime/debug"
	"strings"
)

// Accessor resolves the value of a column from a row.
//
// Accessor is a tagged variant: it is either a field accessor created with
// [Field] or a function accessor created with [Func]. The zero Accessor
// resolves every row to nil.
type Accessor[T any] struct {
	field string
	path  []string
	fn    func(T) any
}

// Field returns an [Accessor] that reads a named field from each row.
//
// The name is matched against struct fields by Go name first, then by the
// name in the field's json tag. Map rows with string keys are looked up by
// key. Dotted names ("sourceConnector.transportName") walk nested values.
// Pointers are dereferenced; a nil pointer or missing field resolves to nil.
func Field[T any](name string) Accessor[T] {
	return Accessor[T]{
		field: name,
		path:  strings.Split(name, "."),
	}
}

// Func returns an [Accessor] that computes the value with fn.
func Func[T any](fn func(T) any) Accessor[T] {
	return Accessor[T]{fn: fn}
}

// FieldName returns the field name of a field accessor, or "" for
// function accessors.
func (a Accessor[T]) FieldName() string {
	return a.field
}

// Resolve returns the value of the accessor for row.
//
// Resolve never panics: a panicking accessor function resolves to nil.
// Tables log such panics; see [WithLogger].
func (a Accessor[T]) Resolve(row T) any {
	value, _, _ := a.resolve(row)
	return value
}

// resolve is Resolve that also reports a recovered panic and its stack.
func (a Accessor[T]) resolve(row T) (value, recovered any, stack []byte) {
	defer func() {
		if r := recover(); r != nil {
			value, recovered, stack = nil, r, debug.Stack()
		}
	}()

	switch {
	case a.fn != nil:
		return normalize(a.fn(row)), nil, nil
	case len(a.path) > 0:
		return normalize(resolvePath(reflect.ValueOf(row), a.path)), nil, nil
	default:
		return nil, nil, nil
	}
}

// resolvePath walks struct fields and map keys along path.
func resolvePath(v reflect.Value, path []string) any {
	for _, part := range path {
		v = indirect(v)
		if !v.IsValid() {
			return nil
		}

		switch v.Kind() {
		case reflect.Struct:
			f, ok := structField(v, part)
			if !ok {
				return nil
			}
			v = f
		case reflect.Map:
			if v.Type().Key().Kind() != reflect.String {
				return nil
			}
			mv := v.MapIndex(reflect.ValueOf(part).Convert(v.Type().Key()))
			if !mv.IsValid() {
				return nil
			}
			v = mv
		default:
			return nil
		}
	}

	v = indirect(v)
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

// structField finds a field by Go name, then by json tag name.
func structField(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	if sf, ok := t.FieldByName(name); ok && sf.IsExported() {
		return v.FieldByIndex(sf.Index), true
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// indirect dereferences pointers and interfaces. Returns the zero Value
// for nil.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// normalize turns typed nils (nil pointers, maps, slices) into untyped nil
// and dereferences non-nil pointers.
func normalize(value any) any {
	if value == nil {
		return nil
	}
	v := indirect(reflect.ValueOf(value))
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	if !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

// CellFunc renders the body cell of a column. value is the column's resolved
// value (nil when missing) and row is the source row.
type CellFunc[T any] func(value any, row T) template.HTML

// Column describes how to extract, label and render one column.
//
// Columns are pure description and carry no state. The zero values of the
// boolean fields give a sortable, hideable column.
type Column[T any] struct {
	// ID uniquely identifies the column within a schema. When empty, the
	// field name of a [Field] accessor is used.
	ID string

	// Header is the header label.
	Header string

	// HeaderFunc, when set, renders the header cell instead of Header.
	HeaderFunc func() template.HTML

	// Accessor resolves the column value used for display, sorting and
	// filtering.
	Accessor Accessor[T]

	// Cell, when set, renders body cells instead of the escaped value.
	Cell CellFunc[T]

	// DisableSorting makes the header inert: clicks never change the sort
	// and no indicator is rendered.
	DisableSorting bool

	// DisableHiding keeps the column visible regardless of visibility
	// toggles. It is still listed in the column menu.
	DisableHiding bool

	// Size is a layout hint (width in pixels). Zero means auto.
	Size int
}

// Sortable reports whether header clicks may sort by this column.
func (c Column[T]) Sortable() bool {
	return !c.DisableSorting
}

// Hideable reports whether the column may be hidden.
func (c Column[T]) Hideable() bool {
	return !c.DisableHiding
}

// columnID returns the effective ID of a column.
func (c Column[T]) columnID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Accessor.FieldName()
}

// headerHTML renders the header cell content.
func (c Column[T]) headerHTML() template.HTML {
	if c.HeaderFunc != nil {
		return c.HeaderFunc()
	}
	return template.HTML(template.HTMLEscapeString(c.Header))
}
