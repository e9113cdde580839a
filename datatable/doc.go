// Package datatable provides a generic, server-rendered data table.
//
// A [Table] takes an arbitrary typed dataset plus a column schema and derives
// a filtered, sorted and column-projected view of it. The derivation is a pure
// three-stage pipeline (see [Derive]):
//
//  1. Filter: keep rows whose visible cells contain the filter text
//     (Unicode case-insensitive substring match)
//  2. Sort: stable sort by the single active sort column, if any
//  3. Project: keep only the visible columns, in schema order
//
// The table owns three independent pieces of view state: the global filter
// text, the sort specification and the column visibility map. Each has its
// own setter ([Table.SetFilterText], [Table.ToggleSort],
// [Table.SetColumnVisible]) and none of them resets the others.
//
// # Columns
//
// Column values are resolved through an [Accessor], either a field accessor
// ([Field]) that reads a struct field or map key, or a function accessor
// ([Func]):
//
//	columns := []datatable.Column[Channel]{
//	    {Header: "Name", Accessor: datatable.Field[Channel]("name")},
//	    {ID: "source", Header: "Source", Accessor: datatable.Func(func(c Channel) any {
//	        return c.Source
//	    })},
//	}
//	table, err := datatable.New(columns,
//	    datatable.WithInitialVisibility(map[string]bool{"revision": false}),
//	)
//
// # Rendering
//
// [Table.View] returns a render model and [Table.Render] writes it as HTML.
// The body shows, in priority order, a loading placeholder, an error
// placeholder, an empty placeholder, or the derived rows.
//
// A Table is not safe for concurrent use. Hosts serving several goroutines
// must serialize access to a table.
package datatable
