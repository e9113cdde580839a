package datatable

import (
	"fmt"
	"html/template"
	"io"
	"runtime/debug"
	"strconv"

	"github.com/google/uuid"
)

// Placeholder identifies the placeholder row shown instead of data rows.
type Placeholder int

const (
	// PlaceholderNone means data rows are shown.
	PlaceholderNone Placeholder = iota

	// PlaceholderLoading is shown while the host reports loading.
	PlaceholderLoading

	// PlaceholderError is shown when the host reports a load failure.
	PlaceholderError

	// PlaceholderEmpty is shown when no rows survive the filter.
	PlaceholderEmpty
)

// Text returns the message shown in the placeholder row.
func (p Placeholder) Text() string {
	switch p {
	case PlaceholderLoading:
		return "Loading…"
	case PlaceholderError:
		return "Failed to load data."
	case PlaceholderEmpty:
		return "No results."
	default:
		return ""
	}
}

// Class returns the CSS modifier class of the placeholder row.
func (p Placeholder) Class() string {
	switch p {
	case PlaceholderLoading:
		return "loading"
	case PlaceholderError:
		return "error"
	case PlaceholderEmpty:
		return "empty"
	default:
		return ""
	}
}

// Header is the render model of one header cell.
type Header struct {
	ColumnID  string
	Label     template.HTML
	Sortable  bool
	Direction Direction // empty unless this is the active sort column
	Size      int
}

// Indicator returns the sort glyph, empty when the column is not sorted.
func (h Header) Indicator() string {
	return h.Direction.Indicator()
}

// Toggle is the render model of one entry of the column menu.
type Toggle struct {
	ColumnID string
	Visible  bool
	Hideable bool
}

// BodyRow is the render model of one data row.
type BodyRow struct {
	Key   string
	Cells []template.HTML
}

// View is the render model of a [Table].
type View struct {
	FilterText        string
	FilterPlaceholder string
	Toggles           []Toggle
	Headers           []Header
	Rows              []BodyRow
	Placeholder       Placeholder
	ColSpan           int
}

// View builds the render model for the current data and state.
//
// Placeholders take priority in this order: loading, error, empty. When a
// placeholder is shown, Rows is empty and ColSpan is the number of visible
// columns (at least 1).
func (t *Table[T]) View() View {
	visible := t.VisibleColumns()

	v := View{
		FilterText:        t.state.FilterText,
		FilterPlaceholder: t.placeholder,
		ColSpan:           max(len(visible), 1),
	}

	for _, col := range t.columns {
		v.Toggles = append(v.Toggles, Toggle{
			ColumnID: col.ID,
			Visible:  !col.Hideable() || t.state.IsVisible(col.ID),
			Hideable: col.Hideable(),
		})
	}

	for _, col := range visible {
		h := Header{
			ColumnID: col.ID,
			Label:    col.headerHTML(),
			Sortable: col.Sortable(),
			Size:     col.Size,
		}
		if dir, ok := t.state.SortDirection(col.ID); ok && col.Sortable() {
			h.Direction = dir
		}
		v.Headers = append(v.Headers, h)
	}

	switch {
	case t.loading:
		v.Placeholder = PlaceholderLoading
		return v
	case t.failed:
		v.Placeholder = PlaceholderError
		return v
	}

	rows := t.Rows()
	if len(rows) == 0 {
		v.Placeholder = PlaceholderEmpty
		return v
	}

	v.Rows = make([]BodyRow, 0, len(rows))
	for _, row := range rows {
		br := BodyRow{
			Key:   strconv.Itoa(row.Index),
			Cells: make([]template.HTML, len(row.Cells)),
		}
		for j, cell := range row.Cells {
			br.Cells[j] = t.renderCell(visible[j], cell.Value, row.Original)
		}
		v.Rows = append(v.Rows, br)
	}
	return v
}

// renderCell renders one body cell with the column's Cell function, falling
// back to the escaped display string. A panicking Cell function renders an
// empty cell and is logged with a correlation ID.
func (t *Table[T]) renderCell(col Column[T], value any, row T) (out template.HTML) {
	if col.Cell == nil {
		return template.HTML(template.HTMLEscapeString(Stringify(value)))
	}

	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			t.logger.Error("cell renderer panic",
				"correlation_id", correlationID,
				"column", col.ID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			out = ""
		}
	}()
	return col.Cell(value, row)
}

// RenderOptions controls the form targets of [Table.Render].
type RenderOptions struct {
	// ActionPath is the path the table's forms post to. Filter, sort and
	// column forms post to ActionPath+"/filter", "/sort" and "/columns".
	ActionPath string

	// CSRFField and CSRFToken, when both set, add a hidden field to every
	// form.
	CSRFField string
	CSRFToken string
}

// Render writes the table as HTML.
func (t *Table[T]) Render(w io.Writer, opts RenderOptions) error {
	data := struct {
		View
		Opts RenderOptions
	}{
		View: t.View(),
		Opts: opts,
	}
	if err := tableTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}

var tableTemplate = template.Must(template.New("datatable").Parse(`
{{- define "csrf"}}{{if and .CSRFField .CSRFToken}}<input type="hidden" name="{{.CSRFField}}" value="{{.CSRFToken}}">{{end}}{{end -}}
<div class="dt" data-action="{{.Opts.ActionPath}}">
  <div class="dt-toolbar">
    <form class="dt-filter" method="post" action="{{.Opts.ActionPath}}/filter">
      {{- template "csrf" .Opts}}
      <input type="search" name="q" value="{{.FilterText}}" placeholder="{{.FilterPlaceholder}}" autocomplete="off">
    </form>
    <details class="dt-columns">
      <summary>Columns ▾</summary>
      <ul>
        {{- range .Toggles}}
        <li>
          <form method="post" action="{{$.Opts.ActionPath}}/columns">
            {{- template "csrf" $.Opts}}
            <input type="hidden" name="column" value="{{.ColumnID}}">
            <input type="hidden" name="visible" value="{{if .Visible}}false{{else}}true{{end}}">
            <button type="submit" role="menuitemcheckbox" aria-checked="{{.Visible}}"{{if not .Hideable}} disabled{{end}}>
              <span class="dt-check">{{if .Visible}}✓{{end}}</span> <span class="dt-column-name">{{.ColumnID}}</span>
            </button>
          </form>
        </li>
        {{- end}}
      </ul>
    </details>
  </div>
  <table class="dt-table">
    <thead>
      <tr>
        {{- range .Headers}}
        <th data-column="{{.ColumnID}}"{{if .Size}} style="width: {{.Size}}px"{{end}}{{if .Sortable}} class="dt-sortable"{{end}}{{if .Direction}} aria-sort="{{if eq .Direction "asc"}}ascending{{else}}descending{{end}}"{{end}}>
          {{- if .Sortable}}
          <form method="post" action="{{$.Opts.ActionPath}}/sort">
            {{- template "csrf" $.Opts}}
            <input type="hidden" name="column" value="{{.ColumnID}}">
            <button type="submit">{{.Label}}{{with .Indicator}} {{.}}{{end}}</button>
          </form>
          {{- else}}{{.Label}}{{end -}}
        </th>
        {{- end}}
      </tr>
    </thead>
    <tbody>
      {{- if .Placeholder}}
      <tr class="dt-placeholder dt-{{.Placeholder.Class}}"><td colspan="{{.ColSpan}}">{{.Placeholder.Text}}</td></tr>
      {{- else}}
      {{- range .Rows}}
      <tr data-key="{{.Key}}">{{range .Cells}}<td>{{.}}</td>{{end}}</tr>
      {{- end}}
      {{- end}}
    </tbody>
  </table>
</div>
`))
