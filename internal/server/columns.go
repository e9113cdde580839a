package server

import (
	"html"
	"html/template"

	"github.com/microcosm-cc/bluemonday"

	"github.com/jpalmerr/channelboard/datatable"
	"github.com/jpalmerr/channelboard/internal/store"
)

// Column IDs of the channel table.
const (
	ColumnName        = "name"
	ColumnStatus      = "status"
	ColumnRevision    = "revision"
	ColumnID          = "id"
	ColumnSource      = "source"
	ColumnServer      = "server"
	ColumnDescription = "description"
)

// missingSource is shown when a channel has no source transport.
const missingSource = "—"

// DefaultColumnVisibility is the initial column visibility of every
// operator view. Columns not listed start visible.
func DefaultColumnVisibility() map[string]bool {
	return map[string]bool{
		ColumnID:          true,
		ColumnName:        true,
		ColumnRevision:    false,
		ColumnSource:      true,
		ColumnStatus:      true,
		ColumnServer:      true,
		ColumnDescription: false,
	}
}

// ColumnIDs returns the IDs of the channel table columns in display order.
func ColumnIDs() []string {
	cols := channelColumns()
	ids := make([]string, len(cols))
	for i, c := range cols {
		ids[i] = c.ID
	}
	return ids
}

var descriptionPolicy = bluemonday.StrictPolicy()

// channelColumns returns the column schema of the channel table.
func channelColumns() []datatable.Column[store.Channel] {
	return []datatable.Column[store.Channel]{
		{
			ID:       ColumnName,
			Header:   "Name",
			Accessor: datatable.Field[store.Channel]("name"),
			Cell:     boldCell,
		},
		{
			ID:             ColumnStatus,
			Header:         "Status",
			Accessor:       datatable.Func(func(c store.Channel) any { return c.State }),
			Cell:           badgeCell,
			DisableSorting: true,
		},
		{
			ID:       ColumnRevision,
			Header:   "Revision",
			Accessor: datatable.Field[store.Channel]("revision"),
			Size:     80,
		},
		{
			ID:       ColumnID,
			Header:   "ID",
			Accessor: datatable.Field[store.Channel]("id"),
			Cell:     codeCell,
		},
		{
			ID:       ColumnSource,
			Header:   "Source",
			Accessor: datatable.Func(sourceOf),
		},
		{
			ID:       ColumnServer,
			Header:   "Server",
			Accessor: datatable.Field[store.Channel]("server"),
		},
		{
			ID:       ColumnDescription,
			Header:   "Description",
			Accessor: datatable.Func(plainDescription),
		},
	}
}

func sourceOf(c store.Channel) any {
	if c.TransportName == "" {
		return missingSource
	}
	return c.TransportName
}

// plainDescription strips markup from the description, keeping its text.
func plainDescription(c store.Channel) any {
	if c.Description == "" {
		return nil
	}
	return html.UnescapeString(descriptionPolicy.Sanitize(c.Description))
}

func boldCell(value any, _ store.Channel) template.HTML {
	return template.HTML("<strong>" + template.HTMLEscapeString(datatable.Stringify(value)) + "</strong>")
}

func codeCell(value any, _ store.Channel) template.HTML {
	return template.HTML(`<code class="channel-id">` + template.HTMLEscapeString(datatable.Stringify(value)) + "</code>")
}

// badgeCell renders the status badge from the precomputed label and variant.
func badgeCell(_ any, c store.Channel) template.HTML {
	label := c.State
	if label == "" {
		label = "UNKNOWN"
	}
	variant := c.StateVariant
	if variant == "" {
		variant = "outline"
	}
	return template.HTML(`<span class="badge badge-` + template.HTMLEscapeString(variant) + `">` +
		template.HTMLEscapeString(label) + "</span>")
}
