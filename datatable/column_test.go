package datatable

import (
	"testing"
	"time"
)

type connector struct {
	TransportName string `json:"transportName"`
	Enabled       *bool  `json:"enabled"`
}

type record struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Revision  int        `json:"revision"`
	Connector *connector `json:"sourceConnector"`
	Notes     []string   `json:"notes"`
	hidden    string
}

func TestField_StructByGoName(t *testing.T) {
	r := record{Name: "Alpha"}
	got := Field[record]("Name").Resolve(r)
	if got != "Alpha" {
		t.Errorf("Resolve() = %v, want %v", got, "Alpha")
	}
}

func TestField_StructByJSONTag(t *testing.T) {
	r := record{Revision: 7}
	got := Field[record]("revision").Resolve(r)
	if got != 7 {
		t.Errorf("Resolve() = %v, want %v", got, 7)
	}
}

func TestField_NestedPath(t *testing.T) {
	tests := []struct {
		name string
		row  record
		want any
	}{
		{"present", record{Connector: &connector{TransportName: "HTTP Listener"}}, "HTTP Listener"},
		{"nil pointer", record{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Field[record]("sourceConnector.transportName").Resolve(tt.row)
			if got != tt.want {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestField_NilPointerFieldResolvesNil(t *testing.T) {
	r := record{Connector: &connector{}}
	if got := Field[record]("sourceConnector.enabled").Resolve(r); got != nil {
		t.Errorf("Resolve() = %v, want nil", got)
	}

	enabled := false
	r.Connector.Enabled = &enabled
	if got := Field[record]("sourceConnector.enabled").Resolve(r); got != false {
		t.Errorf("Resolve() = %v, want false", got)
	}
}

func TestField_MissingAndUnexported(t *testing.T) {
	r := record{hidden: "secret"}
	if got := Field[record]("missing").Resolve(r); got != nil {
		t.Errorf("Resolve(missing) = %v, want nil", got)
	}
	if got := Field[record]("hidden").Resolve(r); got != nil {
		t.Errorf("Resolve(hidden) = %v, want nil", got)
	}
}

func TestField_NilSliceResolvesNil(t *testing.T) {
	if got := Field[record]("notes").Resolve(record{}); got != nil {
		t.Errorf("Resolve() = %v, want nil", got)
	}
}

func TestField_MapRows(t *testing.T) {
	row := map[string]any{
		"name":  "beta",
		"props": map[string]any{"initialState": "PAUSED"},
	}

	if got := Field[map[string]any]("name").Resolve(row); got != "beta" {
		t.Errorf("Resolve(name) = %v, want beta", got)
	}
	if got := Field[map[string]any]("props.initialState").Resolve(row); got != "PAUSED" {
		t.Errorf("Resolve(props.initialState) = %v, want PAUSED", got)
	}
	if got := Field[map[string]any]("absent").Resolve(row); got != nil {
		t.Errorf("Resolve(absent) = %v, want nil", got)
	}
}

func TestField_PointerRows(t *testing.T) {
	if got := Field[*record]("name").Resolve(&record{Name: "x"}); got != "x" {
		t.Errorf("Resolve() = %v, want x", got)
	}
	if got := Field[*record]("name").Resolve(nil); got != nil {
		t.Errorf("Resolve(nil) = %v, want nil", got)
	}
}

func TestFunc_Resolve(t *testing.T) {
	acc := Func(func(r record) any { return r.Revision * 2 })
	if got := acc.Resolve(record{Revision: 21}); got != 42 {
		t.Errorf("Resolve() = %v, want 42", got)
	}
}

func TestFunc_PanicResolvesNil(t *testing.T) {
	acc := Func(func(r record) any { return r.Connector.TransportName })
	if got := acc.Resolve(record{}); got != nil {
		t.Errorf("Resolve() = %v, want nil", got)
	}
}

func TestFunc_TypedNilResolvesNil(t *testing.T) {
	acc := Func(func(r record) any { return r.Connector })
	if got := acc.Resolve(record{}); got != nil {
		t.Errorf("Resolve() = %#v, want nil", got)
	}
}

func TestAccessor_ZeroValue(t *testing.T) {
	var acc Accessor[record]
	if got := acc.Resolve(record{Name: "x"}); got != nil {
		t.Errorf("Resolve() = %v, want nil", got)
	}
}

func TestColumn_Defaults(t *testing.T) {
	col := Column[record]{Header: "Name", Accessor: Field[record]("name")}
	if !col.Sortable() {
		t.Error("Sortable() = false, want true by default")
	}
	if !col.Hideable() {
		t.Error("Hideable() = false, want true by default")
	}
	if col.columnID() != "name" {
		t.Errorf("columnID() = %q, want %q", col.columnID(), "name")
	}
}

func TestStringify(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	type state string

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, ""},
		{"string", "Alpha", "Alpha"},
		{"int", 42, "42"},
		{"negative int64", int64(-3), "-3"},
		{"uint", uint8(7), "7"},
		{"float", 1.5, "1.5"},
		{"float32", float32(0.25), "0.25"},
		{"bool", true, "true"},
		{"time", ts, "2025-01-02T03:04:05Z"},
		{"zero time", time.Time{}, ""},
		{"named string", state("STARTED"), "STARTED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Stringify(tt.value); got != tt.want {
				t.Errorf("Stringify(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestCompareValues(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"ints", 2, 10, -1},
		{"mixed numeric kinds", int64(3), 2.5, 1},
		{"equal numbers", 1, 1.0, 0},
		{"strings lexicographic", "Alpha", "beta", -1},
		{"uppercase before lowercase", "Zulu", "alpha", -1},
		{"numeric strings stay strings", "10", "9", -1},
		{"bools", false, true, -1},
		{"times", late, early, 1},
		{"numbers before strings", 5, "4", -1},
		{"numbers before bools", true, 0, 1},
		{"bools before strings", "false", false, 1},
		{"times before strings", "2020", early, 1},
		{"numeric string after any number", "10a", 9, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompareValues(tt.a, tt.b); got != tt.want {
				t.Errorf("CompareValues(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
