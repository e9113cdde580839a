package config

import (
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/channelboard"
)

func TestBuildBackends_SingleBackend(t *testing.T) {
	cfg := &Config{
		Backends: []BackendConfig{
			{Name: "Production", URL: "https://oie.example.com:8443"},
		},
	}

	backends, err := BuildBackends(cfg)
	if err != nil {
		t.Fatalf("BuildBackends() error = %v", err)
	}
	if len(backends) != 1 {
		t.Fatalf("len(backends) = %d, want 1", len(backends))
	}

	b := backends[0]
	if b.Name() != "Production" {
		t.Errorf("Name() = %q, want %q", b.Name(), "Production")
	}
	if b.URL() != "https://oie.example.com:8443" {
		t.Errorf("URL() = %q", b.URL())
	}
}

func TestBuildBackends_AllOptions(t *testing.T) {
	cfg := &Config{
		Backends: []BackendConfig{
			{
				Name:               "Full",
				URL:                "https://oie.example.com",
				Username:           "svc",
				Password:           "secret",
				Timeout:            Duration(5 * time.Second),
				Interval:           Duration(2 * time.Minute),
				InsecureSkipVerify: true,
				Headers:            map[string]string{"X-Tenant": "clinic"},
				Labels:             map[string]string{"env": "prod", "site": "east"},
			},
		},
	}

	backends, err := BuildBackends(cfg)
	if err != nil {
		t.Fatalf("BuildBackends() error = %v", err)
	}

	b := backends[0]
	if b.Username() != "svc" {
		t.Errorf("Username() = %q, want svc", b.Username())
	}
	if b.Timeout() != 5*time.Second {
		t.Errorf("Timeout() = %v, want 5s", b.Timeout())
	}
	if b.Interval() != 2*time.Minute {
		t.Errorf("Interval() = %v, want 2m", b.Interval())
	}
	if !b.InsecureSkipVerify() {
		t.Error("InsecureSkipVerify() = false, want true")
	}
	if !reflect.DeepEqual(b.Headers(), map[string]string{"X-Tenant": "clinic"}) {
		t.Errorf("Headers() = %v", b.Headers())
	}
	if !reflect.DeepEqual(b.Labels(), map[string]string{"env": "prod", "site": "east"}) {
		t.Errorf("Labels() = %v", b.Labels())
	}
}

func TestBuildBackends_Grid(t *testing.T) {
	cfg := &Config{
		Backends: []BackendConfig{
			{Name: "Standalone", URL: "https://standalone.example.com"},
		},
		Grids: []GridConfig{
			{
				Name:        "OIE",
				URLTemplate: "https://oie-{{.env}}.example.com",
				Dimensions:  map[string][]string{"env": {"test", "prod"}},
				Username:    "svc",
				Labels:      map[string]string{"team": "integration"},
			},
		},
	}

	backends, err := BuildBackends(cfg)
	if err != nil {
		t.Fatalf("BuildBackends() error = %v", err)
	}
	if len(backends) != 3 {
		t.Fatalf("len(backends) = %d, want 3", len(backends))
	}

	// direct backends come first, then grid expansion in dimension order
	wantNames := []string{"Standalone", "OIE (test)", "OIE (prod)"}
	wantURLs := []string{
		"https://standalone.example.com",
		"https://oie-test.example.com",
		"https://oie-prod.example.com",
	}
	for i, b := range backends {
		if b.Name() != wantNames[i] {
			t.Errorf("backends[%d].Name() = %q, want %q", i, b.Name(), wantNames[i])
		}
		if b.URL() != wantURLs[i] {
			t.Errorf("backends[%d].URL() = %q, want %q", i, b.URL(), wantURLs[i])
		}
	}

	grid := backends[1]
	if grid.Username() != "svc" {
		t.Errorf("grid Username() = %q, want svc", grid.Username())
	}
	if grid.Labels()["env"] != "test" || grid.Labels()["team"] != "integration" {
		t.Errorf("grid Labels() = %v", grid.Labels())
	}
}

func TestBuildBackends_GridNameTemplate(t *testing.T) {
	cfg := &Config{
		Grids: []GridConfig{
			{
				Name:         "OIE",
				URLTemplate:  "https://{{.site}}.example.com:8443",
				NameTemplate: "Engine {{.site}}",
				Dimensions:   map[string][]string{"site": {"east", "west"}},
			},
		},
	}

	backends, err := BuildBackends(cfg)
	if err != nil {
		t.Fatalf("BuildBackends() error = %v", err)
	}
	if len(backends) != 2 || backends[0].Name() != "Engine east" || backends[1].Name() != "Engine west" {
		t.Errorf("names = %q, %q", backends[0].Name(), backends[1].Name())
	}
}

func TestBuildBackends_GridValueNotURLSafe(t *testing.T) {
	cfg := &Config{
		Grids: []GridConfig{
			{
				Name:        "OIE",
				URLTemplate: "https://{{.site}}.example.com",
				Dimensions:  map[string][]string{"site": {"east/1"}},
			},
		},
	}
	if _, err := BuildBackends(cfg); err == nil {
		t.Fatal("BuildBackends() expected error for a value with '/', got nil")
	}
}

func TestBuildBackends_InvalidBackend(t *testing.T) {
	cfg := &Config{
		Backends: []BackendConfig{{Name: "Bad", URL: "https://"}},
	}
	if _, err := BuildBackends(cfg); err == nil {
		t.Fatal("BuildBackends() expected error for URL without host, got nil")
	}
}

func TestBuildOptions(t *testing.T) {
	yaml := `
title: Integration Engines
port: 9191
refresh_interval: 45s
max_concurrency: 3
auth_backend: Secondary
session:
  keys: ["` + strings.Repeat("QUFB", 11) + `"]
table:
  filter_placeholder: Search
  columns:
    revision: true
backends:
  - name: Primary
    url: https://primary.example.com
  - name: Secondary
    url: https://secondary.example.com
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts, err := BuildOptions(cfg, logger)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	console, err := channelboard.New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if console.Port() != 9191 {
		t.Errorf("Port() = %d, want 9191", console.Port())
	}
	if console.RefreshInterval() != 45*time.Second {
		t.Errorf("RefreshInterval() = %v, want 45s", console.RefreshInterval())
	}
	if got := len(console.Backends()); got != 2 {
		t.Errorf("len(Backends()) = %d, want 2", got)
	}
	if console.AuthBackend().Name() != "Secondary" {
		t.Errorf("AuthBackend() = %q, want Secondary", console.AuthBackend().Name())
	}
}

func TestBuildOptions_UnknownColumn(t *testing.T) {
	cfg := &Config{
		Port:            8080,
		RefreshInterval: Duration(30 * time.Second),
		Backends:        []BackendConfig{{Name: "A", URL: "https://a.example.com"}},
		Table:           TableConfig{Columns: map[string]bool{"owner": true}},
	}

	opts, err := BuildOptions(cfg, nil)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	_, err = channelboard.New(opts...)
	if err == nil || !strings.Contains(err.Error(), "unknown column") {
		t.Errorf("New() error = %v, want unknown column", err)
	}
}

func TestMapToKeyValuePairs(t *testing.T) {
	got := mapToKeyValuePairs(map[string]string{"b": "2", "a": "1"})
	want := []string{"a", "1", "b", "2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mapToKeyValuePairs() = %v, want %v", got, want)
	}

	if got := mapToKeyValuePairs(nil); len(got) != 0 {
		t.Errorf("mapToKeyValuePairs(nil) = %v, want empty", got)
	}
}
