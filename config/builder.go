package config

import (
	"log/slog"
	"sort"

	"github.com/jpalmerr/channelboard"
)

// BuildBackends converts parsed configuration into SDK Backend objects.
//
// It processes both direct backends and grids, returning a combined slice.
// Grid dimensions are expanded via cartesian product.
func BuildBackends(cfg *Config) ([]channelboard.Backend, error) {
	var backends []channelboard.Backend

	for _, bc := range cfg.Backends {
		b, err := buildBackend(bc)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}

	for _, gc := range cfg.Grids {
		gridBackends, err := buildGridBackends(gc)
		if err != nil {
			return nil, err
		}
		backends = append(backends, gridBackends...)
	}

	return backends, nil
}

// BuildOptions converts parsed configuration into console options, ready
// for [channelboard.New]. A nil logger keeps the SDK default.
func BuildOptions(cfg *Config, logger *slog.Logger) ([]channelboard.Option, error) {
	backends, err := BuildBackends(cfg)
	if err != nil {
		return nil, err
	}

	opts := []channelboard.Option{
		channelboard.WithBackends(backends...),
		channelboard.WithPort(cfg.Port),
		channelboard.WithRefreshInterval(cfg.RefreshInterval.Duration()),
		channelboard.WithSecureCookies(cfg.Session.SecureCookies),
	}
	if logger != nil {
		opts = append(opts, channelboard.WithLogger(logger))
	}
	if cfg.Title != "" {
		opts = append(opts, channelboard.WithTitle(cfg.Title))
	}
	if cfg.MaxConcurrency > 0 {
		opts = append(opts, channelboard.WithMaxConcurrency(cfg.MaxConcurrency))
	}
	if cfg.AuthBackend != "" {
		opts = append(opts, channelboard.WithAuthBackend(cfg.AuthBackend))
	}
	if keys := cfg.Session.DecodedKeys(); len(keys) > 0 {
		opts = append(opts, channelboard.WithSessionKeys(keys...))
	}
	if len(cfg.Table.Columns) > 0 {
		opts = append(opts, channelboard.WithColumnVisibility(cfg.Table.Columns))
	}
	if cfg.Table.FilterPlaceholder != "" {
		opts = append(opts, channelboard.WithFilterPlaceholder(cfg.Table.FilterPlaceholder))
	}

	return opts, nil
}

// buildBackend converts a single BackendConfig to an SDK Backend.
func buildBackend(bc BackendConfig) (channelboard.Backend, error) {
	var opts []channelboard.BackendOption

	if bc.Username != "" {
		opts = append(opts, channelboard.WithCredentials(bc.Username, bc.Password))
	}
	if bc.Timeout != 0 {
		opts = append(opts, channelboard.WithTimeout(bc.Timeout.Duration()))
	}
	if len(bc.Headers) > 0 {
		opts = append(opts, channelboard.WithHeaders(mapToKeyValuePairs(bc.Headers)...))
	}
	if len(bc.Labels) > 0 {
		opts = append(opts, channelboard.WithLabels(mapToKeyValuePairs(bc.Labels)...))
	}
	if bc.Interval != 0 {
		opts = append(opts, channelboard.WithInterval(bc.Interval.Duration()))
	}
	if bc.InsecureSkipVerify {
		opts = append(opts, channelboard.WithInsecureSkipVerify())
	}

	return channelboard.NewBackend(bc.Name, bc.URL, opts...)
}

// buildGridBackends expands a GridConfig into multiple backends.
func buildGridBackends(gc GridConfig) ([]channelboard.Backend, error) {
	opts := []channelboard.GridOption{
		channelboard.WithURLTemplate(gc.URLTemplate),
		channelboard.WithDimensions(gc.Dimensions),
	}

	if gc.NameTemplate != "" {
		opts = append(opts, channelboard.WithGridNameTemplate(gc.NameTemplate))
	}
	if gc.Username != "" {
		opts = append(opts, channelboard.WithGridCredentials(gc.Username, gc.Password))
	}
	if gc.Timeout != 0 {
		opts = append(opts, channelboard.WithGridTimeout(gc.Timeout.Duration()))
	}
	if len(gc.Headers) > 0 {
		opts = append(opts, channelboard.WithGridHeaders(mapToKeyValuePairs(gc.Headers)...))
	}
	if len(gc.Labels) > 0 {
		opts = append(opts, channelboard.WithGridLabels(mapToKeyValuePairs(gc.Labels)...))
	}
	if gc.Interval != 0 {
		opts = append(opts, channelboard.WithGridInterval(gc.Interval.Duration()))
	}
	if gc.InsecureSkipVerify {
		opts = append(opts, channelboard.WithGridInsecureSkipVerify())
	}

	return channelboard.NewBackendGrid(gc.Name, opts...)
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
