package channelboard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// NewBackendGrid creates one backend per combination of dimension values,
// e.g. one engine per environment and site.
//
// Every generated URL must be an engine base URL, as for [NewBackend].
// Two combinations rendering the same URL or the same name are an error:
// it means the URL or name template ignores a dimension.
//
// Each backend is labelled with its dimension values. Static labels from
// [WithGridLabels] take precedence on collision. Names default to
// "Base Name (val1/val2)" (values in alphabetical key order) and can be
// shaped with [WithGridNameTemplate].
//
// Example:
//
//	backends, err := NewBackendGrid("OIE",
//	    WithURLTemplate("https://oie-{{.env}}.example.com:8443"),
//	    WithDimensions(map[string][]string{
//	        "env": {"dev", "prod"},
//	    }),
//	    WithGridCredentials("svc-console", password),
//	)
//	// Returns 2 backends, usable with WithBackends(backends...)
func NewBackendGrid(baseName string, opts ...GridOption) ([]Backend, error) {
	if strings.TrimSpace(baseName) == "" {
		return nil, errors.New("base name cannot be empty")
	}

	cfg := &gridConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.urlTemplate == "" {
		return nil, errors.New("URL template required")
	}
	if len(cfg.dimensions) == 0 {
		return nil, errors.New("at least one dimension required")
	}

	urlTmpl, err := template.New("url").Option("missingkey=error").Parse(cfg.urlTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid URL template: %w", err)
	}
	var nameTmpl *template.Template
	if cfg.nameTemplate != "" {
		nameTmpl, err = template.New("name").Option("missingkey=error").Parse(cfg.nameTemplate)
		if err != nil {
			return nil, fmt.Errorf("invalid name template: %w", err)
		}
	}

	keys := sortedKeys(cfg.dimensions)
	byURL := make(map[string]string)
	byName := make(map[string]bool)
	var backends []Backend

	err = forEachCombination(keys, cfg.dimensions, func(values []string) error {
		dims := make(map[string]string, len(keys))
		labelPairs := make([]string, 0, 2*len(keys))
		for i, k := range keys {
			dims[k] = values[i]
			labelPairs = append(labelPairs, k, values[i])
		}

		rendered, err := render(urlTmpl, dims)
		if err != nil {
			return fmt.Errorf("URL template with %s: %w", strings.Join(values, "/"), err)
		}
		base, err := parseBaseURL(rendered)
		if err != nil {
			return fmt.Errorf("URL %q: %w", rendered, err)
		}

		bcfg, err := applyBackendOptions(append([]BackendOption{WithLabels(labelPairs...)}, cfg.shared...))
		if err != nil {
			return err
		}

		name := fmt.Sprintf("%s (%s)", baseName, strings.Join(values, "/"))
		if nameTmpl != nil {
			if name, err = render(nameTmpl, bcfg.labels); err != nil {
				return fmt.Errorf("name template with %s: %w", strings.Join(values, "/"), err)
			}
			name = strings.TrimSpace(name)
			if name == "" {
				return fmt.Errorf("name template renders an empty name for %s", strings.Join(values, "/"))
			}
		}

		if other, dup := byURL[base]; dup {
			return fmt.Errorf("%q and %q both resolve to %s; every dimension must appear in the URL template", other, name, base)
		}
		if byName[name] {
			return fmt.Errorf("duplicate backend name %q; every dimension must appear in the name template", name)
		}
		byURL[base] = name
		byName[name] = true

		backends = append(backends, bcfg.backend(name, base))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("grid %q: %w", baseName, err)
	}
	return backends, nil
}

// forEachCombination calls fn with every combination of dimension values,
// aligned with keys. The last key varies fastest and values keep their
// order.
func forEachCombination(keys []string, dims map[string][]string, fn func(values []string) error) error {
	values := make([]string, len(keys))
	var walk func(depth int) error
	walk = func(depth int) error {
		if depth == len(keys) {
			return fn(append([]string(nil), values...))
		}
		for _, v := range dims[keys[depth]] {
			values[depth] = v
			if err := walk(depth + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if len(keys) == 0 {
		return nil
	}
	return walk(0)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func render(tmpl *template.Template, data map[string]string) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
