package channelboard

import (
	"errors"
	"fmt"
	"time"
)

// gridConfig holds configuration during backend grid construction.
type gridConfig struct {
	urlTemplate  string
	nameTemplate string
	dimensions   map[string][]string

	// shared options applied to every generated backend, after its
	// dimension labels
	shared []BackendOption
}

// GridOption configures backend grid generation for [NewBackendGrid].
type GridOption func(*gridConfig) error

// WithURLTemplate sets the base URL template of the generated backends.
// The template uses Go's text/template syntax with dimension keys as
// variables. Dimension values are inserted as they are, so they can form
// host names, ports and path segments.
//
// Example:
//
//	WithURLTemplate("https://oie-{{.env}}.{{.region}}.example.com:8443")
//
// Returns an error if the template string is empty.
func WithURLTemplate(tmpl string) GridOption {
	return func(cfg *gridConfig) error {
		if tmpl == "" {
			return errors.New("URL template required")
		}
		cfg.urlTemplate = tmpl
		return nil
	}
}

// WithGridNameTemplate sets how generated backends are named, and so what
// the Server column shows. The template sees the backend's labels: the
// dimension values merged with [WithGridLabels].
//
// Example:
//
//	WithGridNameTemplate("{{.site}} {{.env}}")
//
// Without it, names are "Base (v1/v2)" with the dimension values in
// alphabetical key order.
func WithGridNameTemplate(tmpl string) GridOption {
	return func(cfg *gridConfig) error {
		if tmpl == "" {
			return errors.New("name template cannot be empty")
		}
		cfg.nameTemplate = tmpl
		return nil
	}
}

// WithDimensions sets the dimension values for cartesian product expansion.
// Each key becomes a template variable and a label of the generated
// backends.
//
// Keys must be valid template identifiers. Values end up inside base URLs,
// so they may only contain letters, digits, '.', '-' and '_'.
//
// Example:
//
//	WithDimensions(map[string][]string{
//	    "env":    {"prod", "staging"},
//	    "region": {"eu", "us"},
//	})
func WithDimensions(dims map[string][]string) GridOption {
	return func(cfg *gridConfig) error {
		if len(dims) == 0 {
			return errors.New("at least one dimension required")
		}
		for key, vals := range dims {
			if !isIdentifier(key) {
				return fmt.Errorf("dimension %q: key must be a letter or '_' followed by letters, digits or '_'", key)
			}
			if len(vals) == 0 {
				return fmt.Errorf("dimension %q has no values", key)
			}
			for i, v := range vals {
				if v == "" {
					return fmt.Errorf("dimension %q contains empty value at index %d", key, i)
				}
				if !isURLSafe(v) {
					return fmt.Errorf("dimension %q value %q: only letters, digits, '.', '-' and '_' are allowed", key, v)
				}
			}
		}
		cfg.dimensions = dims
		return nil
	}
}

// shared records a backend option for every generated backend. The option
// is tried once against a scratch config so bad values fail here, not per
// backend.
func shared(opt BackendOption) GridOption {
	return func(cfg *gridConfig) error {
		if _, err := applyBackendOptions([]BackendOption{opt}); err != nil {
			return err
		}
		cfg.shared = append(cfg.shared, opt)
		return nil
	}
}

// WithGridLabels adds static labels to all generated backends.
// On collision with a dimension, the static label wins; the URL still uses
// the dimension value.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
func WithGridLabels(keyValues ...string) GridOption {
	return shared(WithLabels(keyValues...))
}

// WithGridHeaders adds HTTP headers to all generated backends.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
func WithGridHeaders(keyValues ...string) GridOption {
	return shared(WithHeaders(keyValues...))
}

// WithGridCredentials sets the service account of all generated backends.
//
// Returns an error if the username is empty.
func WithGridCredentials(username, password string) GridOption {
	return shared(WithCredentials(username, password))
}

// WithGridTimeout sets the request timeout for all generated backends.
// Zero keeps the backend default.
func WithGridTimeout(d time.Duration) GridOption {
	if d == 0 {
		return func(*gridConfig) error { return nil }
	}
	return shared(WithTimeout(d))
}

// WithGridInterval sets a custom refresh interval for all generated
// backends, between 1 second and 1 hour. Zero keeps the global refresh
// interval.
func WithGridInterval(d time.Duration) GridOption {
	if d == 0 {
		return func(*gridConfig) error { return nil }
	}
	return shared(WithInterval(d))
}

// WithGridInsecureSkipVerify disables TLS certificate verification for all
// generated backends.
func WithGridInsecureSkipVerify() GridOption {
	return shared(WithInsecureSkipVerify())
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func isURLSafe(s string) bool {
	for _, r := range s {
		switch {
		case r == '.', r == '-', r == '_':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
