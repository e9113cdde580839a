package channelboard

import (
	"errors"
	"log/slog"
	"time"
)

// consoleConfig holds mutable state during Console construction.
type consoleConfig struct {
	title             string
	backends          []Backend
	refreshInterval   time.Duration
	port              int
	maxConcurrency    int
	logger            *slog.Logger
	snapshotCallbacks []func(Snapshot)
	sessionKeys       [][]byte
	secureCookies     bool
	columnVisibility  map[string]bool
	filterPlaceholder string
	authBackend       string
}

// Option is a function that configures a [Console] instance during
// construction.
//
// Options return an error if validation fails.
type Option func(*consoleConfig) error

// WithBackend adds a single [Backend] to the console.
//
// Can be called multiple times. At least one backend must be configured
// for [New] to succeed.
func WithBackend(b Backend) Option {
	return func(cfg *consoleConfig) error {
		cfg.backends = append(cfg.backends, b)
		return nil
	}
}

// WithBackends adds multiple [Backend] values to the console.
//
// Equivalent to calling [WithBackend] multiple times; pairs naturally with
// [NewBackendGrid]:
//
//	backends, _ := channelboard.NewBackendGrid("OIE", ...)
//	c, err := channelboard.New(channelboard.WithBackends(backends...))
func WithBackends(backends ...Backend) Option {
	return func(cfg *consoleConfig) error {
		cfg.backends = append(cfg.backends, backends...)
		return nil
	}
}

// WithRefreshInterval sets how often the channel lists are refreshed.
//
// Backends with their own [WithInterval] keep it. Defaults to 30 seconds.
//
// Returns an error if the duration is zero or negative.
func WithRefreshInterval(d time.Duration) Option {
	return func(cfg *consoleConfig) error {
		if d <= 0 {
			return errors.New("refresh interval must be positive")
		}
		cfg.refreshInterval = d
		return nil
	}
}

// WithPort sets the HTTP port of the console. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *consoleConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithMaxConcurrency sets how many backends are refreshed at once.
// Defaults to 10.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *consoleConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the console.
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *consoleConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithSnapshotCallback registers a function called after every backend
// refresh, once the console shows the new data.
//
// Multiple callbacks run in registration order, synchronously from a
// single goroutine: they must not block. Panics are recovered and logged.
//
// Example:
//
//	c, err := channelboard.New(
//	    channelboard.WithBackend(prod),
//	    channelboard.WithSnapshotCallback(func(s channelboard.Snapshot) {
//	        if s.Error != nil {
//	            alerts.Send(s.Backend, s.Error)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithSnapshotCallback(cb func(Snapshot)) Option {
	return func(cfg *consoleConfig) error {
		if cb == nil {
			return nil
		}
		cfg.snapshotCallbacks = append(cfg.snapshotCallbacks, cb)
		return nil
	}
}

// WithTitle sets the console title displayed in the browser tab and header.
// Defaults to "Channelboard".
func WithTitle(title string) Option {
	return func(cfg *consoleConfig) error {
		cfg.title = title
		return nil
	}
}

// WithSessionKeys sets the keys that sign and encrypt operator session
// cookies, as gorilla/securecookie key pairs: an authentication key of 32
// or 64 bytes, optionally followed by an encryption key of 16, 24 or 32
// bytes. Pass older pairs after the current one to rotate keys.
//
// Without keys, random ones are generated at start and sessions do not
// survive a restart.
func WithSessionKeys(keys ...[]byte) Option {
	return func(cfg *consoleConfig) error {
		if len(keys) == 0 {
			return errors.New("at least one session key is required")
		}
		for i, k := range keys {
			// encryption keys may be nil to sign only
			if i%2 == 0 && len(k) < 32 {
				return errors.New("session authentication keys must be at least 32 bytes")
			}
			if i%2 == 1 && k != nil && len(k) != 16 && len(k) != 24 && len(k) != 32 {
				return errors.New("session encryption keys must be 16, 24 or 32 bytes")
			}
		}
		cfg.sessionKeys = keys
		return nil
	}
}

// WithSecureCookies marks session and CSRF cookies Secure. Enable it when
// the console is served over HTTPS.
func WithSecureCookies(secure bool) Option {
	return func(cfg *consoleConfig) error {
		cfg.secureCookies = secure
		return nil
	}
}

// WithColumnVisibility overrides the initial column visibility of every
// operator view, keyed by column ID (see [ColumnIDs]).
//
// Returns an error for an unknown column ID.
func WithColumnVisibility(visibility map[string]bool) Option {
	return func(cfg *consoleConfig) error {
		known := make(map[string]bool)
		for _, id := range ColumnIDs() {
			known[id] = true
		}
		if cfg.columnVisibility == nil {
			cfg.columnVisibility = make(map[string]bool, len(visibility))
		}
		for id, visible := range visibility {
			if !known[id] {
				return errors.New("unknown column: " + id)
			}
			cfg.columnVisibility[id] = visible
		}
		return nil
	}
}

// WithFilterPlaceholder sets the placeholder of the filter input.
// Defaults to "Filter channels…".
func WithFilterPlaceholder(placeholder string) Option {
	return func(cfg *consoleConfig) error {
		cfg.filterPlaceholder = placeholder
		return nil
	}
}

// WithAuthBackend names the backend operators log in against. Defaults to
// the first configured backend.
//
// Operators are only authenticated against this backend. Channels are
// always read with each backend's service account (see [WithCredentials]),
// so every operator sees the same channels whatever their own permissions
// on the engines.
//
// [New] returns an error if no backend has that name.
func WithAuthBackend(name string) Option {
	return func(cfg *consoleConfig) error {
		if name == "" {
			return errors.New("auth backend name cannot be empty")
		}
		cfg.authBackend = name
		return nil
	}
}
