package channelboard

import (
	"errors"
	"time"
)

// backendConfig holds mutable state during backend construction.
type backendConfig struct {
	username string
	password string
	labels   map[string]string
	headers  map[string]string
	timeout  time.Duration
	interval time.Duration
	insecure bool
}

// BackendOption is a function that configures a [Backend] during construction.
//
// Options return an error if validation fails.
type BackendOption func(*backendConfig) error

// WithCredentials sets the service account the console logs in with to read
// channels.
//
// Without credentials the channel list is requested without a session,
// which only works for engines that allow anonymous reads.
//
// Returns an error if the username is empty.
func WithCredentials(username, password string) BackendOption {
	return func(cfg *backendConfig) error {
		if username == "" {
			return errors.New("username cannot be empty")
		}
		cfg.username = username
		cfg.password = password
		return nil
	}
}

// WithLabels adds metadata labels to the backend.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	b, err := channelboard.NewBackend("prod", url,
//	    channelboard.WithLabels("env", "production", "region", "eu"),
//	)
//
// Returns an error if an odd number of arguments is provided.
func WithLabels(keyValues ...string) BackendOption {
	return func(cfg *backendConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithLabels requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.labels[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithHeaders adds custom HTTP headers to every request to the backend,
// e.g. for a proxy in front of the engine. Accept and X-Requested-With
// are always set by the client and cannot be overridden.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Returns an error if an odd number of arguments is provided.
func WithHeaders(keyValues ...string) BackendOption {
	return func(cfg *backendConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithTimeout sets the request timeout for this backend.
//
// Transient failures are retried until the timeout elapses.
// Defaults to 10 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) BackendOption {
	return func(cfg *backendConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithInterval sets a custom refresh interval for this backend.
//
// The interval must be at least 1 second and at most 1 hour.
// If not specified, the backend uses the global refresh interval
// configured via [WithRefreshInterval].
//
// Note: The interval is measured from when a refresh starts, not when it
// completes.
func WithInterval(d time.Duration) BackendOption {
	return func(cfg *backendConfig) error {
		if d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		if d > time.Hour {
			return errors.New("interval must not exceed 1 hour")
		}
		cfg.interval = d
		return nil
	}
}

// WithInsecureSkipVerify disables TLS certificate verification, for
// engines running with their default self-signed certificate.
func WithInsecureSkipVerify() BackendOption {
	return func(cfg *backendConfig) error {
		cfg.insecure = true
		return nil
	}
}
