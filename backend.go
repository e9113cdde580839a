package channelboard

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

const defaultBackendTimeout = 10 * time.Second

// Backend is an integration engine whose channels are shown in the console.
//
// Backend is immutable after creation via [NewBackend]. All fields are
// private with getter methods that return copies of mutable data (maps).
//
// Backends are configured using the functional options pattern with
// [BackendOption] functions such as [WithCredentials], [WithLabels],
// [WithHeaders], [WithTimeout], [WithInterval] and [WithInsecureSkipVerify].
type Backend struct {
	name     string
	url      string
	username string
	password string
	labels   map[string]string
	headers  map[string]string
	timeout  time.Duration
	interval time.Duration
	insecure bool
}

// Name returns the backend's display name.
// The name fills the Server column of the console.
func (b Backend) Name() string {
	return b.name
}

// URL returns the backend's base URL, e.g. "https://oie.example.com:8443".
func (b Backend) URL() string {
	return b.url
}

// Username returns the service account used to read channels, empty if
// the backend is read without logging in.
func (b Backend) Username() string {
	return b.username
}

// Labels returns a copy of the backend's labels.
// Returns nil if no labels are set.
func (b Backend) Labels() map[string]string {
	return copyMap(b.labels)
}

// Headers returns a copy of the backend's custom HTTP headers.
// Returns nil if no custom headers are set.
func (b Backend) Headers() map[string]string {
	return copyMap(b.headers)
}

// Timeout returns the per-request timeout, retries included.
// Defaults to 10 seconds if not explicitly set via [WithTimeout].
func (b Backend) Timeout() time.Duration {
	return b.timeout
}

// Interval returns the backend's custom refresh interval.
// Returns 0 if no custom interval was specified, meaning the global
// interval configured via [WithRefreshInterval] is used.
func (b Backend) Interval() time.Duration {
	return b.interval
}

// InsecureSkipVerify reports whether TLS certificate verification is
// disabled for this backend.
func (b Backend) InsecureSkipVerify() bool {
	return b.insecure
}

// NewBackend creates a [Backend] with the given name, base URL and options.
//
// The rawURL parameter must be an http:// or https:// URL with a host and
// without a query, fragment or embedded credentials. A trailing slash is
// dropped.
//
// Returns an error if the name is empty or the URL is invalid.
//
// Example:
//
//	b, err := channelboard.NewBackend("prod", "https://oie.example.com:8443",
//	    channelboard.WithCredentials("svc-console", os.Getenv("OIE_PASSWORD")),
//	    channelboard.WithLabels("env", "prod"),
//	)
func NewBackend(name, rawURL string, opts ...BackendOption) (Backend, error) {
	if name == "" {
		return Backend{}, errors.New("backend name cannot be empty")
	}

	base, err := parseBaseURL(rawURL)
	if err != nil {
		return Backend{}, err
	}

	cfg, err := applyBackendOptions(opts)
	if err != nil {
		return Backend{}, err
	}
	return cfg.backend(name, base), nil
}

// parseBaseURL checks that rawURL is an engine base URL: http or https,
// with a host, and nothing a request path could not be appended to. A
// trailing slash is removed.
func parseBaseURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.New("invalid URL: " + err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.New("URL must have an http:// or https:// scheme")
	}
	if u.Host == "" {
		return "", errors.New("URL must have a host")
	}
	if u.User != nil {
		return "", errors.New("URL must not contain credentials, use WithCredentials")
	}
	if u.RawQuery != "" || u.ForceQuery || u.Fragment != "" {
		return "", errors.New("URL must not have a query or fragment")
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String(), nil
}

// applyBackendOptions applies opts to a fresh config with the defaults.
func applyBackendOptions(opts []BackendOption) (*backendConfig, error) {
	cfg := &backendConfig{
		labels:  make(map[string]string),
		headers: make(map[string]string),
		timeout: defaultBackendTimeout,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// backend freezes the config into a Backend.
func (cfg *backendConfig) backend(name, baseURL string) Backend {
	return Backend{
		name:     name,
		url:      baseURL,
		username: cfg.username,
		password: cfg.password,
		labels:   cfg.labels,
		headers:  cfg.headers,
		timeout:  cfg.timeout,
		interval: cfg.interval,
		insecure: cfg.insecure,
	}
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
