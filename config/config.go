// Package config provides YAML configuration parsing for Channelboard.
//
// This package enables running the console as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Integration Engines
//	port: 8080
//	refresh_interval: 30s
//
//	session:
//	  keys: ["${CHANNELBOARD_SESSION_KEY}"]
//	  secure_cookies: true
//
//	backends:
//	  - name: Production
//	    url: https://oie.example.com:8443
//	    insecure_skip_verify: true
//
//	grids:
//	  - name: OIE
//	    url_template: "https://oie-{{.env}}.example.com:8443"
//	    dimensions:
//	      env: [test, staging]
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort            = 8080
	defaultRefreshInterval = 30 * time.Second

	// minRefreshInterval keeps a misconfigured console from hammering the
	// engine APIs.
	minRefreshInterval = 1 * time.Second
)

// Config is the root configuration structure for Channelboard.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the console title. Defaults to "Channelboard" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// RefreshInterval is the time between channel refreshes.
	// Accepts duration strings like "30s" or "1m". Defaults to 30s.
	RefreshInterval Duration `yaml:"refresh_interval"`

	// MaxConcurrency caps concurrent backend fetches. Zero keeps the SDK default.
	MaxConcurrency int `yaml:"max_concurrency"`

	// AuthBackend names the backend operators log in against.
	// Defaults to the first backend.
	AuthBackend string `yaml:"auth_backend"`

	Session SessionConfig `yaml:"session"`
	Table   TableConfig   `yaml:"table"`
	Log     LogConfig     `yaml:"log"`

	// Backends defines individual engine instances.
	Backends []BackendConfig `yaml:"backends"`

	// Grids defines backend grids that expand via cartesian product.
	Grids []GridConfig `yaml:"grids"`
}

// SessionConfig configures operator session cookies.
type SessionConfig struct {
	// Keys are base64-encoded securecookie keys: an authentication key
	// (32 or 64 bytes) optionally followed by an encryption key. Values
	// support environment variable substitution. Empty means random keys
	// per process.
	Keys []string `yaml:"keys"`

	// SecureCookies marks cookies Secure (HTTPS only).
	SecureCookies bool `yaml:"secure_cookies"`

	decoded [][]byte
}

// DecodedKeys returns the session keys decoded by [Parse].
func (s SessionConfig) DecodedKeys() [][]byte {
	return s.decoded
}

// TableConfig configures the channel table every operator starts with.
type TableConfig struct {
	// Columns overrides initial column visibility by column ID.
	Columns map[string]bool `yaml:"columns"`

	// FilterPlaceholder is the placeholder of the filter input.
	FilterPlaceholder string `yaml:"filter_placeholder"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	// Level is debug, info, warn or error. Defaults to info.
	Level string `yaml:"level"`

	// Format is text or json. Defaults to json.
	Format string `yaml:"format"`

	// SeqURL ships logs to a Seq server as well when set.
	SeqURL string `yaml:"seq_url"`
}

// BackendConfig defines a single engine instance.
type BackendConfig struct {
	// Name is the display name shown in the Server column.
	Name string `yaml:"name"`

	// URL is the engine base URL.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Username and Password are the service credentials used to fetch
	// channels. Both support environment variable substitution.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Timeout is the request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Headers are custom HTTP headers sent with each request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Labels are metadata key-value pairs.
	Labels map[string]string `yaml:"labels"`

	// Interval is the custom refresh interval for this backend.
	// Must be between 1s and 1h.
	Interval Duration `yaml:"interval"`

	// InsecureSkipVerify disables TLS verification, for engines with
	// self-signed certificates.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// GridConfig defines a backend grid that expands via cartesian product.
//
// For example, with dimensions {env: [test, prod], site: [east, west]},
// the grid expands to 4 backends.
type GridConfig struct {
	// Name is the base name for generated backends.
	Name string `yaml:"name"`

	// URLTemplate is a Go template for generating backend URLs.
	// Dimension keys are available as template variables: {{.env}}
	URLTemplate string `yaml:"url_template"`

	// Dimensions maps dimension names to their possible values.
	Dimensions map[string][]string `yaml:"dimensions"`

	// NameTemplate shapes the generated backend names from their labels,
	// e.g. "{{.site}} {{.env}}". Defaults to "Name (v1/v2)".
	NameTemplate string `yaml:"name_template"`

	Username           string            `yaml:"username"`
	Password           string            `yaml:"password"`
	Timeout            Duration          `yaml:"timeout"`
	Headers            map[string]string `yaml:"headers"`
	Labels             map[string]string `yaml:"labels"`
	Interval           Duration          `yaml:"interval"`
	InsecureSkipVerify bool              `yaml:"insecure_skip_verify"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URLs, credentials, header values
// and session keys. Defaults are applied for Port (8080) and
// RefreshInterval (30s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = Duration(defaultRefreshInterval)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.RefreshInterval.Duration() < minRefreshInterval {
		return fmt.Errorf("refresh_interval must be at least %s, got %s", minRefreshInterval, c.RefreshInterval.Duration())
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency cannot be negative, got %d", c.MaxConcurrency)
	}

	if err := c.Session.expandAndDecode(); err != nil {
		return err
	}

	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Log.SeqURL != "" {
		expanded, err := expandEnvVars(c.Log.SeqURL)
		if err != nil {
			return fmt.Errorf("log.seq_url: %w", err)
		}
		c.Log.SeqURL = expanded
	}

	names := make(map[string]bool, len(c.Backends))
	for i := range c.Backends {
		b := &c.Backends[i]

		if b.Name == "" {
			return fmt.Errorf("backends[%d]: name is required", i)
		}
		if names[b.Name] {
			return fmt.Errorf("backends[%d] (%s): duplicate name", i, b.Name)
		}
		names[b.Name] = true

		if b.URL == "" {
			return fmt.Errorf("backends[%d] (%s): url is required", i, b.Name)
		}
		expanded, err := expandEnvVars(b.URL)
		if err != nil {
			return fmt.Errorf("backends[%d] (%s): url: %w", i, b.Name, err)
		}
		b.URL = expanded

		if err := validateURL(b.URL); err != nil {
			return fmt.Errorf("backends[%d] (%s): %w", i, b.Name, err)
		}

		if err := expandCommon(&b.Username, &b.Password, b.Headers, b.Timeout, b.Interval); err != nil {
			return fmt.Errorf("backends[%d] (%s): %w", i, b.Name, err)
		}
	}

	for i := range c.Grids {
		g := &c.Grids[i]

		if g.Name == "" {
			return fmt.Errorf("grids[%d]: name is required", i)
		}

		if g.URLTemplate == "" {
			return fmt.Errorf("grids[%d] (%s): url_template is required", i, g.Name)
		}
		expanded, err := expandEnvVars(g.URLTemplate)
		if err != nil {
			return fmt.Errorf("grids[%d] (%s): url_template: %w", i, g.Name, err)
		}
		g.URLTemplate = expanded

		if _, err := template.New("").Parse(g.URLTemplate); err != nil {
			return fmt.Errorf("grids[%d] (%s): invalid url_template: %w", i, g.Name, err)
		}

		if g.NameTemplate != "" {
			if _, err := template.New("").Parse(g.NameTemplate); err != nil {
				return fmt.Errorf("grids[%d] (%s): invalid name_template: %w", i, g.Name, err)
			}
		}

		if len(g.Dimensions) == 0 {
			return fmt.Errorf("grids[%d] (%s): at least one dimension is required", i, g.Name)
		}
		for dimName, dimValues := range g.Dimensions {
			if len(dimValues) == 0 {
				return fmt.Errorf("grids[%d] (%s): dimension %q has no values", i, g.Name, dimName)
			}
			seen := make(map[string]struct{}, len(dimValues))
			for _, v := range dimValues {
				if _, exists := seen[v]; exists {
					return fmt.Errorf("grids[%d] (%s): dimension %q has duplicate value %q", i, g.Name, dimName, v)
				}
				seen[v] = struct{}{}
			}
		}

		if err := expandCommon(&g.Username, &g.Password, g.Headers, g.Timeout, g.Interval); err != nil {
			return fmt.Errorf("grids[%d] (%s): %w", i, g.Name, err)
		}
	}

	if len(c.Backends) == 0 && len(c.Grids) == 0 {
		return errors.New("at least one backend or grid must be defined")
	}

	return nil
}

// expandCommon expands and validates the settings backends and grids share.
func expandCommon(username, password *string, headers map[string]string, timeout, interval Duration) error {
	var err error
	if *username, err = expandEnvVars(*username); err != nil {
		return fmt.Errorf("username: %w", err)
	}
	if *password, err = expandEnvVars(*password); err != nil {
		return fmt.Errorf("password: %w", err)
	}
	if *password != "" && *username == "" {
		return errors.New("password requires a username")
	}

	for k, v := range headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		headers[k] = expanded
	}

	if timeout != 0 && timeout.Duration() < time.Second {
		return fmt.Errorf("timeout must be at least 1s if specified, got %s", timeout.Duration())
	}

	if interval != 0 {
		if interval.Duration() < time.Second {
			return fmt.Errorf("interval must be at least 1s, got %s", interval.Duration())
		}
		if interval.Duration() > time.Hour {
			return fmt.Errorf("interval must not exceed 1h, got %s", interval.Duration())
		}
	}
	return nil
}

func validateURL(raw string) error {
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	return nil
}

// expandAndDecode expands and base64-decodes the session keys.
func (s *SessionConfig) expandAndDecode() error {
	s.decoded = nil
	for i, k := range s.Keys {
		expanded, err := expandEnvVars(k)
		if err != nil {
			return fmt.Errorf("session.keys[%d]: %w", i, err)
		}
		key, err := base64.StdEncoding.DecodeString(expanded)
		if err != nil {
			return fmt.Errorf("session.keys[%d]: invalid base64: %w", i, err)
		}
		if i%2 == 0 && len(key) < 32 {
			return fmt.Errorf("session.keys[%d]: authentication key must be at least 32 bytes, got %d", i, len(key))
		}
		if i%2 == 1 && len(key) != 16 && len(key) != 24 && len(key) != 32 {
			return fmt.Errorf("session.keys[%d]: encryption key must be 16, 24 or 32 bytes, got %d", i, len(key))
		}
		s.decoded = append(s.decoded, key)
	}
	return nil
}
