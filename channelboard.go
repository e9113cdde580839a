package channelboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/channelboard/dashboard"
	"github.com/jpalmerr/channelboard/internal/oie"
	"github.com/jpalmerr/channelboard/internal/poller"
	"github.com/jpalmerr/channelboard/internal/server"
	"github.com/jpalmerr/channelboard/internal/store"
)

const (
	defaultRefreshInterval = 30 * time.Second
	defaultPort            = 8080
	defaultMaxConcurrency  = 10
)

// Column IDs of the console table, for [WithColumnVisibility].
const (
	ColumnName        = server.ColumnName
	ColumnStatus      = server.ColumnStatus
	ColumnRevision    = server.ColumnRevision
	ColumnID          = server.ColumnID
	ColumnSource      = server.ColumnSource
	ColumnServer      = server.ColumnServer
	ColumnDescription = server.ColumnDescription
)

// ColumnIDs returns the IDs of the console table columns in display order.
func ColumnIDs() []string {
	return server.ColumnIDs()
}

// Console refreshes the channel lists of its backends and serves the
// operator console.
//
// Console is created using [New] with functional options and started with
// [Console.Start]:
//
//	c, err := channelboard.New(channelboard.WithBackend(prod))
//	if err != nil {
//	    slog.Error("failed to create console", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	c.Start(ctx) // blocks until context cancelled
type Console struct {
	title             string
	backends          []Backend
	authBackend       Backend
	refreshInterval   time.Duration
	port              int
	maxConcurrency    int
	logger            *slog.Logger
	snapshotCallbacks []func(Snapshot)
	sessionKeys       [][]byte
	secureCookies     bool
	columnVisibility  map[string]bool
	filterPlaceholder string
}

// New creates a new [Console] with the given options.
//
// At least one backend must be configured via [WithBackend] or
// [WithBackends]. Other options have sensible defaults:
//   - Refresh interval: 30 seconds
//   - Port: 8080
//   - Max concurrency: 10
//   - Auth backend: the first backend
//
// Returns an error if no backends are configured, backend names are not
// unique, the auth backend does not exist or any option is invalid.
func New(opts ...Option) (*Console, error) {
	cfg := &consoleConfig{
		backends:        []Backend{},
		refreshInterval: defaultRefreshInterval,
		port:            defaultPort,
		maxConcurrency:  defaultMaxConcurrency,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.backends) == 0 {
		return nil, errors.New("at least one backend is required")
	}

	// names key the store and the scheduler's interval tracking
	seen := make(map[string]bool, len(cfg.backends))
	for _, b := range cfg.backends {
		if seen[b.name] {
			return nil, fmt.Errorf("duplicate backend name: %q", b.name)
		}
		seen[b.name] = true
	}

	authBackend := cfg.backends[0]
	if cfg.authBackend != "" {
		if !seen[cfg.authBackend] {
			return nil, fmt.Errorf("auth backend %q is not a configured backend", cfg.authBackend)
		}
		for _, b := range cfg.backends {
			if b.name == cfg.authBackend {
				authBackend = b
				break
			}
		}
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Console{
		title:             cfg.title,
		backends:          cfg.backends,
		authBackend:       authBackend,
		refreshInterval:   cfg.refreshInterval,
		port:              cfg.port,
		maxConcurrency:    cfg.maxConcurrency,
		logger:            logger,
		snapshotCallbacks: cfg.snapshotCallbacks,
		sessionKeys:       cfg.sessionKeys,
		secureCookies:     cfg.secureCookies,
		columnVisibility:  cfg.columnVisibility,
		filterPlaceholder: cfg.filterPlaceholder,
	}, nil
}

// Start begins refreshing backends and serving the console.
//
// Start is a blocking call that runs until the provided context is
// cancelled. During execution:
//
//   - Every backend is refreshed immediately, then at its interval
//   - The console is served on the configured port
//   - Snapshot callbacks run after each refresh reaches the console
//
// Returns nil on graceful shutdown. Returns an error if a backend client
// cannot be built or the HTTP server fails to start.
func (c *Console) Start(ctx context.Context) error {
	c.logger.Info("channelboard starting", "backend_count", len(c.backends))
	c.logger.Info("refresh configured", "interval", c.refreshInterval.String())
	c.logger.Info("console available", "url", fmt.Sprintf("http://localhost:%d", c.port))

	if ctx.Err() != nil {
		return nil
	}

	auth, err := c.newAuthenticator()
	if err != nil {
		return err
	}

	pollerBackends, err := c.toPollerBackends()
	if err != nil {
		return err
	}

	snapshots := store.NewMemoryStore()
	for _, b := range c.backends {
		snapshots.Seed(b.name, b.url, copyMap(b.labels))
	}

	scheduler := poller.NewScheduler(pollerBackends, c.refreshInterval, c.maxConcurrency, c.logger)
	scheduler.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range scheduler.Results() {
			// store first: callbacks fire once the console shows the data
			snapshots.Update(toStoreSnapshot(result))

			if len(c.snapshotCallbacks) > 0 {
				public := toPublicSnapshot(result)
				for _, cb := range c.snapshotCallbacks {
					invokeCallbackSafe(cb, public, c.logger)
				}
			}

			logAttrs := []any{
				"backend", result.BackendName,
				"url", result.URL,
				"channels", len(result.Channels),
				"latency_ms", result.Latency.Milliseconds(),
			}
			if result.Error != nil {
				c.logger.Warn("refresh completed with error", append(logAttrs, "error", result.Error.Error())...)
			} else {
				c.logger.Debug("refresh completed", logAttrs...)
			}
		}
	}()

	cleanup := func() {
		scheduler.Stop() // closes results channel
		wg.Wait()
	}

	httpServer, err := server.NewServer(server.Config{
		Store:             snapshots,
		Auth:              auth,
		Assets:            dashboard.Assets,
		Port:              c.port,
		Title:             c.title,
		Logger:            c.logger,
		Refresh:           scheduler.Refresh,
		SessionKeys:       c.sessionKeys,
		SecureCookies:     c.secureCookies,
		ColumnVisibility:  c.columnVisibility,
		FilterPlaceholder: c.filterPlaceholder,
	})
	if err != nil {
		cleanup()
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	cleanup()
	c.logger.Info("channelboard stopped")
	return nil
}

// newAuthenticator builds the operator login check against the auth
// backend. Its credentials are not used: operators log in as themselves.
func (c *Console) newAuthenticator() (*oie.Authenticator, error) {
	b := c.authBackend
	auth, err := oie.NewAuthenticator(b.url,
		oie.WithHeaders(copyMap(b.headers)),
		oie.WithTimeout(b.timeout),
		oie.WithInsecureSkipVerify(b.insecure),
		oie.WithLogger(c.logger.With("backend", b.name)),
	)
	if err != nil {
		return nil, fmt.Errorf("auth backend %q: %w", b.name, err)
	}
	return auth, nil
}

// toPollerBackends builds one API client per backend.
func (c *Console) toPollerBackends() ([]poller.BackendInfo, error) {
	result := make([]poller.BackendInfo, len(c.backends))

	for i, b := range c.backends {
		opts := []oie.Option{
			oie.WithHeaders(copyMap(b.headers)),
			oie.WithTimeout(b.timeout),
			oie.WithInsecureSkipVerify(b.insecure),
			oie.WithLogger(c.logger.With("backend", b.name)),
		}
		if b.username != "" {
			opts = append(opts, oie.WithCredentials(b.username, b.password))
		}

		client, err := oie.NewClient(b.url, opts...)
		if err != nil {
			for _, built := range result[:i] {
				built.Fetcher.Close()
			}
			return nil, fmt.Errorf("backend %q: %w", b.name, err)
		}

		result[i] = poller.BackendInfo{
			Name:     b.name,
			URL:      b.url,
			Labels:   copyMap(b.labels),
			Interval: b.interval,
			Fetcher:  client,
		}
	}

	return result, nil
}

// Backends returns a copy of the configured backends.
func (c *Console) Backends() []Backend {
	cp := make([]Backend, len(c.backends))
	copy(cp, c.backends)
	return cp
}

// AuthBackend returns the backend operators log in against.
func (c *Console) AuthBackend() Backend {
	return c.authBackend
}

// Port returns the configured HTTP port of the console.
func (c *Console) Port() int {
	return c.port
}

// RefreshInterval returns the configured interval between refreshes.
func (c *Console) RefreshInterval() time.Duration {
	return c.refreshInterval
}

// toChannel converts a wire channel of the named backend.
func toChannel(backend string, oc oie.Channel) Channel {
	ch := Channel{
		ID:            oc.ID,
		Name:          oc.Name,
		Revision:      oc.Revision,
		TransportName: oc.TransportName(),
		InitialState:  oc.InitialState(),
		Server:        backend,
	}
	if oc.Description != nil {
		ch.Description = *oc.Description
	}
	if enabled, ok := oc.Enabled(); ok {
		ch.Enabled = &enabled
	}
	return ch
}

// toStoreSnapshot converts a poller result to a store snapshot, with the
// status badge of every channel resolved.
func toStoreSnapshot(r poller.Result) store.Snapshot {
	var errStr *string
	var channels []store.Channel
	if r.Error != nil {
		s := r.Error.Error()
		errStr = &s
	} else {
		channels = make([]store.Channel, len(r.Channels))
		for i, oc := range r.Channels {
			ch := toChannel(r.BackendName, oc)
			state := StateOf(ch)
			channels[i] = store.Channel{
				ID:            ch.ID,
				Name:          ch.Name,
				Revision:      ch.Revision,
				Description:   ch.Description,
				TransportName: ch.TransportName,
				InitialState:  ch.InitialState,
				Enabled:       ch.Enabled,
				State:         state.Label,
				StateVariant:  state.Variant,
				Server:        ch.Server,
			}
		}
	}

	return store.Snapshot{
		Backend:     r.BackendName,
		URL:         r.URL,
		Labels:      r.Labels,
		Channels:    channels,
		LatencyMs:   r.Latency.Milliseconds(),
		RefreshedAt: r.FetchedAt,
		Error:       errStr,
	}
}

// toPublicSnapshot converts a poller result to the public callback type.
// Mutable fields are copied so callbacks cannot race with the store.
func toPublicSnapshot(r poller.Result) Snapshot {
	var channels []Channel
	if r.Error == nil {
		channels = make([]Channel, len(r.Channels))
		for i, oc := range r.Channels {
			channels[i] = toChannel(r.BackendName, oc)
		}
	}
	return Snapshot{
		Backend:     r.BackendName,
		URL:         r.URL,
		Labels:      copyMap(r.Labels),
		Channels:    channels,
		Latency:     r.Latency,
		RefreshedAt: r.FetchedAt,
		Error:       r.Error,
	}
}

// invokeCallbackSafe calls a snapshot callback with panic recovery.
// Panics are logged with a correlation ID but do not propagate.
func invokeCallbackSafe(cb func(Snapshot), snapshot Snapshot, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("snapshot callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"backend", snapshot.Backend,
				"stack", string(debug.Stack()),
			)
		}
	}()
	cb(snapshot)
}
