// Package channelboard provides an embeddable operator console for the
// channels of one or more integration engines.
//
// The console logs operators in against an engine, refreshes each engine's
// channel list in the background and shows every channel in a single
// server-rendered table with a global filter, per-column sorting and a
// column visibility menu. Table state is kept per operator session.
//
// # Quick Start
//
//	prod, _ := channelboard.NewBackend("prod", "https://oie.example.com:8443",
//	    channelboard.WithCredentials("svc-console", os.Getenv("OIE_PASSWORD")),
//	)
//	c, _ := channelboard.New(channelboard.WithBackend(prod))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	c.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// The console uses the functional options pattern:
//
//	c, err := channelboard.New(
//	    channelboard.WithBackends(dev, prod),
//	    channelboard.WithAuthBackend("prod"),
//	    channelboard.WithRefreshInterval(time.Minute),
//	    channelboard.WithSessionKeys(hashKey, blockKey),
//	    channelboard.WithColumnVisibility(map[string]bool{channelboard.ColumnRevision: true}),
//	)
//
// Several engines of the same shape can be generated with [NewBackendGrid].
//
// # Status badges
//
// [StateOf] maps a channel to its badge: a disabled source connector shows
// DISABLED, otherwise the configured initial state is shown, STARTED and
// PAUSED with their own styles.
//
// # Architecture
//
//   - datatable: the generic table core (columns, view state, derivation, HTML)
//   - internal/oie: engine API client (login, channel list, retries)
//   - internal/poller: concurrent refresh scheduler with a worker pool
//   - internal/store: in-memory snapshots with pub/sub for live updates
//   - internal/server: sessions, CSRF, console pages, REST API and SSE
//   - dashboard: embedded page templates
//   - config, cmd/channelboard: YAML configuration and the standalone CLI
//
// The internal packages are not part of the public API and may change
// without notice.
package channelboard
