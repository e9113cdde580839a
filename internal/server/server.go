package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/justinas/nosurf"

	"github.com/jpalmerr/channelboard/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	defaultTitle             = "Channelboard"
	defaultFilterPlaceholder = "Filter channels…"
	defaultSessionMaxAge     = 8 * 60 * 60 // seconds

	sessionName = "channelboard-session"
)

// Authenticator checks operator credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) error
}

// Config configures a [Server].
type Config struct {
	// Store provides the channel snapshots. Required.
	Store store.Store

	// Auth checks operator credentials at login. Required.
	Auth Authenticator

	// Assets holds the page templates under assets/. Required.
	Assets fs.FS

	// Port is the TCP port to listen on.
	Port int

	// Title is shown in the browser tab and the top bar.
	// Defaults to "Channelboard".
	Title string

	// Logger receives server events. Defaults to slog.Default().
	Logger *slog.Logger

	// Refresh requests an immediate refresh of all backends. May be nil.
	Refresh func() bool

	// SessionKeys are gorilla/securecookie key pairs (authentication key,
	// optional encryption key, ...). Random keys are generated when empty,
	// which invalidates sessions on restart.
	SessionKeys [][]byte

	// SecureCookies marks session and CSRF cookies Secure.
	SecureCookies bool

	// SessionMaxAge is the session cookie lifetime. Defaults to 8 hours.
	SessionMaxAge time.Duration

	// ColumnVisibility overrides the default column visibility.
	ColumnVisibility map[string]bool

	// FilterPlaceholder is the filter input placeholder.
	// Defaults to "Filter channels…".
	FilterPlaceholder string

	// ViewTTL is how long an idle operator view is kept. Defaults to 30
	// minutes.
	ViewTTL time.Duration
}

// Server handles HTTP requests for the console and its API.
//
// Routes:
//   - GET /login, POST /login, POST /logout: operator sessions
//   - GET /dashboard: the channel console
//   - GET /dashboard/table: the console fragment refreshed by the page
//   - POST /dashboard/filter|sort|columns|refresh: table controls
//   - GET /api/channels: all snapshots as JSON
//   - GET /api/sse: Server-Sent Events stream of snapshot updates
//   - GET /healthz: liveness probe
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	auth       Authenticator
	port       int
	title      string
	logger     *slog.Logger
	refresh    func() bool
	sessions   *sessions.CookieStore
	secure     bool
	views      *viewCache
	input      tableCache
	pages      map[string]*template.Template
	handler    http.Handler
	httpServer *http.Server
}

// NewServer creates a new HTTP [Server].
//
// The server is not started until [Server.Start] is called. Returns an
// error if a required field is missing or the page templates do not parse.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("authenticator is required")
	}
	if cfg.Assets == nil {
		return nil, errors.New("assets are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	title := cfg.Title
	if title == "" {
		title = defaultTitle
	}

	keys := cfg.SessionKeys
	if len(keys) == 0 {
		keys = [][]byte{securecookie.GenerateRandomKey(64), securecookie.GenerateRandomKey(32)}
		logger.Warn("no session keys configured, sessions will not survive a restart")
	}
	for i, k := range keys {
		if k == nil {
			return nil, fmt.Errorf("session key %d could not be generated", i)
		}
	}

	maxAge := int(cfg.SessionMaxAge / time.Second)
	if maxAge <= 0 {
		maxAge = defaultSessionMaxAge
	}

	cookieStore := sessions.NewCookieStore(keys...)
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}

	visibility := DefaultColumnVisibility()
	for k, v := range cfg.ColumnVisibility {
		visibility[k] = v
	}

	views, err := newViewCache(cfg.ViewTTL, visibility, cfg.FilterPlaceholder, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid column schema: %w", err)
	}

	pages, err := parsePages(cfg.Assets)
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:    cfg.Store,
		auth:     cfg.Auth,
		port:     cfg.Port,
		title:    title,
		logger:   logger,
		refresh:  cfg.Refresh,
		sessions: cookieStore,
		secure:   cfg.SecureCookies,
		views:    views,
		pages:    pages,
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// routes builds the router.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(s.csrf)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5, "text/html", "application/json"))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		})
		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireOperator)

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/", s.handleDashboard)
				r.Get("/table", s.handleConsoleFragment)
				r.Post("/filter", s.handleFilter)
				r.Post("/sort", s.handleSort)
				r.Post("/columns", s.handleColumns)
				r.Post("/refresh", s.handleRefresh)
			})

			r.Get("/api/channels", s.handleChannels)
		})
	})

	// SSE stays outside the compressor so every event is flushed as written
	r.With(s.requireOperator).Get("/api/sse", s.handleSSE)

	return r
}

// csrf wraps h with nosurf CSRF protection for every unsafe method.
func (s *Server) csrf(h http.Handler) http.Handler {
	protected := nosurf.New(h)
	protected.SetBaseCookie(http.Cookie{
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	protected.SetFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Warn("csrf check failed",
			"path", r.URL.Path,
			"reason", fmt.Sprint(nosurf.Reason(r)),
			"request_id", middleware.GetReqID(r.Context()),
		)
		http.Error(w, "Invalid or missing CSRF token", http.StatusBadRequest)
	}))
	return protected
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns once the listener is bound. When ctx is
// cancelled the server shuts down gracefully with a 5-second timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx, so SSE handlers end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// requestLogger logs every request at DEBUG level.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte("ok"))
}
