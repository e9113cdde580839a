package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/channelboard/dashboard"
	"github.com/jpalmerr/channelboard/internal/store"
)

// fakeAuth accepts a single username/password pair.
type fakeAuth struct {
	username string
	password string
	calls    atomic.Int32
}

func (a *fakeAuth) Authenticate(_ context.Context, username, password string) error {
	a.calls.Add(1)
	if username != a.username || password != a.password {
		return errors.New("Incorrect username or password.")
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	t       *testing.T
	srv     *Server
	ts      *httptest.Server
	store   *store.MemoryStore
	auth    *fakeAuth
	refresh atomic.Int32
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		t:     t,
		store: store.NewMemoryStore(),
		auth:  &fakeAuth{username: "admin", password: "secret"},
	}

	srv, err := NewServer(Config{
		Store:  env.store,
		Auth:   env.auth,
		Assets: dashboard.Assets,
		Title:  "Test Console",
		Logger: discardLogger(),
		Refresh: func() bool {
			env.refresh.Add(1)
			return true
		},
		SessionKeys: [][]byte{[]byte("0123456789abcdef0123456789abcdef")},
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	env.srv = srv
	env.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(env.ts.Close)
	return env
}

// browser is an HTTP client with a cookie jar that does not follow
// redirects.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (env *testEnv) browser() *browser {
	jar, err := cookiejar.New(nil)
	if err != nil {
		env.t.Fatalf("cookiejar.New() error = %v", err)
	}
	return &browser{
		t:    env.t,
		base: env.ts.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// get fetches path and returns the response with its body read.
func (b *browser) get(path string, header ...string) (*http.Response, string) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	if err != nil {
		b.t.Fatalf("NewRequest() error = %v", err)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return b.do(req)
}

// token returns the CSRF token of the page at path.
func (b *browser) token(path string) string {
	b.t.Helper()
	_, body := b.get(path)
	m := csrfPattern.FindStringSubmatch(body)
	if m == nil {
		b.t.Fatalf("no csrf token in %s", path)
	}
	return html.UnescapeString(m[1])
}

// post submits form to path with a CSRF token taken from /dashboard or
// /login. fetch marks the request as coming from the page script.
func (b *browser) post(path string, form url.Values, fetch bool) (*http.Response, string) {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if form.Get("csrf_token") == "" {
		form.Set("csrf_token", b.anyToken())
	}
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	if err != nil {
		b.t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if fetch {
		req.Header.Set("X-Requested-With", "fetch")
	}
	return b.do(req)
}

func (b *browser) anyToken() string {
	b.t.Helper()
	resp, body := b.get("/dashboard")
	if resp.StatusCode != http.StatusOK {
		return b.token("/login")
	}
	m := csrfPattern.FindStringSubmatch(body)
	if m == nil {
		b.t.Fatal("no csrf token on dashboard")
	}
	return html.UnescapeString(m[1])
}

func (b *browser) do(req *http.Request) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.Do(req)
	if err != nil {
		b.t.Fatalf("%s %s error = %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		b.t.Fatalf("read body error = %v", err)
	}
	return resp, string(body)
}

// login signs the browser in as the test operator.
func (b *browser) login() {
	b.t.Helper()
	form := url.Values{"username": {"admin"}, "password": {"secret"}}
	resp, body := b.post("/login", form, false)
	if resp.StatusCode != http.StatusSeeOther {
		b.t.Fatalf("login status = %d, body = %s", resp.StatusCode, body)
	}
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

// publish stores a successful refresh of backend.
func (env *testEnv) publish(backend string, channels ...store.Channel) {
	for i := range channels {
		channels[i].Server = backend
	}
	env.store.Update(store.Snapshot{
		Backend:     backend,
		URL:         "https://" + backend + ".example.com",
		Channels:    channels,
		RefreshedAt: time.Now(),
	})
}

func sampleChannels() []store.Channel {
	return []store.Channel{
		{ID: "c-1", Name: "alpha", Revision: 3, TransportName: "HTTP Listener", State: "STARTED", StateVariant: "success"},
		{ID: "c-2", Name: "beta", Revision: 1, State: "DISABLED", StateVariant: "secondary", Enabled: boolPtr(false)},
	}
}

func TestNewServer_RequiresFields(t *testing.T) {
	st := store.NewMemoryStore()
	auth := &fakeAuth{}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"no store", Config{Auth: auth, Assets: dashboard.Assets}},
		{"no auth", Config{Store: st, Assets: dashboard.Assets}},
		{"no assets", Config{Store: st, Auth: auth}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Logger = discardLogger()
			if _, err := NewServer(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewServer_RandomSessionKeys(t *testing.T) {
	srv, err := NewServer(Config{
		Store:  store.NewMemoryStore(),
		Auth:   &fakeAuth{},
		Assets: dashboard.Assets,
		Logger: discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if srv.title != defaultTitle {
		t.Errorf("title = %q, want %q", srv.title, defaultTitle)
	}
	if srv.sessions.Options.MaxAge != defaultSessionMaxAge {
		t.Errorf("MaxAge = %d, want %d", srv.sessions.Options.MaxAge, defaultSessionMaxAge)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.browser().get("/healthz")
	if resp.StatusCode != http.StatusOK || body != "ok" {
		t.Errorf("healthz = %d %q, want 200 \"ok\"", resp.StatusCode, body)
	}
}

func TestRequireOperator(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser()

	tests := []struct {
		name     string
		path     string
		header   []string
		status   int
		location string
	}{
		{"root redirects to dashboard", "/", nil, http.StatusSeeOther, "/dashboard"},
		{"dashboard redirects to login", "/dashboard", nil, http.StatusSeeOther, "/login"},
		{"fragment redirects to login", "/dashboard/table", nil, http.StatusSeeOther, "/login"},
		{"fetch caller gets 401", "/dashboard/table", []string{"X-Requested-With", "fetch"}, http.StatusUnauthorized, ""},
		{"api gets 401", "/api/channels", nil, http.StatusUnauthorized, ""},
		{"sse gets 401", "/api/sse", nil, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := b.get(tt.path, tt.header...)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if got := resp.Header.Get("Location"); got != tt.location {
				t.Errorf("Location = %q, want %q", got, tt.location)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		status   int
		wantBody string
	}{
		{"success", "admin", "secret", http.StatusSeeOther, ""},
		{"wrong password", "admin", "nope", http.StatusUnauthorized, "Incorrect username or password."},
		{"missing password", "admin", "", http.StatusBadRequest, "Username and password are required."},
		{"missing username", "  ", "secret", http.StatusBadRequest, "Username and password are required."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			b := env.browser()

			form := url.Values{"username": {tt.username}, "password": {tt.password}}
			resp, body := b.post("/login", form, false)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.wantBody != "" && !strings.Contains(body, tt.wantBody) {
				t.Errorf("body does not contain %q", tt.wantBody)
			}
			if tt.status == http.StatusSeeOther {
				if loc := resp.Header.Get("Location"); loc != "/dashboard" {
					t.Errorf("Location = %q, want /dashboard", loc)
				}
				resp, body := b.get("/dashboard")
				if resp.StatusCode != http.StatusOK {
					t.Fatalf("dashboard status = %d", resp.StatusCode)
				}
				if !strings.Contains(body, "admin") {
					t.Error("dashboard does not show the operator")
				}
			}
		})
	}
}

func TestLogin_KeepsUsernameOnFailure(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser()

	_, body := b.post("/login", url.Values{"username": {"admin"}, "password": {"bad"}}, false)
	if !strings.Contains(body, `name="username" value="admin"`) {
		t.Error("login form does not keep the username")
	}
}

func TestLogin_RejectsBadCSRFToken(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser()
	b.token("/login") // sets the CSRF cookie

	form := url.Values{"username": {"admin"}, "password": {"secret"}, "csrf_token": {"bogus"}}
	resp, _ := b.post("/login", form, false)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if n := env.auth.calls.Load(); n != 0 {
		t.Errorf("authenticator called %d times, want 0", n)
	}
}

func TestLoginPage_RedirectsWhenLoggedIn(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser()
	b.login()

	resp, _ := b.get("/login")
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/dashboard" {
		t.Errorf("GET /login = %d %q, want 303 /dashboard", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser()
	b.login()
	b.get("/dashboard")
	if n := env.srv.views.len(); n != 1 {
		t.Fatalf("views = %d, want 1", n)
	}

	resp, _ := b.post("/logout", nil, false)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("logout = %d %q, want 303 /login", resp.StatusCode, resp.Header.Get("Location"))
	}
	if n := env.srv.views.len(); n != 0 {
		t.Errorf("views after logout = %d, want 0", n)
	}

	resp, _ = b.get("/dashboard")
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("dashboard after logout = %d, want 303", resp.StatusCode)
	}
}

func TestDashboard_Loading(t *testing.T) {
	env := newTestEnv(t)
	env.store.Seed("prod", "https://prod.example.com", nil)
	b := env.browser()
	b.login()

	_, body := b.get("/dashboard")
	if !strings.Contains(body, `<td colspan="5">Loading…</td>`) {
		t.Error("table does not show the loading placeholder")
	}
	if strings.Contains(body, " total") {
		t.Error("count shown while loading")
	}
}

func TestDashboard_Error(t *testing.T) {
	env := newTestEnv(t)
	env.store.Seed("prod", "https://prod.example.com", nil)
	env.store.Update(store.Snapshot{
		Backend:     "prod",
		RefreshedAt: time.Now(),
		Error:       strPtr("failed to load channels: 503"),
	})
	b := env.browser()
	b.login()

	_, body := b.get("/dashboard")
	if !strings.Contains(body, "Failed to load data.") {
		t.Error("table does not show the error placeholder")
	}
	if !strings.Contains(body, "failed to load channels: 503") {
		t.Error("backend error banner missing")
	}
}

func TestDashboard_Rows(t *testing.T) {
	env := newTestEnv(t)
	env.publish("prod", sampleChannels()...)
	b := env.browser()
	b.login()

	_, body := b.get("/dashboard")

	for _, want := range []string{
		"2 total",
		"<strong>alpha</strong>",
		`<span class="badge badge-success">STARTED</span>`,
		`<span class="badge badge-secondary">DISABLED</span>`,
		`<code class="channel-id">c-1</code>`,
		"<td>HTTP Listener</td>",
		"<td>—</td>",
		"<td>prod</td>",
		"refreshed",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard does not contain %q", want)
		}
	}
	if strings.Contains(body, `data-column="revision"`) {
		t.Error("revision column visible by default")
	}
}

func TestDashboard_StaleBackendKeepsRows(t *testing.T) {
	env := newTestEnv(t)
	env.publish("prod", sampleChannels()...)
	env.store.Update(store.Snapshot{
		Backend:     "prod",
		RefreshedAt: time.Now(),
		Error:       strPtr("connection refused"),
	})
	b := env.browser()
	b.login()

	_, body := b.get("/dashboard")
	if !strings.Contains(body, "<strong>alpha</strong>") {
		t.Error("stale rows dropped")
	}
	if !strings.Contains(body, `class="alert stale"`) {
		t.Error("stale banner missing")
	}
}

func TestDashboard_Filter(t *testing.T) {
	env := newTestEnv(t)
	env.publish("prod", sampleChannels()...)
	b := env.browser()
	b.login()

	resp, _ := b.post("/dashboard/filter", url.Values{"q": {"ALP"}}, false)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/dashboard" {
		t.Fatalf("filter = %d %q, want 303 /dashboard", resp.StatusCode, resp.Header.Get("Location"))
	}

	_, body := b.get("/dashboard")
	if !strings.Contains(body, "<strong>alpha</strong>") || strings.Contains(body, "<strong>beta</strong>") {
		t.Error("filter not applied")
	}
	if !strings.Contains(body, `value="ALP"`) {
		t.Error("filter input does not keep the text")
	}

	resp, body = b.post("/dashboard/filter", url.Values{"q": {"zzz"}}, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch filter status = %d", resp.StatusCode)
	}
	if strings.Contains(body, "<html") {
		t.Error("fetch caller got the full page")
	}
	if !strings.Contains(body, "No results.") {
		t.Error("fragment does not show the empty placeholder")
	}
}

func TestDashboard_Sort(t *testing.T) {
	env := newTestEnv(t)
	env.publish("prod", sampleChannels()...)
	b := env.browser()
	b.login()

	order := func(body string) bool {
		return strings.Index(body, "<strong>alpha</strong>") < strings.Index(body, "<strong>beta</strong>")
	}

	_, body := b.post("/dashboard/sort", url.Values{"column": {ColumnName}}, true)
	if !order(body) || !strings.Contains(body, `aria-sort="ascending"`) {
		t.Error("first toggle should sort ascending")
	}

	_, body = b.post("/dashboard/sort", url.Values{"column": {ColumnName}}, true)
	if order(body) || !strings.Contains(body, `aria-sort="descending"`) {
		t.Error("second toggle should sort descending")
	}

	_, body = b.post("/dashboard/sort", url.Values{"column": {ColumnName}}, true)
	if !order(body) || strings.Contains(body, "aria-sort") {
		t.Error("third toggle should restore source order")
	}
}

func TestDashboard_Columns(t *testing.T) {
	env := newTestEnv(t)
	env.publish("prod", store.Channel{ID: "c-1", Name: "alpha", Description: "<b>Inbound</b> &amp; <script>alert(1)</script>"})
	b := env.browser()
	b.login()

	resp, _ := b.post("/dashboard/columns", url.Values{"column": {ColumnDescription}, "visible": {"true"}}, false)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("columns status = %d, want 303", resp.StatusCode)
	}

	_, body := b.get("/dashboard")
	if !strings.Contains(body, `data-column="description"`) {
		t.Fatal("description column not shown")
	}
	if !strings.Contains(body, "<td>Inbound &amp; </td>") {
		t.Error("description markup not stripped")
	}
	if strings.Contains(body, "<script>alert") {
		t.Error("description script rendered")
	}

	resp, _ = b.post("/dashboard/columns", url.Values{"column": {ColumnDescription}, "visible": {"maybe"}}, false)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid visible status = %d, want 400", resp.StatusCode)
	}
}

func TestDashboard_Refresh(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser()
	b.login()

	resp, _ := b.post("/dashboard/refresh", nil, false)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("refresh status = %d, want 303", resp.StatusCode)
	}
	if n := env.refresh.Load(); n != 1 {
		t.Errorf("refresh hook called %d times, want 1", n)
	}
}

func TestDashboard_ViewsArePerSession(t *testing.T) {
	env := newTestEnv(t)
	env.publish("prod", sampleChannels()...)

	first := env.browser()
	first.login()
	second := env.browser()
	second.login()

	first.post("/dashboard/filter", url.Values{"q": {"alpha"}}, false)

	_, body := second.get("/dashboard")
	if !strings.Contains(body, "<strong>beta</strong>") {
		t.Error("filter of one session leaked into another")
	}
	if n := env.srv.views.len(); n != 2 {
		t.Errorf("views = %d, want 2", n)
	}
}

func TestAPIChannels(t *testing.T) {
	env := newTestEnv(t)
	env.publish("prod", sampleChannels()...)
	env.store.Seed("dev", "https://dev.example.com", nil)
	b := env.browser()
	b.login()

	resp, body := b.get("/api/channels")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var snapshots []store.Snapshot
	if err := json.Unmarshal([]byte(body), &snapshots); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(snapshots))
	}
	if snapshots[0].Backend != "dev" || !snapshots[0].Pending {
		t.Errorf("snapshots[0] = %+v, want pending dev", snapshots[0])
	}
	if len(snapshots[1].Channels) != 2 {
		t.Errorf("prod channels = %d, want 2", len(snapshots[1].Channels))
	}
}

func TestSSE(t *testing.T) {
	env := newTestEnv(t)
	env.store.Seed("prod", "https://prod.example.com", nil)
	b := env.browser()
	b.login()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.ts.URL+"/api/sse", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		t.Fatalf("GET /api/sse error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	events := make(chan store.Snapshot, 4)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var snap store.Snapshot
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap) == nil {
				events <- snap
			}
		}
	}()

	next := func() store.Snapshot {
		t.Helper()
		select {
		case snap := <-events:
			return snap
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for event")
			return store.Snapshot{}
		}
	}

	if snap := next(); snap.Backend != "prod" || !snap.Pending {
		t.Errorf("initial event = %+v, want pending prod", snap)
	}

	env.publish("prod", sampleChannels()...)
	if snap := next(); snap.Pending || len(snap.Channels) != 2 {
		t.Errorf("update event = %+v, want 2 channels", snap)
	}

	cancel()
	wg.Wait()
}
