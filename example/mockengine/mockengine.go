// Package mockengine serves the slice of the integration engine API the
// console uses: login, logout and the channel list. Channel states cycle
// every 20-60 seconds so the console has something to show.
package mockengine

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const sessionCookie = "JSESSIONID"

// Users maps the usernames the mock engine accepts to their passwords.
type Users map[string]string

// DefaultUsers accepts admin/admin, the engine's factory login.
var DefaultUsers = Users{"admin": "admin"}

type channel struct {
	ID            string
	Name          string
	Revision      int
	Description   string
	TransportName string
	Enabled       bool
}

var channels = []channel{
	{ID: "3f1c0a52-6c1e-4c8e-9a57-2b0d6a1e9c01", Name: "ADT Inbound", Revision: 12, Description: "HL7 ADT feed from the <b>EHR</b>", TransportName: "TCP Listener", Enabled: true},
	{ID: "7a9e44d0-1b2f-4f6e-8d1a-5c3b7e2f4a02", Name: "Lab Results", Revision: 4, Description: "ORU results to the lab system", TransportName: "File Reader", Enabled: true},
	{ID: "b2c8f7e1-9d3a-4e5b-a6c7-8d9e0f1a2b03", Name: "Pharmacy Orders", Revision: 7, TransportName: "HTTP Listener", Enabled: true},
	{ID: "c4d5e6f7-0a1b-4c2d-8e3f-4a5b6c7d8e04", Name: "Radiology Reports", Revision: 2, Description: "Legacy RIS bridge", TransportName: "Database Reader", Enabled: false},
	{ID: "d6e7f8a9-2b3c-4d4e-9f5a-6b7c8d9e0f05", Name: "Billing Export", Revision: 9, TransportName: "Channel Reader", Enabled: true},
	{ID: "e8f9a0b1-4c5d-4e6f-a07b-8c9d0e1f2a06", Name: "Immunization Registry", Revision: 1},
}

var states = []string{"STARTED", "PAUSED", "STOPPED"}

type channelState struct {
	idx          int
	nextChangeAt time.Time
}

// Engine is a mock integration engine.
type Engine struct {
	users Users

	mu       sync.Mutex
	sessions map[string]string
	states   map[string]*channelState
}

// New creates a mock engine accepting users.
func New(users Users) *Engine {
	return &Engine{
		users:    users,
		sessions: make(map[string]string),
		states:   make(map[string]*channelState),
	}
}

// Handler returns the engine's HTTP API.
func (e *Engine) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users/_login", e.handleLogin)
	mux.HandleFunc("POST /api/users/_logout", e.handleLogout)
	mux.HandleFunc("GET /api/channels", e.handleChannels)
	return mux
}

func (e *Engine) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password, ok := e.users[username]
	if !ok || password != r.PostFormValue("password") {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("Incorrect username or password."))
		return
	}

	id := uuid.NewString()
	e.mu.Lock()
	e.sessions[id] = username
	e.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/", HttpOnly: true})
	slog.Info("login", "user", username)
	w.WriteHeader(http.StatusOK)
}

func (e *Engine) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		e.mu.Lock()
		delete(e.sessions, c.Value)
		e.mu.Unlock()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *Engine) handleChannels(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(sessionCookie)
	e.mu.Lock()
	_, valid := e.sessions[cookieValue(c, err)]
	e.mu.Unlock()
	if !valid {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	// simulate small latency variance
	time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

	list := make([]map[string]any, 0, len(channels))
	for _, ch := range channels {
		entry := map[string]any{
			"@version": "4.5.2",
			"id":       ch.ID,
			"name":     ch.Name,
			"revision": ch.Revision,
		}
		if ch.Description != "" {
			entry["description"] = ch.Description
		}
		// a channel without a source connector has no state yet
		if ch.TransportName != "" {
			entry["properties"] = map[string]any{"initialState": e.state(ch.ID)}
			entry["sourceConnector"] = map[string]any{
				"transportName": ch.TransportName,
				"mode":          "SOURCE",
				"enabled":       ch.Enabled,
			}
		}
		list = append(list, entry)
	}

	w.Header().Set("Content-Type", "application/json")
	body := map[string]any{"list": map[string]any{"channel": list}}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// state returns the current state of a channel, advancing it when its
// scheduled change is due.
func (e *Engine) state(id string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, exists := e.states[id]
	if !exists {
		st = &channelState{nextChangeAt: nextChange()}
		e.states[id] = st
	}
	if time.Now().After(st.nextChangeAt) {
		from := states[st.idx]
		st.idx = (st.idx + 1) % len(states)
		st.nextChangeAt = nextChange()
		slog.Info("state change", "channel", id, "from", from, "to", states[st.idx])
	}
	return states[st.idx]
}

func nextChange() time.Time {
	return time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
}

func cookieValue(c *http.Cookie, err error) string {
	if err != nil {
		return ""
	}
	return c.Value
}
