package server

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/justinas/nosurf"

	"github.com/jpalmerr/channelboard/datatable"
	"github.com/jpalmerr/channelboard/internal/store"
)

// backendProblem is a failed backend shown above the table.
type backendProblem struct {
	Backend string
	Message string
	Stale   bool
	Since   string
}

// consolePage is the template data of the dashboard.
type consolePage struct {
	page
	Loading     bool
	Total       string
	LastRefresh string
	Problems    []backendProblem
	Table       template.HTML
}

// tableInput derives the table data and flags from the snapshots.
//
// The table is loading while no backend has data and at least one has not
// answered yet, and failed once every backend answered without data. Rows
// are the channels of every backend with data, in snapshot order.
func tableInput(snapshots []store.Snapshot) (rows []store.Channel, loading, failed bool) {
	var anyData, anyPending bool
	for _, snap := range snapshots {
		if snap.HasData() {
			anyData = true
			rows = append(rows, snap.Channels...)
		}
		if snap.Pending {
			anyPending = true
		}
	}
	if rows == nil {
		rows = []store.Channel{}
	}

	loading = !anyData && anyPending
	failed = !anyData && !anyPending && len(snapshots) > 0
	return rows, loading, failed
}

// problems lists the backends whose latest refresh failed.
func problems(snapshots []store.Snapshot, now time.Time) []backendProblem {
	var out []backendProblem
	for _, snap := range snapshots {
		if snap.Error == nil {
			continue
		}
		p := backendProblem{Backend: snap.Backend, Message: *snap.Error, Stale: snap.Stale}
		if snap.HasData() {
			p.Since = humanize.RelTime(snap.SucceededAt, now, "ago", "from now")
		}
		out = append(out, p)
	}
	return out
}

// lastRefresh returns the humanized time of the most recent successful
// refresh, empty if none.
func lastRefresh(snapshots []store.Snapshot, now time.Time) string {
	var latest time.Time
	for _, snap := range snapshots {
		if snap.SucceededAt.After(latest) {
			latest = snap.SucceededAt
		}
	}
	if latest.IsZero() {
		return ""
	}
	return humanize.RelTime(latest, now, "ago", "from now")
}

// tableCache holds the table input of one store version, so every view
// renders from the same rows slice until the store changes and the tables
// keep their derived rows between renders.
type tableCache struct {
	mu      sync.Mutex
	valid   bool
	version uint64
	rows    []store.Channel
	loading bool
	failed  bool
}

// get returns the table input for snapshots read at version.
func (c *tableCache) get(version uint64, snapshots []store.Snapshot) (rows []store.Channel, loading, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid || c.version != version {
		c.rows, c.loading, c.failed = tableInput(snapshots)
		c.version = version
		c.valid = true
	}
	return c.rows, c.loading, c.failed
}

// consoleData renders the operator's table against the current snapshots.
func (s *Server) consoleData(r *http.Request, op operator) (consolePage, error) {
	// version first: snapshots are at least as new as the version they
	// are cached under
	version := s.store.Version()
	snapshots := s.store.GetAll()
	rows, loading, failed := s.input.get(version, snapshots)
	now := time.Now()

	data := consolePage{
		page:        s.page(r, op.Name),
		Loading:     loading,
		Total:       humanize.Comma(int64(len(rows))),
		LastRefresh: lastRefresh(snapshots, now),
		Problems:    problems(snapshots, now),
	}

	v := s.views.get(op.ViewID)
	v.mu.Lock()
	defer v.mu.Unlock()

	v.table.SetData(rows, loading, failed)

	var buf bytes.Buffer
	err := v.table.Render(&buf, datatable.RenderOptions{
		ActionPath: "/dashboard",
		CSRFField:  nosurf.FormFieldName,
		CSRFToken:  data.CSRFToken,
	})
	if err != nil {
		return consolePage{}, err
	}
	data.Table = template.HTML(buf.String())
	return data, nil
}

// handleDashboard renders the full console page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.serveConsole(w, r, "layout")
}

// handleConsoleFragment renders only the console section, for in-place
// updates by the page script.
func (s *Server) handleConsoleFragment(w http.ResponseWriter, r *http.Request) {
	s.serveConsole(w, r, "console")
}

func (s *Server) serveConsole(w http.ResponseWriter, r *http.Request, tmpl string) {
	op, _ := operatorFrom(r.Context())
	data, err := s.consoleData(r, op)
	if err != nil {
		s.logger.Error("failed to render table", "username", op.Name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.renderTemplate(w, r, http.StatusOK, "dashboard", tmpl, data)
}

// afterAction answers a table control: the console fragment for the page
// script, a redirect back to the console for plain form posts.
func (s *Server) afterAction(w http.ResponseWriter, r *http.Request) {
	if isFetch(r) {
		s.serveConsole(w, r, "console")
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// withView runs fn with the operator's locked table.
func (s *Server) withView(r *http.Request, fn func(t *datatable.Table[store.Channel])) {
	op, _ := operatorFrom(r.Context())
	v := s.views.get(op.ViewID)
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(v.table)
}

// handleFilter sets the global filter text.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	q := r.PostFormValue("q")
	s.withView(r, func(t *datatable.Table[store.Channel]) {
		t.SetFilterText(q)
	})
	s.afterAction(w, r)
}

// handleSort advances the sort cycle of a column.
func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	column := r.PostFormValue("column")
	s.withView(r, func(t *datatable.Table[store.Channel]) {
		t.ToggleSort(column)
	})
	s.afterAction(w, r)
}

// handleColumns shows or hides a column.
func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	column := r.PostFormValue("column")
	visible, err := strconv.ParseBool(r.PostFormValue("visible"))
	if err != nil {
		http.Error(w, "visible must be true or false", http.StatusBadRequest)
		return
	}
	s.withView(r, func(t *datatable.Table[store.Channel]) {
		t.SetColumnVisible(column, visible)
	})
	s.afterAction(w, r)
}

// handleRefresh requests an immediate refresh of every backend.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresh != nil && !s.refresh() {
		s.logger.Debug("refresh requested while the scheduler is not running")
	}
	s.afterAction(w, r)
}
