package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	sessionOperator = "operator"
	sessionView     = "view"
)

type operatorKey struct{}

// operator is the logged-in user of a request.
type operator struct {
	Name   string
	ViewID string
}

// operatorFrom returns the operator stored by requireOperator.
func operatorFrom(ctx context.Context) (operator, bool) {
	op, ok := ctx.Value(operatorKey{}).(operator)
	return op, ok
}

// session returns the operator session. A cookie that no longer decodes
// (e.g. after a key change) yields a fresh, empty session.
func (s *Server) session(r *http.Request) *sessions.Session {
	sess, err := s.sessions.Get(r, sessionName)
	if err != nil {
		s.logger.Debug("discarding undecodable session", "error", err.Error())
	}
	return sess
}

// currentOperator reads the operator from the session cookie.
func (s *Server) currentOperator(r *http.Request) (operator, bool) {
	sess := s.session(r)
	name, _ := sess.Values[sessionOperator].(string)
	viewID, _ := sess.Values[sessionView].(string)
	if name == "" || viewID == "" {
		return operator{}, false
	}
	return operator{Name: name, ViewID: viewID}, true
}

// requireOperator rejects requests without a logged-in operator. Pages
// redirect to /login; API and fetch callers get 401.
func (s *Server) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op, ok := s.currentOperator(r)
		if !ok {
			if isFetch(r) || strings.HasPrefix(r.URL.Path, "/api/") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), operatorKey{}, op)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loginPage is the template data of the login page.
type loginPage struct {
	page
	Username string
	Error    string
}

// handleLoginPage renders the login form.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentOperator(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login", loginPage{page: s.page(r, "")})
}

// handleLogin checks the submitted credentials against the auth backend and
// opens an operator session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	data := loginPage{page: s.page(r, ""), Username: username}

	if username == "" || password == "" {
		data.Error = "Username and password are required."
		s.render(w, r, http.StatusBadRequest, "login", data)
		return
	}

	if err := s.auth.Authenticate(r.Context(), username, password); err != nil {
		s.logger.Warn("operator login failed",
			"username", username,
			"error", err.Error(),
			"request_id", middleware.GetReqID(r.Context()),
		)
		data.Error = err.Error()
		s.render(w, r, http.StatusUnauthorized, "login", data)
		return
	}

	sess := s.session(r)
	sess.Values[sessionOperator] = username
	sess.Values[sessionView] = uuid.NewString()
	if err := sess.Save(r, w); err != nil {
		s.logger.Error("failed to save session", "error", err)
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	s.logger.Info("operator logged in", "username", username)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// handleLogout closes the operator session and drops its view.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if op, ok := s.currentOperator(r); ok {
		s.views.drop(op.ViewID)
		s.logger.Info("operator logged out", "username", op.Name)
	}

	sess := s.session(r)
	sess.Values = make(map[interface{}]interface{})
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		s.logger.Error("failed to clear session", "error", err)
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// isFetch reports whether the request comes from the console's script.
func isFetch(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "fetch"
}
