package oie

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized matches any [*StatusError] with a 401 or 403 status code.
var ErrUnauthorized = errors.New("unauthorized")

const (
	opLogin    = "login"
	opLogout   = "logout"
	opChannels = "load channels"
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	// Op is the failed operation ("login", "logout" or "load channels").
	Op string

	// Code is the HTTP status code.
	Code int

	// Text is the trimmed response body, possibly empty.
	Text string
}

// Error implements the error interface.
//
// A failed login reports the server's own message when it sent one, so the
// operator sees why the credentials were rejected.
func (e *StatusError) Error() string {
	if e.Op == opLogin {
		if e.Text != "" {
			return e.Text
		}
		return fmt.Sprintf("login failed (%d)", e.Code)
	}
	return fmt.Sprintf("failed to %s: %d", e.Op, e.Code)
}

// Is reports whether the error is an authorization failure.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden)
}

// Temporary reports whether the request may succeed if retried.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500
}
