package oie

import (
	"context"
	"fmt"
)

// Authenticator checks operator credentials against a server.
//
// Each check uses a fresh client, so a probe session never leaks into the
// service account's session. The probe session is closed right after a
// successful login.
type Authenticator struct {
	baseURL string
	opts    []Option
}

// NewAuthenticator creates an [Authenticator] for the server at baseURL.
// The options apply to every probe client; credentials set through them are
// ignored.
func NewAuthenticator(baseURL string, opts ...Option) (*Authenticator, error) {
	if _, err := NewClient(baseURL, opts...); err != nil {
		return nil, err
	}
	return &Authenticator{baseURL: baseURL, opts: opts}, nil
}

// Authenticate returns nil when the server accepts the credentials.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) error {
	client, err := NewClient(a.baseURL, a.opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Login(ctx, username, password); err != nil {
		return err
	}
	if err := client.Logout(ctx); err != nil {
		// the credentials were accepted; an unclosed probe session expires on its own
		client.logger.Warn("failed to close probe session", "url", client.BaseURL(), "error", err.Error())
	}
	return nil
}

// String implements fmt.Stringer.
func (a *Authenticator) String() string {
	return fmt.Sprintf("oie.Authenticator(%s)", a.baseURL)
}
