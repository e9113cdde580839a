// Package oie is a client for the REST API of an integration engine server
// (Open Integration Engine and compatible Mirth Connect servers).
//
// This package is internal to channelboard. It covers the three calls the
// console needs:
//
//   - [Client.Login]: POST /api/users/_login with form credentials
//   - [Client.Logout]: POST /api/users/_logout
//   - [Client.Channels]: GET /api/channels
//
// Every request carries the headers the server requires from browser-like
// clients (Accept: application/json, X-Requested-With: OIEUI). The session
// cookie issued by the login call lives in a per-client cookie jar.
//
// Transport errors and 5xx responses are retried with exponential backoff,
// bounded by the client timeout. Other non-2xx responses fail immediately
// with a [*StatusError].
package oie
