// Package server provides the HTTP server for the channel console.
//
// It handles every HTTP concern of the console:
//
//   - Operator sessions: login against the auth backend, gorilla/sessions
//     cookies and nosurf CSRF protection on every form
//   - The console: a server-rendered channel table whose filter, sort and
//     column visibility are kept per session
//   - REST API: JSON snapshots at "/api/channels"
//   - Server-Sent Events: snapshot updates at "/api/sse"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the channelboard library should not need to interact with this
// package directly. The server is started by [channelboard.Console.Start].
package server
