// Package dashboard provides the embedded web UI assets for the channel
// console.
//
// The page templates are compiled into the binary, so the console ships as
// a single executable.
package dashboard

import "embed"

// Assets holds the console's html/template files:
//
//	assets/
//	  layout.html     - page shell, styles and the "csrf" helper
//	  login.html      - operator login form
//	  dashboard.html  - console page, its "console" fragment and script
//
//go:embed assets/*
var Assets embed.FS
