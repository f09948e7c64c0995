// Package web holds the audition listener page.
package web

import _ "embed"

// IndexHTML is served at "/" by the audition server.
//
//go:embed index.html
var IndexHTML []byte
