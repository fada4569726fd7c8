// Package web serves a read-only status page and JSON API for the hotword
// daemon over HTTP. Binds to localhost only, so there is no auth.
package web

import "embed"

//go:embed static/index.html
var staticFS embed.FS
