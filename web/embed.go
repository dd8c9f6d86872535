// Package web carries the built frontend bundle. The build pipeline
// writes the compiled app into dist/ before the Go binary is built.
package web

import "embed"

//go:embed all:dist
var DistFS embed.FS
