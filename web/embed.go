package webassets

import "embed"

// FS contains the embedded page templates from this directory.
//
//go:embed templates/*.html
var FS embed.FS
