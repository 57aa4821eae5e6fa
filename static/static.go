// Package static holds the page templates served by the arena.
package static

import "embed"

//go:embed *.html
var Files embed.FS
