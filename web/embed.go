package web

import (
	"embed"
	"io/fs"
)

// Templates holds layout.html, the page templates and the htmx partials
//
//go:embed templates/*.html templates/partials/*.html
var Templates embed.FS

//go:embed static/css/*.css static/js/*.js
var static embed.FS

// StaticFiles returns the stylesheet and map script rooted for /static/
func StaticFiles() (fs.FS, error) {
	return fs.Sub(static, "static")
}
