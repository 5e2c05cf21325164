package web

import (
	"html/template"

	webassets "github.com/tyemirov/spotvault/web"
)

// PageTemplates parses the embedded connect/success/error pages for gin's
// HTML renderer.
func PageTemplates() *template.Template {
	return template.Must(template.ParseFS(webassets.FS, "templates/*.html"))
}
