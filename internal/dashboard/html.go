package dashboard

import (
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/app.css
var appCSS []byte

// parseTemplates loads the embedded page templates
func parseTemplates() *template.Template {
	funcs := template.FuncMap{
		"money": func(amount float64) string {
			return fmt.Sprintf("%.2f", amount)
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Format("Jan 2, 2006")
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
