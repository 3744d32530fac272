package printing

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// Pages renders the printable HTML documents.
type Pages struct {
	templates *template.Template
}

// NewPages parses the embedded templates.
func NewPages(money Money, loc *time.Location) (*Pages, error) {
	if loc == nil {
		loc = time.Local
	}
	funcMap := template.FuncMap{
		"money": money.Format,
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.In(loc).Format("02 Jan 2006 15:04")
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Pages{templates: tpl}, nil
}

// Render executes a named template into a byte slice.
func (p *Pages) Render(name string, data any) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("printing: templates not initialised")
	}
	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
