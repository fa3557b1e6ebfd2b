package view

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/perseo-cms/perseo/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
	staticURL string
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CurrentPath string
	Locale      string
	AdminURL    string
	StaticURL   string
	User        any
	Data        any
}

// NewEngine parses the embedded templates. staticURL is the mount point of
// web.Static.
func NewEngine(staticURL string) (*Engine, error) {
	tpl, err := template.New("root").ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl, staticURL: staticURL}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	if data.StaticURL == "" {
		data.StaticURL = e.staticURL
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}
