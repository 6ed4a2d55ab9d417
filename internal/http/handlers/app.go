package handlers

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"imagestudio/internal/domain"
	"imagestudio/internal/form"
	"imagestudio/internal/infra"
)

//go:embed templates/*.html
var templateFS embed.FS

// App carries the dependencies shared by the HTTP handlers.
type App struct {
	Views          *form.Store
	Logger         *infra.Logger
	MaxUploadBytes int64

	page *template.Template
}

// NewApp parses the page template and wires the view store.
func NewApp(views *form.Store, logger *infra.Logger, maxUploadBytes int64) (*App, error) {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	page, err := template.New("page.html").Funcs(template.FuncMap{
		"catalog":   domain.Catalog,
		"safeURL":   func(s string) template.URL { return template.URL(s) },
		"increment": func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("handlers: parse templates: %w", err)
	}
	return &App{Views: views, Logger: logger, MaxUploadBytes: maxUploadBytes, page: page}, nil
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}
