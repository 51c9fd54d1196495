package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/EXyrus/tabularasa/portal"
	"github.com/EXyrus/tabularasa/users"
	"github.com/pkg/errors"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

//go:embed templates/*
var templateFiles embed.FS

var templateNames = []string{
	"index.html",
	"loading.html",
	"login.html",
	"forgot_password.html",
	"reset_password.html",
	"dashboard.html",
	"settings.html",
}

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a page together with the shared layout.
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(name).ParseFS(TemplateFilesFS(), "layout.html", name)
}

func parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template, len(templateNames))
	for _, name := range templateNames {
		tmpl, err := ParseTemplate(name)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", name)
		}
		templates[name] = tmpl
	}
	return templates, nil
}

// PageData is the model every template renders from.
type PageData struct {
	AppName     string
	Portal      portal.AppType
	Portals     []portal.AppType
	User        *users.User
	Dark        bool
	Error       string
	Notice      string
	Email       string
	Institution string
	From        string
	Token       string
}

func (s *Server) page(r *http.Request, p portal.AppType) PageData {
	return PageData{
		AppName: s.config.GetAppName(),
		Portal:  p,
		Portals: portal.All(),
		User:    s.auth.CurrentUser(),
		Dark:    s.theme.Dark(),
		Notice:  r.URL.Query().Get(paramNotice),
		From:    r.URL.Query().Get(paramFrom),
	}
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data PageData) {
	tmpl, ok := s.templates[name]
	if !ok {
		s.logger.Error().Str("template", name).Msg("unknown template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		s.logger.Err(err).Str("template", name).Msg("Failed to render template")
	}
}
