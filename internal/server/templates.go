package server

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/justinas/nosurf"
)

// page is the data shared by every page template.
type page struct {
	Title     string
	Operator  string
	CSRFField string
	CSRFToken string
}

func (s *Server) page(r *http.Request, operatorName string) page {
	return page{
		Title:     s.title,
		Operator:  operatorName,
		CSRFField: nosurf.FormFieldName,
		CSRFToken: nosurf.Token(r),
	}
}

// parsePages parses one template set per page, each combining the shared
// layout with the page's own file.
func parsePages(assets fs.FS) (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, 2)
	for _, name := range []string{"login", "dashboard"} {
		t, err := template.New(name).ParseFS(assets, "assets/layout.html", "assets/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// render executes a page's layout into a buffer, so a template error never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	s.renderTemplate(w, r, status, name, "layout", data)
}

func (s *Server) renderTemplate(w http.ResponseWriter, r *http.Request, status int, name, tmpl string, data any) {
	var buf bytes.Buffer
	if err := s.pages[name].ExecuteTemplate(&buf, tmpl, data); err != nil {
		s.logger.Error("failed to render template",
			"page", name,
			"template", tmpl,
			"path", r.URL.Path,
			"error", err,
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Error("failed to write response", "path", r.URL.Path, "error", err)
	}
}
