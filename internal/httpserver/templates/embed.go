// Package templates embeds the html/template views and exposes them as templ components.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"

	"github.com/a-h/templ"

	"finitefield.org/kmart-web/internal/catalog"
)

//go:embed layout.tmpl pages/*.tmpl fragments/*.tmpl
var files embed.FS

// Set holds one parsed template tree per page plus the shared fragments.
type Set struct {
	pages     map[string]*template.Template
	fragments *template.Template
}

var funcs = template.FuncMap{
	"upper":   strings.ToUpper,
	"details": catalog.RenderDetails,
}

// Load parses every embedded template.
func Load() (*Set, error) {
	base, err := template.New("root").Funcs(funcs).ParseFS(files, "layout.tmpl", "fragments/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("templates: parse shared: %w", err)
	}

	names, err := fs.Glob(files, "pages/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("templates: list pages: %w", err)
	}
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("templates: clone for %s: %w", name, err)
		}
		page, err := clone.ParseFS(files, name)
		if err != nil {
			return nil, fmt.Errorf("templates: parse %s: %w", name, err)
		}
		pages[strings.TrimSuffix(path.Base(name), ".tmpl")] = page
	}
	return &Set{pages: pages, fragments: base}, nil
}

// Page returns the named page wrapped in the layout.
func (s *Set) Page(name string, data any) (templ.Component, error) {
	t, ok := s.pages[name]
	if !ok {
		return nil, fmt.Errorf("templates: unknown page %q", name)
	}
	layout := t.Lookup("layout")
	if layout == nil {
		return nil, fmt.Errorf("templates: layout missing for %q", name)
	}
	return templ.FromGoHTML(layout, data), nil
}

// Fragment returns a shared fragment template.
func (s *Set) Fragment(name string, data any) (templ.Component, error) {
	t := s.fragments.Lookup(name)
	if t == nil {
		return nil, fmt.Errorf("templates: unknown fragment %q", name)
	}
	return templ.FromGoHTML(t, data), nil
}
