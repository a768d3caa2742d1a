// Package templates handles HTML template rendering for Datastar SSE responses
// and the viewer page.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

//go:embed fragments/*.html
var embedded embed.FS

// funcMap provides common template functions.
var funcMap = template.FuncMap{
	// dict creates a map from key-value pairs, useful for passing multiple values to nested templates
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
}

// Renderer manages HTML fragment templates.
type Renderer struct {
	templates *template.Template
	dir       string
	mu        sync.RWMutex
}

// New creates a renderer from the built-in fragments. When dir is set and
// holds *.html files, those are parsed on top and may redefine any fragment.
func New(dir string) (*Renderer, error) {
	r := &Renderer{dir: dir}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Must is New that panics on error.
func Must(dir string) *Renderer {
	r, err := New(dir)
	if err != nil {
		panic(err)
	}
	return r
}

func parse(dir string) (*template.Template, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(embedded, "fragments/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing built-in fragments: %w", err)
	}
	if dir == "" {
		return tmpl, nil
	}

	matches, err := fs.Glob(os.DirFS(dir), "*.html")
	if err != nil || len(matches) == 0 {
		return tmpl, nil
	}
	tmpl, err = tmpl.ParseGlob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("parsing templates in %s: %w", dir, err)
	}
	return tmpl, nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.templates.ExecuteTemplate(buf, name, data)
}

// MustRender renders a template and panics on error.
// Use only when you're certain the template exists.
func (r *Renderer) MustRender(name string, data any) string {
	s, err := r.Render(name, data)
	if err != nil {
		panic(err)
	}
	return s
}

// Reload re-parses the templates (useful for dev hot-reload).
func (r *Renderer) Reload() error {
	tmpl, err := parse(r.dir)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	return nil
}
