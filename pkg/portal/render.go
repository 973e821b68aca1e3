package portal

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"sync"
)

// Page template names
const (
	ManagementTemplate = "subscription_management"
	PricingTemplate    = "pricing_plans"
)

// Renderer executes the portal templates found in a file system. Every
// *.html file is parsed into one set, so files reference each other's
// {{define}} blocks by name.
type Renderer struct {
	mu   sync.RWMutex
	fsys fs.FS
	tmpl *template.Template
}

// NewRenderer parses the templates in fsys
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	r := &Renderer{fsys: fsys}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-parses the template set. The previous set stays active when
// parsing fails.
func (r *Renderer) Reload() error {
	tmpl, err := parseTemplates(r.fsys)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.tmpl = tmpl
	r.mu.Unlock()
	return nil
}

// Render executes the named template into w. Output is buffered so a failed
// execution never writes a partial page.
func (r *Renderer) Render(w io.Writer, name string, data interface{}) error {
	r.mu.RLock()
	tmpl := r.tmpl
	r.mu.RUnlock()

	if tmpl.Lookup(name) == nil {
		return fmt.Errorf("template %q not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// RenderManagement renders the subscription management panel
func (r *Renderer) RenderManagement(w io.Writer, page ManagementPage) error {
	return r.Render(w, ManagementTemplate, page)
}

// RenderPricing renders the pricing grid
func (r *Renderer) RenderPricing(w io.Writer, page PricingPage) error {
	return r.Render(w, PricingTemplate, page)
}

func parseTemplates(fsys fs.FS) (*template.Template, error) {
	root := template.New("saazpay")
	found := 0

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".html" {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", p, err)
		}
		if _, err := root.New(p).Parse(string(data)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", p, err)
		}
		found++
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == 0 {
		return nil, fmt.Errorf("no templates found")
	}
	return root, nil
}
