package manage

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"path/filepath"
)

//go:embed templates/*.html
var templatesFS embed.FS

type viewEngine struct {
	templates map[string]*template.Template
}

// newViewEngine parses the embedded layout and one template per page.
func newViewEngine() (*viewEngine, error) {
	layout, err := template.ParseFS(templatesFS, "templates/layout.html")
	if err != nil {
		return nil, err
	}

	e := &viewEngine{templates: make(map[string]*template.Template)}

	entries, err := fs.ReadDir(templatesFS, "templates")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		name := entry.Name()
		if name == "layout.html" {
			continue
		}

		tmpl, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := tmpl.ParseFS(templatesFS, "templates/"+name); err != nil {
			return nil, err
		}
		e.templates[name[:len(name)-len(filepath.Ext(name))]] = tmpl
	}

	return e, nil
}

func (e *viewEngine) render(w io.Writer, name string, data any) error {
	return e.templates[name].Execute(w, data)
}
