// Package view renders the HTML pages of the web server.
//
// A page combines the following templates:
//   - base.html (required)
//   - {name}.html (optional)
//   - partials/*.html (optional)
package view

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"sort"
	"strings"
)

const baseFilename = "base.html"

// View is a parsed page template.
type View struct {
	name     string
	template *template.Template
}

// Parse parses the page with the given name from viewFS.
func Parse(viewFS fs.FS, name string) (*View, error) {
	// Names are hardcoded, but they end up in a path so only allow a safe set of runes.
	if err := validateName(name); err != nil {
		return nil, err
	}

	files := []string{baseFilename}
	if name != "" && name != strings.TrimSuffix(baseFilename, ".html") {
		files = append(files, name+".html")
	}

	partials, err := fs.Glob(viewFS, "partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob for partials: %w", err)
	}
	files = append(files, partials...)

	t, err := template.New(baseFilename).ParseFS(viewFS, files...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse view %q: %w", name, err)
	}

	return &View{
		name:     name,
		template: t,
	}, nil
}

// Name returns the name of the view.
func (v *View) Name() string {
	return v.name
}

// Render executes the view with data and writes the result to w.
func (v *View) Render(w io.Writer, data any) error {
	return v.template.Execute(w, data)
}

// Renderer holds every page found in a file system. All pages are
// parsed up front so template errors surface at startup.
type Renderer struct {
	views map[string]*View
}

// NewRenderer parses every *.html file in the root of viewFS as a page.
func NewRenderer(viewFS fs.FS) (*Renderer, error) {
	files, err := fs.Glob(viewFS, "*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob for views: %w", err)
	}

	views := make(map[string]*View, len(files))
	for _, file := range files {
		name := strings.TrimSuffix(file, ".html")
		v, err := Parse(viewFS, name)
		if err != nil {
			return nil, err
		}
		views[name] = v
	}

	return &Renderer{views: views}, nil
}

// Names returns the sorted names of all pages.
func (r *Renderer) Names() []string {
	names := make([]string, 0, len(r.views))
	for name := range r.views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render renders the page called name.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	v, ok := r.views[name]
	if !ok {
		return fmt.Errorf("view %q not found", name)
	}

	return v.Render(w, data)
}

func validateName(name string) error {
	for _, c := range name {
		if !validViewRune(c) {
			return fmt.Errorf("invalid character %q in view name: %s", c, name)
		}
	}
	return nil
}

func validViewRune(r rune) bool {
	return r == '-' || r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
