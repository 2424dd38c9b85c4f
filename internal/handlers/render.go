package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"kahramana.bh/site/internal/badge"
	"kahramana.bh/site/internal/format"
	"kahramana.bh/site/internal/i18n"
	"kahramana.bh/site/internal/site"
)

// Renderer executes page layouts and partial fragments. Every file under pages/ is
// parsed into its own clone of the shared layouts and partials so each page can define
// "content" independently.
type Renderer struct {
	fsys fs.FS
	dev  bool

	mu    sync.RWMutex
	root  *template.Template
	pages map[string]*template.Template
}

// NewRenderer parses templates from fsys. In dev mode templates are reparsed on each
// render.
func NewRenderer(fsys fs.FS, dev bool) (*Renderer, error) {
	r := &Renderer{fsys: fsys, dev: dev}
	if err := r.parse(); err != nil {
		return nil, err
	}
	return r, nil
}

var funcMap = template.FuncMap{
	"bhd":      func(d decimal.Decimal) string { return format.BHD(d) },
	"price":    func(p site.Price) string { return format.Price(p.Decimal) },
	"hours":    func(h site.Hours) string { return format.Hours(h.Open, h.Close) },
	"date":     format.Date,
	"dir":      i18n.Dir,
	"badge":    func(count int) template.HTML { return template.HTML(badge.Fragment(count)) },
	"badgeOOB": func(count int) template.HTML { return template.HTML(badge.OOB(count)) },
	"add":      func(a, b int) int { return a + b },
	"sub":      func(a, b int) int { return a - b },
}

func (r *Renderer) parse() error {
	shared, err := globFiles(r.fsys, "layouts", "partials")
	if err != nil {
		return err
	}
	if len(shared) == 0 {
		return errors.New("templates: no layouts or partials found")
	}
	root, err := template.New("_root").Funcs(funcMap).ParseFS(r.fsys, shared...)
	if err != nil {
		return fmt.Errorf("templates: parse shared: %w", err)
	}

	pageFiles, err := globFiles(r.fsys, "pages")
	if err != nil {
		return err
	}
	pages := make(map[string]*template.Template, len(pageFiles))
	for _, file := range pageFiles {
		clone, err := root.Clone()
		if err != nil {
			return fmt.Errorf("templates: clone for %s: %w", file, err)
		}
		if _, err := clone.ParseFS(r.fsys, file); err != nil {
			return fmt.Errorf("templates: parse %s: %w", file, err)
		}
		pages[strings.TrimSuffix(path.Base(file), ".tmpl")] = clone
	}

	r.mu.Lock()
	r.root, r.pages = root, pages
	r.mu.Unlock()
	return nil
}

func globFiles(fsys fs.FS, dirs ...string) ([]string, error) {
	var files []string
	for _, dir := range dirs {
		err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return fs.SkipDir
				}
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), ".tmpl") {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("templates: walk %s: %w", dir, err)
		}
	}
	return files, nil
}

func (r *Renderer) refresh() error {
	if !r.dev {
		return nil
	}
	return r.parse()
}

// Page executes the base layout with the named page's content.
func (r *Renderer) Page(w http.ResponseWriter, status int, page string, data any) error {
	if err := r.refresh(); err != nil {
		return err
	}
	r.mu.RLock()
	t, ok := r.pages[page]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("templates: unknown page %q", page)
	}
	return write(w, status, t, Part{Name: "base", Data: data})
}

// Part is one partial of a fragment response.
type Part struct {
	Name string
	Data any
}

// Fragment executes a named partial.
func (r *Renderer) Fragment(w http.ResponseWriter, status int, name string, data any) error {
	return r.Fragments(w, status, Part{Name: name, Data: data})
}

// Fragments executes partials back to back into one response. htmx swaps the first
// into the request target; the rest carry hx-swap-oob.
func (r *Renderer) Fragments(w http.ResponseWriter, status int, parts ...Part) error {
	if err := r.refresh(); err != nil {
		return err
	}
	r.mu.RLock()
	t := r.root
	r.mu.RUnlock()
	return write(w, status, t, parts...)
}

// write buffers so a failing template never leaves a half-written response.
func write(w http.ResponseWriter, status int, t *template.Template, parts ...Part) error {
	var buf bytes.Buffer
	for _, p := range parts {
		if err := t.ExecuteTemplate(&buf, p.Name, p.Data); err != nil {
			return fmt.Errorf("templates: execute %s: %w", p.Name, err)
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
