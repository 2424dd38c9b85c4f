// Package cms renders the markdown content pages (our story and similar) stored under
// the content directory as content/<kind>/<lang>/<slug>.md with YAML front matter.
package cms

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no page exists for a slug in any language.
var ErrNotFound = errors.New("cms: page not found")

const defaultCacheTTL = 5 * time.Minute

// Page is a rendered content page.
type Page struct {
	Kind        string
	Slug        string
	Lang        string
	Title       string
	Summary     string
	Description string
	HeroImage   string
	UpdatedAt   time.Time
	HTML        template.HTML
}

type frontMatter struct {
	Title       string `yaml:"title"`
	Summary     string `yaml:"summary"`
	Description string `yaml:"description"`
	HeroImage   string `yaml:"hero_image"`
	UpdatedAt   string `yaml:"updated_at"`
}

type cacheEntry struct {
	page    Page
	expires time.Time
}

// Store loads and caches pages from a filesystem.
type Store struct {
	fsys      fs.FS
	fallbacks []string
	ttl       time.Duration
	now       func() time.Time
	md        goldmark.Markdown
	policy    *bluemonday.Policy

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// Option customises a Store.
type Option func(*Store)

// WithCacheTTL overrides how long rendered pages are kept. Zero disables caching.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.ttl = d
		}
	}
}

// WithClock injects a custom clock for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewStore reads pages from dir. fallbacks lists the languages tried after the
// requested one, in order.
func NewStore(dir string, fallbacks []string, opts ...Option) *Store {
	return NewStoreFS(os.DirFS(dir), fallbacks, opts...)
}

// NewStoreFS is NewStore over an arbitrary filesystem.
func NewStoreFS(fsys fs.FS, fallbacks []string, opts ...Option) *Store {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)).Globally()
	s := &Store{
		fsys:      fsys,
		fallbacks: fallbacks,
		ttl:       defaultCacheTTL,
		now:       time.Now,
		md:        goldmark.New(goldmark.WithExtensions(extension.GFM, extension.Typographer)),
		policy:    policy,
		cache:     map[string]cacheEntry{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Page returns kind/slug in lang, falling back through the configured languages.
func (s *Store) Page(ctx context.Context, kind, slug, lang string) (Page, error) {
	kind = sanitizeSegment(kind)
	slug = sanitizeSegment(slug)
	lang = sanitizeSegment(lang)
	if kind == "" || slug == "" {
		return Page{}, ErrNotFound
	}

	key := kind + "|" + lang + "|" + slug
	if page, ok := s.cached(key); ok {
		return page, nil
	}

	seen := map[string]bool{}
	for _, candidate := range append([]string{lang}, s.fallbacks...) {
		if candidate == "" || seen[candidate] {
			continue
		}
		seen[candidate] = true
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		page, err := s.read(kind, slug, candidate)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return Page{}, err
		}
		s.store(key, page)
		return page, nil
	}
	return Page{}, ErrNotFound
}

func (s *Store) read(kind, slug, lang string) (Page, error) {
	file := path.Join(kind, lang, slug+".md")
	data, err := fs.ReadFile(s.fsys, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Page{}, ErrNotFound
		}
		return Page{}, err
	}

	fm, body := splitFrontMatter(string(data))
	var front frontMatter
	if strings.TrimSpace(fm) != "" {
		if err := yaml.Unmarshal([]byte(fm), &front); err != nil {
			return Page{}, fmt.Errorf("cms: parse front matter %s: %w", file, err)
		}
	}

	var buf bytes.Buffer
	if err := s.md.Convert([]byte(body), &buf); err != nil {
		return Page{}, fmt.Errorf("cms: render %s: %w", file, err)
	}

	page := Page{
		Kind:        kind,
		Slug:        slug,
		Lang:        lang,
		Title:       strings.TrimSpace(front.Title),
		Summary:     strings.TrimSpace(front.Summary),
		Description: strings.TrimSpace(front.Description),
		HeroImage:   strings.TrimSpace(front.HeroImage),
		UpdatedAt:   parseDate(front.UpdatedAt),
		HTML:        template.HTML(s.policy.SanitizeBytes(buf.Bytes())),
	}
	if page.Title == "" {
		page.Title = prettifySlug(slug)
	}
	return page, nil
}

func (s *Store) cached(key string) (Page, bool) {
	if s.ttl == 0 {
		return Page{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cache[key]
	if !ok || s.now().After(entry.expires) {
		return Page{}, false
	}
	return entry.page, true
}

func (s *Store) store(key string, page Page) {
	if s.ttl == 0 {
		return
	}
	s.mu.Lock()
	s.cache[key] = cacheEntry{page: page, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
}

func splitFrontMatter(input string) (string, string) {
	input = strings.TrimLeft(input, "\ufeff")
	lines := strings.Split(input, "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return "", input
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			fm := strings.Join(lines[1:i], "\n")
			body := strings.Join(lines[i+1:], "\n")
			return fm, strings.TrimLeft(body, "\n\r")
		}
	}
	return "", input
}

func parseDate(v string) time.Time {
	v = strings.TrimSpace(v)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

var segmentPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

func sanitizeSegment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !segmentPattern.MatchString(s) {
		return ""
	}
	return s
}

func prettifySlug(slug string) string {
	words := strings.Fields(strings.ReplaceAll(slug, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
