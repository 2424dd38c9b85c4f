package cms

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"pages/en/our-story.md":  {Data: []byte("---\ntitle: Our Story\nupdated_at: 2026-10-01\n---\n\n## Vision\n\nHello <script>alert(1)</script>**world**\n")},
		"pages/ar/our-story.md":  {Data: []byte("---\ntitle: قصتنا\n---\n\nمرحبا\n")},
		"pages/en/menu-notes.md": {Data: []byte("No front matter here.\n")},
		"pages/en/broken.md":     {Data: []byte("---\ntitle: [unterminated\n---\nbody\n")},
	}
}

func TestPageRendersAndSanitises(t *testing.T) {
	t.Parallel()

	s := NewStoreFS(testFS(), []string{"ar", "en"})
	page, err := s.Page(context.Background(), "pages", "our-story", "en")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if page.Title != "Our Story" || page.Lang != "en" {
		t.Fatalf("unexpected page %+v", page)
	}
	html := string(page.HTML)
	if !strings.Contains(html, "<h2") || !strings.Contains(html, "<strong>world</strong>") {
		t.Fatalf("markdown not rendered: %s", html)
	}
	if strings.Contains(html, "<script") {
		t.Fatalf("script survived sanitising: %s", html)
	}
	if page.UpdatedAt.IsZero() {
		t.Fatal("expected updated_at to be parsed")
	}
}

func TestPageFallsBackAcrossLanguages(t *testing.T) {
	t.Parallel()

	s := NewStoreFS(testFS(), []string{"ar", "en"})
	page, err := s.Page(context.Background(), "pages", "menu-notes", "ar")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if page.Lang != "en" || page.Title != "Menu Notes" {
		t.Fatalf("expected english fallback with prettified title, got %+v", page)
	}

	if _, err := s.Page(context.Background(), "pages", "missing", "en"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Page(context.Background(), "pages", "../secrets", "en"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected traversal to be rejected, got %v", err)
	}
}

func TestPageReportsBadFrontMatter(t *testing.T) {
	t.Parallel()

	s := NewStoreFS(testFS(), nil)
	_, err := s.Page(context.Background(), "pages", "broken", "en")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestPageCacheExpires(t *testing.T) {
	t.Parallel()

	fsys := testFS()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	s := NewStoreFS(fsys, nil, WithCacheTTL(time.Minute), WithClock(func() time.Time { return now }))

	first, err := s.Page(context.Background(), "pages", "our-story", "ar")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	fsys["pages/ar/our-story.md"] = &fstest.MapFile{Data: []byte("---\ntitle: جديد\n---\nx\n")}

	cached, _ := s.Page(context.Background(), "pages", "our-story", "ar")
	if cached.Title != first.Title {
		t.Fatalf("expected cached title %q, got %q", first.Title, cached.Title)
	}

	now = now.Add(2 * time.Minute)
	fresh, _ := s.Page(context.Background(), "pages", "our-story", "ar")
	if fresh.Title != "جديد" {
		t.Fatalf("expected refreshed title, got %q", fresh.Title)
	}
}
