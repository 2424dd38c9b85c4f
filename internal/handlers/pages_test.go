package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"kahramana.bh/site/internal/testutil"
)

func TestMenuPageRendersIndicatorsAndSteppers(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "en")

	rec := h.page("/menu")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := testutil.ParseHTML(t, rec.Body.Bytes())

	require.Equal(t, "ltr", doc.Find("html").AttrOr("dir", ""))
	indicators := doc.Find("[data-cart-indicator]")
	require.Equal(t, 2, indicators.Length())
	indicators.Each(func(_ int, s *goquery.Selection) {
		badges := s.Find(".kh-cart-badge")
		require.Equal(t, 1, badges.Length())
		_, hidden := badges.Attr("hidden")
		require.True(t, hidden)
		require.Equal(t, "Shopping Cart", s.AttrOr("aria-label", ""))
	})
	require.Equal(t, 1, doc.Find(`.kh-stepper[data-item-id="kubba"] .kh-add`).Length())
}

func TestMenuPageReflectsCart(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "en")
	h.seed("kubba", "hummus")

	doc := testutil.ParseHTML(t, h.page("/menu").Body.Bytes())
	badges := doc.Find("[data-cart-indicator] .kh-cart-badge")
	require.Equal(t, 2, badges.Length())
	badges.Each(func(_ int, s *goquery.Selection) {
		require.Equal(t, "2", strings.TrimSpace(s.Text()))
		_, hidden := s.Attr("hidden")
		require.False(t, hidden)
	})
	require.Equal(t, "1", strings.TrimSpace(doc.Find(`.kh-stepper[data-item-id="kubba"] .kh-qty-value`).Text()))
	require.Equal(t, 2, doc.Find("#kh-drawer-body .kh-item").Length())
}

func TestArabicHomeIsRightToLeft(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "ar")

	rec := h.page("/")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	html := doc.Find("html")
	require.Equal(t, "ar", html.AttrOr("lang", ""))
	require.Equal(t, "rtl", html.AttrOr("dir", ""))
	require.Equal(t, "حقيبة التسوق", doc.Find("[data-cart-indicator]").First().AttrOr("aria-label", ""))
	require.Equal(t, 3, doc.Find(".kh-featured .kh-card").Length())
}

func TestLanguageSwitchPersists(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "ar")

	doc := testutil.ParseHTML(t, h.page("/?hl=en").Body.Bytes())
	require.Equal(t, "en", doc.Find("html").AttrOr("lang", ""))

	doc = testutil.ParseHTML(t, h.page("/menu").Body.Bytes())
	require.Equal(t, "en", doc.Find("html").AttrOr("lang", ""))
}

func TestBranchesPage(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "en")

	doc := testutil.ParseHTML(t, h.page("/branches").Body.Bytes())
	cards := doc.Find(".kh-branch")
	require.Equal(t, 2, cards.Length())
	require.Equal(t, "Riffa (Hajiyat)", strings.TrimSpace(cards.First().Find("h2").Text()))
	require.Equal(t, "https://wa.me/97317131413", cards.First().Find(`a[href^="https://wa.me/"]`).AttrOr("href", ""))
	require.Equal(t, 1, cards.First().Find(".kh-open").Length())

	scripts := doc.Find(`script[type="application/ld+json"]`)
	require.Equal(t, 3, scripts.Length())
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(scripts.Eq(1).Text()), &schema))
	require.Equal(t, "Restaurant", schema["@type"])
	require.Equal(t, "+97317131413", schema["telephone"])
	require.Equal(t, 2, doc.Find(`link[rel="alternate"][hreflang]`).Length())
	require.Equal(t, "/branches?hl=en", doc.Find(`link[rel="canonical"]`).AttrOr("href", ""))
}

func TestStoryPage(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "en")

	rec := h.page("/our-story")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	require.NotEmpty(t, strings.TrimSpace(doc.Find("article.kh-story h1").Text()))
	require.Equal(t, 0, doc.Find("article.kh-story script").Length())
	updated := doc.Find("article.kh-story time")
	require.Equal(t, "2026-10-01", updated.AttrOr("datetime", ""))
	require.Equal(t, "Oct 1, 2026", strings.TrimSpace(updated.Text()))

	doc = testutil.ParseHTML(t, h.page("/our-story?hl=ar").Body.Bytes())
	require.Equal(t, "1 أكتوبر 2026", strings.TrimSpace(doc.Find("article.kh-story time").Text()))
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "en")

	rec := h.page("/no-such-page")
	require.Equal(t, http.StatusNotFound, rec.Code)
	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	require.Equal(t, "Page not found", strings.TrimSpace(doc.Find(".kh-notfound h1").Text()))

	rec = h.api(http.MethodGet, "/api/cart/no-such-route", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "en")

	rec := h.page("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = h.page("/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"cart_slot"`)
}
