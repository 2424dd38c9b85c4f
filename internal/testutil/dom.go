// Package testutil holds helpers shared by handler and template tests.
package testutil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

// ParseHTML parses the provided HTML payload into a goquery document for assertions.
func ParseHTML(t testing.TB, body []byte) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

// Do serves req through h and returns the recorder.
func Do(t testing.TB, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// HTMX marks req as an htmx request carrying the CSRF header and an optional tab id.
func HTMX(req *http.Request, tab string) *http.Request {
	req.Header.Set("HX-Request", "true")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if tab = strings.TrimSpace(tab); tab != "" {
		req.Header.Set("X-Cart-Tab", tab)
	}
	return req
}
