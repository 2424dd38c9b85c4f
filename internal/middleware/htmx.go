package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf16"
)

// TabHeader identifies the browser tab that issued a cart mutation.
const TabHeader = "X-Cart-Tab"

// HTMX marks requests coming from htmx so handlers/middlewares can adapt responses
func HTMX(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is := r.Header.Get("HX-Request") == "true"
		ctx := WithHTMX(r.Context(), is)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Trigger merges events into the HX-Trigger response header. Existing JSON triggers
// are kept; a plain event name is preserved as a key with a null detail. Non-ASCII text
// is written as \uXXXX escapes so the header stays ASCII.
func Trigger(w http.ResponseWriter, events map[string]any) {
	if len(events) == 0 {
		return
	}
	merged := map[string]any{}
	if prev := w.Header().Get("HX-Trigger"); prev != "" {
		if err := json.Unmarshal([]byte(prev), &merged); err != nil {
			merged = map[string]any{prev: nil}
		}
	}
	for k, v := range events {
		merged[k] = v
	}
	b, err := json.Marshal(merged)
	if err != nil {
		return
	}
	w.Header().Set("HX-Trigger", asciiJSON(b))
}

// asciiJSON rewrites every non-ASCII rune of encoded JSON as a \u escape. Such runes only
// occur inside string literals, where the escape decodes to the same text.
func asciiJSON(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, r := range string(b) {
		switch {
		case r < 0x80:
			sb.WriteRune(r)
		case r > 0xFFFF:
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&sb, `\u%04x\u%04x`, hi, lo)
		default:
			fmt.Fprintf(&sb, `\u%04x`, r)
		}
	}
	return sb.String()
}

// Tab returns the tab id of the request, if any.
func Tab(r *http.Request) string { return r.Header.Get(TabHeader) }
