package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"kahramana.bh/site/internal/i18n"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newSessions(t *testing.T) *Sessions {
	t.Helper()
	m, err := NewSessions(testKey, false, nil)
	require.NoError(t, err)
	return m
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatalf("session cookie not set")
	return nil
}

func TestSessionIssuesCartIDAndRoundTrips(t *testing.T) {
	t.Parallel()
	m := newSessions(t)

	var first string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first = GetSession(r).CartID
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, first)
	cookie := sessionCookie(t, rec)
	require.True(t, cookie.HttpOnly)

	var second string
	h = m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		second = GetSession(r).CartID
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, first, second)
	require.Empty(t, rec.Result().Cookies(), "unchanged session must not be rewritten")
}

func TestSessionRejectsTamperedCookie(t *testing.T) {
	t.Parallel()
	m := newSessions(t)
	other, err := NewSessions(strings.Repeat("x", 32), false, nil)
	require.NoError(t, err)
	forged := other.Cookie(&SessionData{ID: "s1", CartID: "victim-cart"})

	var got string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSession(r).CartID
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(forged)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotEqual(t, "victim-cart", got)
	require.NotEmpty(t, got)
}

func TestSessionShortKeyRejectedWhenSecure(t *testing.T) {
	t.Parallel()
	_, err := NewSessions("short", true, nil)
	require.Error(t, err)
}

func TestCSRF(t *testing.T) {
	t.Parallel()
	m := newSessions(t)
	h := m.Middleware(m.CSRF(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	sd := &SessionData{ID: "s1", CartID: "c1", CSRFToken: "tok"}
	cookie := m.Cookie(sd)

	cases := []struct {
		name   string
		method string
		header map[string]string
		want   int
	}{
		{"get passes", http.MethodGet, nil, http.StatusNoContent},
		{"post without token", http.MethodPost, nil, http.StatusForbidden},
		{"post with wrong token", http.MethodPost, map[string]string{CSRFHeader: "nope"}, http.StatusForbidden},
		{"post with token", http.MethodPost, map[string]string{CSRFHeader: "tok"}, http.StatusNoContent},
		{"preflighted header", http.MethodPost, map[string]string{"X-Requested-With": "XMLHttpRequest"}, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/cart/items", nil)
			req.AddCookie(cookie)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestTriggerMergesEvents(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	rec.Header().Set("HX-Trigger", "closeDrawer")
	Trigger(rec, map[string]any{"kahramana:cart": map[string]any{"count": 2}})

	got := rec.Header().Get("HX-Trigger")
	require.Contains(t, got, `"closeDrawer":null`)
	require.Contains(t, got, `"kahramana:cart":{"count":2}`)
}

func TestTriggerEscapesNonASCII(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	msg := "سلتك فارغة. 🛍"
	Trigger(rec, map[string]any{"kahramana:notice": map[string]string{"message": msg}})

	got := rec.Header().Get("HX-Trigger")
	for i := 0; i < len(got); i++ {
		require.Less(t, got[i], byte(0x80), "non-ASCII byte in %q", got)
	}
	require.Contains(t, got, `\u0633`)
	require.Contains(t, got, `\ud83d\udecd`)

	var decoded map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(got), &decoded))
	require.Equal(t, msg, decoded["kahramana:notice"]["message"])
}

func TestLocalePrecedence(t *testing.T) {
	t.Parallel()
	bundle, err := i18n.LoadFS(fstest.MapFS{
		"ar.json": {Data: []byte(`{"hello":"مرحبا"}`)},
		"en.json": {Data: []byte(`{"hello":"Hello"}`)},
	}, "ar", []string{"ar", "en"})
	require.NoError(t, err)
	m := newSessions(t)

	var lang string
	h := m.Middleware(Locale(bundle)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang = Lang(r)
	})))

	serve := func(target, accept string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if accept != "" {
			req.Header.Set("Accept-Language", accept)
		}
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	serve("/", "en-GB,en;q=0.8")
	require.Equal(t, "en", lang)

	serve("/", "fr-FR")
	require.Equal(t, "ar", lang)

	rec := serve("/?hl=en", "ar")
	require.Equal(t, "en", lang)
	require.Equal(t, "en", rec.Header().Get("Content-Language"))

	serve("/", "ar", &http.Cookie{Name: localeCookieName, Value: "en"})
	require.Equal(t, "en", lang)

	serve("/?hl=de", "")
	require.Equal(t, "ar", lang)
}
