package badge

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"kahramana.bh/site/internal/testutil"
)

func TestMiddlewareRewritesHTML(t *testing.T) {
	t.Parallel()

	h := Middleware(func(*http.Request) int { return 4 })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))

	rec := testutil.Do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	doc := testutil.ParseHTML(t, rec.Body.Bytes())
	require.Equal(t, 2, doc.Find("[data-cart-count=\"4\"]").Length())
}

func TestMiddlewareLeavesOtherContentAlone(t *testing.T) {
	t.Parallel()

	body := `{"html":"<a data-cart-indicator></a>"}`
	h := Middleware(func(*http.Request) int { return 4 })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(body))
	}))

	rec := testutil.Do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, body, rec.Body.String())
}

func TestMiddlewareSkipsErrorPages(t *testing.T) {
	t.Parallel()

	h := Middleware(func(*http.Request) int { return 4 })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<a data-cart-indicator></a>`))
	}))

	rec := testutil.Do(t, h, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, `<a data-cart-indicator></a>`, rec.Body.String())
}
