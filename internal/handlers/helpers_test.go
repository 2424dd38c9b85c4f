package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kahramana.bh/site/internal/cart"
	"kahramana.bh/site/internal/cms"
	"kahramana.bh/site/internal/health"
	"kahramana.bh/site/internal/i18n"
	"kahramana.bh/site/internal/middleware"
	"kahramana.bh/site/internal/order"
	"kahramana.bh/site/internal/repositories/memory"
	"kahramana.bh/site/internal/site"
	"kahramana.bh/site/internal/testutil"
)

const (
	testSigningKey = "test-signing-key-0123456789abcdef"
	testCSRF       = "csrf-token-for-tests"
	testCartID     = "cart-test-1"
)

var testNow = time.Date(2025, 3, 1, 19, 30, 0, 0, site.Location())

type harness struct {
	t        *testing.T
	router   http.Handler
	sessions *middleware.Sessions
	cart     *cart.Service
	bus      *cart.Bus
	slot     *memory.Slot
	cookie   *http.Cookie
}

func newHarness(t *testing.T, lang string) *harness {
	t.Helper()
	catalog := site.Default()
	slot := memory.NewSlot()
	store, err := cart.NewStore(slot, catalog, nil)
	require.NoError(t, err)
	bus := cart.NewBus(nil)
	svc, err := cart.NewService(cart.ServiceDeps{Store: store, Bus: bus, Catalog: catalog})
	require.NoError(t, err)

	ids := order.NewIDGenerator(func() time.Time { return testNow }, nil)
	dispatcher, err := order.NewDispatcher(catalog, order.NewFormatter(catalog, ids.Next), nil, nil)
	require.NoError(t, err)

	bundle, err := i18n.Load("../../locales", "ar", []string{"ar", "en"})
	require.NoError(t, err)
	views, err := NewRenderer(os.DirFS("../../templates"), false)
	require.NoError(t, err)
	sessions, err := middleware.NewSessions(testSigningKey, false, nil)
	require.NoError(t, err)
	checker, err := health.NewChecker([]health.Check{{Name: "cart_slot", Check: slot.Ping}})
	require.NoError(t, err)

	router, err := NewRouter(Deps{
		Catalog:    catalog,
		Cart:       svc,
		Bus:        bus,
		Dispatcher: dispatcher,
		Content:    cms.NewStore("../../content", []string{"ar", "en"}),
		Bundle:     bundle,
		Views:      views,
		Sessions:   sessions,
		Health:     checker,
		Clock:      func() time.Time { return testNow },
	}, WithAllowedOrigins("https://partner.example"))
	require.NoError(t, err)

	return &harness{
		t:        t,
		router:   router,
		sessions: sessions,
		cart:     svc,
		bus:      bus,
		slot:     slot,
		cookie: sessions.Cookie(&middleware.SessionData{
			ID:        "session-1",
			CartID:    testCartID,
			Locale:    lang,
			CSRFToken: testCSRF,
		}),
	}
}

// do sends req with the current session cookie and keeps any rewritten cookie.
func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	h.t.Helper()
	req.AddCookie(h.cookie)
	rec := testutil.Do(h.t, h.router, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			h.cookie = c
		}
	}
	return rec
}

func (h *harness) api(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	return h.do(req)
}

func (h *harness) htmx(method, path, form, tab string) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(testutil.HTMX(req, tab))
}

func (h *harness) page(path string) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.do(httptest.NewRequest(http.MethodGet, path, nil))
}

type snapshotBody struct {
	Qty      int              `json:"qty"`
	Total    json.Number      `json:"total"`
	BranchID string           `json:"branchId"`
	Notes    string           `json:"notes"`
	Items    []map[string]any `json:"items"`
}

type mutationBody struct {
	Applied bool         `json:"applied"`
	Cart    snapshotBody `json:"cart"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	dec := json.NewDecoder(rec.Body)
	dec.UseNumber()
	require.NoError(t, dec.Decode(&out), rec.Body.String())
	return out
}

func (h *harness) seed(ids ...string) {
	h.t.Helper()
	for _, id := range ids {
		res := h.cart.AddItem(context.Background(), testCartID, cart.AddItemInput{ID: id, Name: id})
		require.True(h.t, res.Applied)
	}
}
