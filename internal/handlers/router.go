package handlers

import (
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"kahramana.bh/site/internal/badge"
	"kahramana.bh/site/internal/middleware"
	"kahramana.bh/site/internal/platform/httpx"
)

const (
	defaultTimeout    = 30 * time.Second
	errorNotFoundCode = "route_not_found"
)

type routerConfig struct {
	middlewares    []func(http.Handler) http.Handler
	allowedOrigins []string
	assets         fs.FS
	timeout        time.Duration
	build          BuildInfo
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

// WithMiddlewares appends additional global middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithAllowedOrigins lists origins allowed to call /api/cart from other sites.
func WithAllowedOrigins(origins ...string) Option {
	return func(cfg *routerConfig) {
		cfg.allowedOrigins = append(cfg.allowedOrigins, origins...)
	}
}

// WithAssets serves fsys under /assets/.
func WithAssets(fsys fs.FS) Option {
	return func(cfg *routerConfig) {
		cfg.assets = fsys
	}
}

// WithTimeout bounds page and cart requests. The event stream is exempt.
func WithTimeout(d time.Duration) Option {
	return func(cfg *routerConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

// WithBuildInfo sets the version details reported by /healthz.
func WithBuildInfo(info BuildInfo) Option {
	return func(cfg *routerConfig) {
		cfg.build = info
	}
}

// NewRouter wires pages, cart surfaces, health and assets.
func NewRouter(deps Deps, opts ...Option) (chi.Router, error) {
	h, err := newHandlers(deps)
	if err != nil {
		return nil, err
	}
	cfg := routerConfig{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP)
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	health := newHealthHandlers(h.Health, cfg.build, h.Clock)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	if cfg.assets != nil {
		r.Handle("/assets/*", middleware.AssetsWithCache(cfg.assets))
	}

	r.Group(func(r chi.Router) {
		r.Use(h.Sessions.Middleware, middleware.Locale(h.Bundle), middleware.HTMX, h.Sessions.CSRF)

		html := cartRoutes{handlers: h, mode: surfaceHTML}
		api := cartRoutes{handlers: h, mode: surfaceJSON}
		apiCORS := cors.Handler(cors.Options{
			AllowedOrigins:   cfg.allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", middleware.CSRFHeader, middleware.TabHeader},
			AllowCredentials: true,
			MaxAge:           300,
		})

		// Streams live outside the timeout and compression groups.
		r.Get("/cart/events", html.events)
		r.With(apiCORS).Get("/api/cart/events", api.events)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(cfg.timeout))

			r.Group(func(r chi.Router) {
				r.Use(chimw.Compress(5), badge.Middleware(h.badgeCount))
				r.Get("/", h.Home)
				r.Get("/menu", h.Menu)
				r.Get("/branches", h.Branches)
				r.Get("/our-story", h.Story)
			})

			r.Route("/cart", html.routes)
			r.Route("/api/cart", func(r chi.Router) {
				r.Use(apiCORS)
				api.routes(r)
			})
		})
	})

	// Registered last so mounted cart routers inherit it.
	pageNotFound := chi.Chain(h.Sessions.Middleware, middleware.Locale(h.Bundle), middleware.HTMX).HandlerFunc(h.NotFound)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		switch {
		case isAPI(req):
			httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
		case middleware.GetSession(req).ID != "":
			h.NotFound(w, req)
		default:
			pageNotFound.ServeHTTP(w, req)
		}
	})

	return r, nil
}

func (h *handlers) badgeCount(r *http.Request) int {
	return h.Cart.Snapshot(r.Context(), cartID(r)).Qty
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}
