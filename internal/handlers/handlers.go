// Package handlers serves the site pages and the cart's HTML and JSON surfaces.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"kahramana.bh/site/internal/cart"
	"kahramana.bh/site/internal/cms"
	"kahramana.bh/site/internal/health"
	"kahramana.bh/site/internal/i18n"
	"kahramana.bh/site/internal/middleware"
	"kahramana.bh/site/internal/order"
	"kahramana.bh/site/internal/platform/httpx"
	"kahramana.bh/site/internal/platform/requestctx"
	"kahramana.bh/site/internal/site"
)

const defaultLocateTimeout = 10 * time.Second

// Deps bundles everything the handlers need.
type Deps struct {
	Catalog       *site.Catalog
	Cart          *cart.Service
	Bus           *cart.Bus
	Dispatcher    *order.Dispatcher
	Content       *cms.Store
	Bundle        *i18n.Bundle
	Views         *Renderer
	Sessions      *middleware.Sessions
	Health        *health.Checker
	Clock         func() time.Time
	LocateTimeout time.Duration
	Logger        *zap.Logger
}

func (d Deps) validate() error {
	switch {
	case d.Catalog == nil:
		return errors.New("handlers: catalog is required")
	case d.Cart == nil:
		return errors.New("handlers: cart service is required")
	case d.Bus == nil:
		return errors.New("handlers: bus is required")
	case d.Dispatcher == nil:
		return errors.New("handlers: dispatcher is required")
	case d.Bundle == nil:
		return errors.New("handlers: i18n bundle is required")
	case d.Views == nil:
		return errors.New("handlers: renderer is required")
	case d.Sessions == nil:
		return errors.New("handlers: sessions are required")
	}
	return nil
}

type handlers struct {
	Deps
}

func newHandlers(deps Deps) (*handlers, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.LocateTimeout <= 0 {
		deps.LocateTimeout = defaultLocateTimeout
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &handlers{Deps: deps}, nil
}

// Locale carries the request language into templates.
type Locale struct {
	Lang string
	Dir  string

	bundle *i18n.Bundle
}

// T translates key.
func (l Locale) T(key string) string {
	if l.bundle == nil {
		return key
	}
	return l.bundle.T(l.Lang, key)
}

func (h *handlers) locale(r *http.Request) Locale {
	lang := middleware.Lang(r)
	return Locale{Lang: lang, Dir: i18n.Dir(lang), bundle: h.Bundle}
}

func (h *handlers) logger(r *http.Request) *zap.Logger {
	if l := requestctx.Logger(r.Context()); l != requestctx.NoopLogger() {
		return l
	}
	return h.Logger
}

func (h *handlers) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger(r).Error("handler failed", zap.Error(err))
	httpx.WriteError(r.Context(), w, httpx.NewError("internal", "internal server error", http.StatusInternalServerError))
}
