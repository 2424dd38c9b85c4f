package handlers

import (
	"errors"
	"net/http"

	"kahramana.bh/site/internal/cart"
	"kahramana.bh/site/internal/cms"
	"kahramana.bh/site/internal/drawer"
	"kahramana.bh/site/internal/middleware"
	"kahramana.bh/site/internal/nav"
	"kahramana.bh/site/internal/seo"
	"kahramana.bh/site/internal/site"
)

// PageData is the view model for pages using the shared layout.
type PageData struct {
	Locale
	Title string
	Path  string
	Nav   []nav.RenderedItem
	CSRF  string
	Brand site.Brand
	Meta  seo.Meta
	// JSONLD is rendered as application/ld+json scripts in the head.
	JSONLD []seo.Schema

	// CartQty feeds the indicators rendered in the header and mobile trigger.
	CartQty int
	Drawer  DrawerData

	Featured []site.MenuItem
	Menu     []site.Category
	Branches []BranchCard
	Content  *cms.Page

	qty map[string]int
}

// Stepper returns the add/stepper control state for a menu item.
func (p PageData) Stepper(id string) StepperData {
	return StepperData{Locale: p.Locale, ID: id, Qty: p.qty[id], Max: cart.MaxItemQty, CSRF: p.CSRF}
}

// BranchCard is a branch with its precomputed open state.
type BranchCard struct {
	site.Branch
	Label   string
	OpenNow bool
	Contact string
}

func (h *handlers) pageData(r *http.Request, titleKey string) PageData {
	loc := h.locale(r)
	sess := middleware.GetSession(r)
	snap := h.Cart.Snapshot(r.Context(), sess.CartID)
	qty := make(map[string]int, len(snap.Items))
	for _, it := range snap.Items {
		qty[it.ID] = it.Qty
	}
	dd := h.drawerData(r, snap)
	brand := h.Catalog.Brand()
	title := loc.T(titleKey)
	return PageData{
		Locale:  loc,
		Title:   title,
		Path:    r.URL.Path,
		Nav:     nav.Build(r.URL.Path),
		CSRF:    middleware.CSRFToken(r),
		Brand:   brand,
		Meta:    seo.NewMeta(title, loc.T("meta.description"), brand.PlaceholderImage, r.URL.Path, loc.Lang, h.Bundle.Supported()),
		JSONLD:  []seo.Schema{seo.Organization(brand, loc.Lang, brand.PlaceholderImage)},
		CartQty: dd.View.Qty,
		Drawer:  dd,
		qty:     qty,
	}
}

func (h *handlers) renderPage(w http.ResponseWriter, r *http.Request, status int, page string, data PageData) {
	if err := h.Views.Page(w, status, page, data); err != nil {
		h.serverError(w, r, err)
	}
}

// Home renders the landing page with featured dishes.
func (h *handlers) Home(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r, "page.home.title")
	data.Featured = h.Catalog.Featured()
	h.renderPage(w, r, http.StatusOK, "home", data)
}

// Menu renders every category with add controls and steppers.
func (h *handlers) Menu(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r, "page.menu.title")
	data.Menu = h.Catalog.Menu()
	h.renderPage(w, r, http.StatusOK, "menu", data)
}

// Branches renders branch cards with open-now state and contact links.
func (h *handlers) Branches(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r, "page.branches.title")
	now := h.Clock()
	for _, b := range h.Catalog.Branches() {
		data.Branches = append(data.Branches, BranchCard{
			Branch:  b,
			Label:   b.Name.In(data.Lang),
			OpenNow: b.IsOpenNow(now),
			Contact: h.Catalog.ContactDigits(b.ID),
		})
		data.JSONLD = append(data.JSONLD, seo.Restaurant(data.Brand, b, data.Lang, h.Catalog.ContactDigits(b.ID)))
	}
	h.renderPage(w, r, http.StatusOK, "branches", data)
}

// Story renders the our-story markdown page.
func (h *handlers) Story(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r, "page.story.title")
	if h.Content == nil {
		h.NotFound(w, r)
		return
	}
	page, err := h.Content.Page(r.Context(), "pages", "our-story", data.Lang)
	if errors.Is(err, cms.ErrNotFound) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	data.Title = page.Title
	data.Meta.Title = page.Title
	data.Meta.OG.Title = page.Title
	if page.Summary != "" {
		data.Meta.Description = page.Summary
		data.Meta.OG.Description = page.Summary
	}
	if page.HeroImage != "" {
		data.Meta.OG.Image = page.HeroImage
	}
	data.Content = &page
	h.renderPage(w, r, http.StatusOK, "story", data)
}

// NotFound renders the HTML 404 page.
func (h *handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r, "page.notfound.title")
	h.renderPage(w, r, http.StatusNotFound, "notfound", data)
}

// drawerData is shared by full pages and drawer fragments.
func (h *handlers) drawerData(r *http.Request, snap cart.Snapshot) DrawerData {
	loc := h.locale(r)
	sess := middleware.GetSession(r)
	view := drawer.Build(snap, h.Catalog, loc.Lang, sess.Draft, sess.Drawer, h.Clock())
	return DrawerData{Locale: loc, View: view, CSRF: sess.CSRFToken}
}
