package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kahramana.bh/site/internal/badge"
	"kahramana.bh/site/internal/cart"
	"kahramana.bh/site/internal/drawer"
	"kahramana.bh/site/internal/middleware"
	"kahramana.bh/site/internal/order"
	"kahramana.bh/site/internal/platform/httpx"
)

// Trigger events emitted alongside htmx fragments.
const (
	eventNotice  = "kahramana:notice"
	eventDrawer  = "kahramana:drawer"
	eventOpenURL = "kahramana:open-url"
)

// surface selects how cart routes answer: htmx fragments or JSON.
type surface int

const (
	surfaceHTML surface = iota
	surfaceJSON
)

// DrawerData feeds the drawer partial. OOB renders it as an out-of-band swap.
type DrawerData struct {
	Locale
	View drawer.View
	CSRF string
	OOB  bool
}

// StepperData feeds the per-item stepper partial on menu cards.
type StepperData struct {
	Locale
	ID   string
	Qty  int
	Max  int
	CSRF string
	OOB  bool
}

// ToastData feeds the transient notice partial.
type ToastData struct {
	Locale
	Key     string
	Message string
}

type cartRoutes struct {
	*handlers
	mode surface
}

// routes registers the cart entry points on r.
func (c cartRoutes) routes(r chi.Router) {
	r.Get("/", c.get)
	r.Delete("/", c.clear)
	r.Get("/badge", c.badge)
	r.Post("/items", c.add)
	r.Get("/items/{id}/qty", c.qty)
	r.Put("/items/{id}/qty", c.setQty)
	r.Post("/items/{id}/step", c.step)
	r.Delete("/items/{id}", c.remove)
	r.Put("/items/{id}/notes", c.itemNotes)
	r.Put("/branch", c.branch)
	r.Put("/notes", c.notes)
	r.Put("/draft", c.draft)
	r.Post("/open", c.open)
	r.Post("/close", c.close)
	r.Post("/locate", c.locate)
	r.Post("/submit", c.submit)
}

func cartID(r *http.Request) string { return middleware.GetSession(r).CartID }

// mutationContext tags mutations with the issuing tab so its own SSE stream skips them.
func mutationContext(r *http.Request) context.Context {
	return cart.WithOrigin(r.Context(), middleware.Tab(r))
}

func itemID(r *http.Request) string { return strings.TrimSpace(chi.URLParam(r, "id")) }

func (c cartRoutes) get(w http.ResponseWriter, r *http.Request) {
	snap := c.Cart.Snapshot(r.Context(), cartID(r))
	if c.mode == surfaceJSON {
		httpx.WriteJSON(w, http.StatusOK, snap)
		return
	}
	c.fragment(w, r, snap)
}

func (c cartRoutes) badge(w http.ResponseWriter, r *http.Request) {
	qty := c.Cart.Snapshot(r.Context(), cartID(r)).Qty
	if c.mode == surfaceJSON {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"qty": qty, "display": badge.Display(qty)})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(badge.Fragment(qty)))
}

func (c cartRoutes) add(w http.ResponseWriter, r *http.Request) {
	in, ok := c.input(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(in["id"])
	if id == "" {
		c.badRequest(w, r, "id is required")
		return
	}
	lang := c.locale(r).Lang
	name := in["name"]
	image := in["image"]
	price, hasPrice := in.decimal("price")
	if item, known := c.Catalog.Item(id); known {
		if strings.TrimSpace(name) == "" {
			name = item.Name.In(lang)
		}
		if strings.TrimSpace(image) == "" {
			image = item.Image
		}
		if !hasPrice {
			price, hasPrice = item.Price.Decimal, true
		}
	}
	if !hasPrice {
		if fb, found := c.Catalog.FallbackPrice(id); found {
			price = fb
		} else {
			price = decimal.Zero
		}
	}
	res := c.Cart.AddItem(mutationContext(r), cartID(r), cart.AddItemInput{ID: id, Name: name, Price: price, Image: image})
	c.respond(w, r, res, id)
}

func (c cartRoutes) qty(w http.ResponseWriter, r *http.Request) {
	id := itemID(r)
	qty := c.Cart.Qty(r.Context(), cartID(r), id)
	if c.mode == surfaceJSON {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "qty": qty})
		return
	}
	c.stepper(w, r, id, qty)
}

func (c cartRoutes) setQty(w http.ResponseWriter, r *http.Request) {
	in, ok := c.input(w, r)
	if !ok {
		return
	}
	qty, valid := in.int("qty")
	if !valid {
		c.badRequest(w, r, "qty must be an integer")
		return
	}
	c.respond(w, r, c.Cart.SetQty(mutationContext(r), cartID(r), itemID(r), qty), itemID(r))
}

func (c cartRoutes) step(w http.ResponseWriter, r *http.Request) {
	in, ok := c.input(w, r)
	if !ok {
		return
	}
	delta, valid := in.int("delta")
	if !valid {
		c.badRequest(w, r, "delta must be an integer")
		return
	}
	c.respond(w, r, c.Cart.UpdateQty(mutationContext(r), cartID(r), itemID(r), delta), itemID(r))
}

func (c cartRoutes) remove(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.Cart.RemoveItem(mutationContext(r), cartID(r), itemID(r)), itemID(r))
}

func (c cartRoutes) itemNotes(w http.ResponseWriter, r *http.Request) {
	in, ok := c.input(w, r)
	if !ok {
		return
	}
	c.respond(w, r, c.Cart.UpdateItemNotes(mutationContext(r), cartID(r), itemID(r), in["notes"]))
}

func (c cartRoutes) clear(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, it := range c.Cart.State(r.Context(), cartID(r)).Items {
		ids = append(ids, it.ID)
	}
	c.respond(w, r, c.Cart.Clear(mutationContext(r), cartID(r)), ids...)
}

func (c cartRoutes) branch(w http.ResponseWriter, r *http.Request) {
	in, ok := c.input(w, r)
	if !ok {
		return
	}
	c.respond(w, r, c.Cart.SetBranch(mutationContext(r), cartID(r), in["branchId"]))
}

func (c cartRoutes) notes(w http.ResponseWriter, r *http.Request) {
	in, ok := c.input(w, r)
	if !ok {
		return
	}
	c.respond(w, r, c.Cart.SetNotes(mutationContext(r), cartID(r), in["notes"]))
}

// draft updates only the fields present in the request.
func (c cartRoutes) draft(w http.ResponseWriter, r *http.Request) {
	in, ok := c.input(w, r)
	if !ok {
		return
	}
	sess := middleware.GetSession(r)
	d := sess.Draft
	if in.has("name") {
		d.Name = in["name"]
	}
	if in.has("address") {
		d.Address = in["address"]
	}
	if in.has("orderType") {
		d.OrderType = order.OrderType(in["orderType"])
	}
	if in.has("payment") {
		d.Payment = order.Payment(in["payment"])
	}
	d = d.Normalize()
	if d != sess.Draft {
		sess.Draft = d
		sess.MarkDirty()
	}
	if c.mode == surfaceJSON {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"draft": d})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c cartRoutes) open(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, (*drawer.Controller).Open)
}

func (c cartRoutes) close(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, (*drawer.Controller).Close)
}

func (c cartRoutes) transition(w http.ResponseWriter, r *http.Request, fn func(*drawer.Controller) drawer.Effect) {
	sess := middleware.GetSession(r)
	ctrl := drawer.NewController(sess.Drawer)
	effect := fn(ctrl)
	if state := ctrl.State(); state != sess.Drawer {
		sess.Drawer = state
		sess.MarkDirty()
	}
	payload := map[string]any{"drawer": sess.Drawer, "effect": string(effect)}
	if c.mode == surfaceJSON {
		httpx.WriteJSON(w, http.StatusOK, payload)
		return
	}
	middleware.Trigger(w, map[string]any{eventDrawer: payload})
	c.fragment(w, r, c.Cart.Snapshot(r.Context(), cartID(r)))
}

func (c cartRoutes) locate(w http.ResponseWriter, r *http.Request) {
	in, ok := c.input(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), c.LocateTimeout)
	defer cancel()
	link, err := drawer.Locate(ctx, drawer.Position{
		Latitude:  in.float("latitude"),
		Longitude: in.float("longitude"),
		Code:      in["code"],
	})
	if err != nil {
		c.logger(r).Info("cart: locate failed", zap.Error(err))
		c.notice(w, r, drawer.NoticeKey(err))
		return
	}
	sess := middleware.GetSession(r)
	d := sess.Draft
	d.Address = link
	sess.Draft = d.Normalize()
	sess.MarkDirty()
	if c.mode == surfaceJSON {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"address": sess.Draft.Address})
		return
	}
	c.fragment(w, r, c.Cart.Snapshot(r.Context(), cartID(r)))
}

// submit validates and formats the order and returns the chat deep link. The cart and
// the drawer are left as they are.
func (c cartRoutes) submit(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r)
	lang := c.locale(r).Lang
	state := c.Cart.State(r.Context(), sess.CartID)
	sub, err := c.Dispatcher.Prepare(r.Context(), state, sess.Draft, lang)
	if err != nil {
		key := "notice." + order.Outcome(err)
		if errors.Is(err, order.ErrNoRecipient) {
			key = "notice.no_recipient"
		}
		c.notice(w, r, key)
		return
	}
	if c.mode == surfaceJSON {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"orderId":  sub.Message.ID,
			"branchId": sub.BranchID,
			"to":       sub.To,
			"url":      sub.URL,
			"message":  sub.Message.Text(),
		})
		return
	}
	middleware.Trigger(w, map[string]any{eventOpenURL: map[string]string{"url": sub.URL, "orderId": sub.Message.ID}})
	c.fragment(w, r, state.Snapshot())
}

func (c cartRoutes) input(w http.ResponseWriter, r *http.Request) (input, bool) {
	in, err := readInput(w, r)
	if err != nil {
		c.badRequest(w, r, "malformed request body")
		return nil, false
	}
	return in, true
}

func (c cartRoutes) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	httpx.WriteError(r.Context(), w, httpx.NewError("bad_request", msg, http.StatusBadRequest))
}

// respond answers a mutation with the JSON snapshot, or the drawer (or stepper)
// fragment plus an HX-Trigger carrying the cart summary. affected lists the items whose
// menu-card steppers must follow the change.
func (c cartRoutes) respond(w http.ResponseWriter, r *http.Request, res cart.Result, affected ...string) {
	if c.mode == surfaceJSON {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"applied": res.Applied, "cart": res.Snapshot})
		return
	}
	middleware.Trigger(w, map[string]any{cart.EventName: res.Snapshot.Summary()})
	c.fragment(w, r, res.Snapshot, affected...)
}

// fragment renders the drawer body, or one item's stepper for ?view=stepper&item=<id>.
// The parts the request did not target (the drawer, the other steppers, every header
// badge) follow as out-of-band swaps so the issuing tab stays consistent.
func (c cartRoutes) fragment(w http.ResponseWriter, r *http.Request, snap cart.Snapshot, affected ...string) {
	var parts []Part
	q := r.URL.Query()
	if q.Get("view") == "stepper" {
		id := strings.TrimSpace(q.Get("item"))
		dd := c.drawerData(r, snap)
		dd.OOB = true
		parts = append(parts,
			Part{Name: "stepper", Data: c.stepperData(r, id, snap.ItemQty(id), false)},
			Part{Name: "drawer", Data: dd})
	} else {
		parts = append(parts, Part{Name: "drawer", Data: c.drawerData(r, snap)})
		seen := map[string]bool{}
		for _, id := range affected {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			parts = append(parts, Part{Name: "stepper", Data: c.stepperData(r, id, snap.ItemQty(id), true)})
		}
	}
	parts = append(parts, Part{Name: "badge-oob", Data: snap.Qty})
	if err := c.Views.Fragments(w, http.StatusOK, parts...); err != nil {
		c.serverError(w, r, err)
	}
}

func (c cartRoutes) stepperData(r *http.Request, id string, qty int, oob bool) StepperData {
	return StepperData{Locale: c.locale(r), ID: id, Qty: qty, Max: cart.MaxItemQty, CSRF: middleware.CSRFToken(r), OOB: oob}
}

func (c cartRoutes) stepper(w http.ResponseWriter, r *http.Request, id string, qty int) {
	if err := c.Views.Fragment(w, http.StatusOK, "stepper", c.stepperData(r, id, qty, false)); err != nil {
		c.serverError(w, r, err)
	}
}

// notice reports a validation or location failure without changing state. htmx gets a
// toast swapped into the toast region; JSON clients get a 422 envelope.
func (c cartRoutes) notice(w http.ResponseWriter, r *http.Request, key string) {
	loc := c.locale(r)
	msg := loc.T(key)
	if c.mode == surfaceJSON {
		httpx.WriteError(r.Context(), w,
			httpx.NewError("validation_failed", msg, http.StatusUnprocessableEntity).
				WithDetails(map[string]any{"notice": key}))
		return
	}
	middleware.Trigger(w, map[string]any{eventNotice: map[string]string{"key": key, "message": msg}})
	w.Header().Set("HX-Retarget", "#kh-toast")
	w.Header().Set("HX-Reswap", "innerHTML")
	if err := c.Views.Fragment(w, http.StatusOK, "toast", ToastData{Locale: loc, Key: key, Message: msg}); err != nil {
		c.serverError(w, r, err)
	}
}
