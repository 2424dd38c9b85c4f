package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"kahramana.bh/site/internal/badge"
	"kahramana.bh/site/internal/cart"
	"kahramana.bh/site/internal/middleware"
)

const sseHeartbeat = 25 * time.Second

// events streams badge fragments for the session's cart. The first event carries the
// current count; later events follow changes made by other tabs or other instances.
// EventSource cannot set headers, so the tab id may also come from ?tab=.
func (c cartRoutes) events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The server WriteTimeout would otherwise cut the stream.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		c.logger(r).Warn("sse: clear write deadline", zap.Error(err))
	}

	id := cartID(r)
	tab := middleware.Tab(r)
	if tab == "" {
		tab = r.URL.Query().Get("tab")
	}

	ch, cancel := c.Bus.Subscribe(id, 0)
	defer cancel()
	c.logger(r).Debug("sse: stream opened", zap.String("tab", tab), zap.Int("subscribers", c.Bus.Subscribers()))

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	if err := c.writeChange(w, rc, c.Cart.Snapshot(ctx, id)); err != nil {
		return
	}

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if tab != "" && ev.Origin == tab {
				continue
			}
			var snap cart.Snapshot
			if ev.Snapshot != nil {
				snap = *ev.Snapshot
			} else {
				snap = c.Cart.Snapshot(ctx, id)
			}
			if err := c.writeChange(w, rc, snap); err != nil {
				return
			}
		}
	}
}

func (c cartRoutes) writeChange(w http.ResponseWriter, rc *http.ResponseController, snap cart.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", badge.SSEEvent, badge.Fragment(snap.Qty)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", cart.EventName, payload); err != nil {
		return err
	}
	return rc.Flush()
}
