package handlers

import (
	"net/http"
	"time"

	"kahramana.bh/site/internal/health"
	"kahramana.bh/site/internal/platform/httpx"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

type healthHandlers struct {
	checker *health.Checker
	build   BuildInfo
	now     func() time.Time
}

func newHealthHandlers(checker *health.Checker, build BuildInfo, now func() time.Time) *healthHandlers {
	if now == nil {
		now = time.Now
	}
	if build.StartedAt.IsZero() {
		build.StartedAt = now()
	}
	return &healthHandlers{checker: checker, build: build, now: now}
}

// Healthz reports liveness and build details. It never touches dependencies.
func (h *healthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status":      health.StatusOK,
		"uptime":      h.now().Sub(h.build.StartedAt).Round(time.Second).String(),
		"timestamp":   h.now().UTC().Format(time.RFC3339),
		"version":     h.build.Version,
		"commitSha":   h.build.CommitSHA,
		"environment": h.build.Environment,
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}

// Readyz probes the cart slot and broadcaster. Anything but ok answers 503.
func (h *healthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": health.StatusOK, "checks": map[string]any{}})
		return
	}
	report := h.checker.Collect(r.Context())
	status := http.StatusOK
	if report.Status != health.StatusOK {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, report)
}
