package middleware

import (
	"net/http"
	"strings"

	"kahramana.bh/site/internal/platform/httpx"
)

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	if IsHTMX(r.Context()) || wantsJSON(r) {
		httpx.WriteError(r.Context(), w, httpx.NewError(http.StatusText(code), msg, code))
		return
	}
	http.Error(w, msg, code)
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") != "" || strings.HasPrefix(r.URL.Path, "/api/")
}
