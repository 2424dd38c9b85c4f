package badge

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"kahramana.bh/site/internal/platform/requestctx"
)

// CountFunc returns the cart item count for the request's session.
type CountFunc func(r *http.Request) int

// Middleware reconciles badges in every successful text/html response. Other content
// types, including event streams, pass through untouched.
func Middleware(count CountFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if count == nil || r.Method == http.MethodHead || strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
				next.ServeHTTP(w, r)
				return
			}

			bw := &bufferedWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(bw, r)
			if bw.passthrough {
				return
			}

			body := bw.buf.Bytes()
			if bw.status == http.StatusOK && len(body) > 0 {
				var out bytes.Buffer
				if err := Rewrite(&out, bytes.NewReader(body), count(r)); err != nil {
					requestctx.Logger(r.Context()).Warn("badge: rewrite failed", zap.Error(err))
				} else {
					body = out.Bytes()
				}
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(bw.status)
			_, _ = w.Write(body)
		})
	}
}

// bufferedWriter holds text/html bodies until the handler returns. Any other content
// type, or a Flush, switches it to pass-through.
type bufferedWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	passthrough bool
	buf         bytes.Buffer
}

func (w *bufferedWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = status
	ct := w.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		w.passthrough = true
		w.ResponseWriter.WriteHeader(status)
	}
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", http.DetectContentType(p))
		}
		w.WriteHeader(http.StatusOK)
	}
	if w.passthrough {
		return w.ResponseWriter.Write(p)
	}
	return w.buf.Write(p)
}

func (w *bufferedWriter) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if !w.passthrough {
		w.passthrough = true
		w.ResponseWriter.Header().Del("Content-Length")
		w.ResponseWriter.WriteHeader(w.status)
		_, _ = w.ResponseWriter.Write(w.buf.Bytes())
		w.buf.Reset()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *bufferedWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
