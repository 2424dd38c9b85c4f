package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kahramana.bh/site/internal/drawer"
	"kahramana.bh/site/internal/order"
)

const (
	// SessionCookieName names the signed session cookie.
	SessionCookieName = "KAHRAMANA_SESSION"
	sessionMaxAge     = 30 * 24 * time.Hour
	minSigningKeyLen  = 32
)

// SessionData is the signed cookie payload. It holds the cart id, never cart contents.
type SessionData struct {
	ID        string       `json:"id"`
	Locale    string       `json:"locale,omitempty"`
	CartID    string       `json:"cart"`
	Drawer    drawer.State `json:"drawer"`
	Draft     order.Draft  `json:"draft"`
	CSRFToken string       `json:"csrf,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	// internal dirty flag; not serialized
	dirty bool
}

// MarkDirty flags the session for writing at end of request
func (s *SessionData) MarkDirty() { s.dirty = true; s.UpdatedAt = time.Now().UTC() }

// Sessions issues and verifies the signed session cookie.
type Sessions struct {
	key    []byte
	secure bool
	logger *zap.Logger
}

// NewSessions builds a cookie signer. An empty key generates a process-ephemeral one,
// which is only acceptable in development.
func NewSessions(signingKey string, secure bool, logger *zap.Logger) (*Sessions, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := []byte(signingKey)
	if len(key) == 0 {
		key = make([]byte, minSigningKeyLen)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		logger.Warn("session: using ephemeral signing key; set KAHRAMANA_SESSION_SIGNING_KEY for production")
	} else if len(key) < minSigningKeyLen && secure {
		return nil, errors.New("session: signing key must be at least 32 bytes")
	}
	return &Sessions{key: key, secure: secure, logger: logger}, nil
}

// Secure reports whether cookies are marked Secure.
func (m *Sessions) Secure() bool { return m.secure }

// Middleware loads or initializes a session and stores it in request context. The
// cookie is rewritten just before the first write when the session changed.
func (m *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sd, fromCookie := m.read(r)
		if sd.ID == "" {
			now := time.Now().UTC()
			sd = &SessionData{
				ID:        randID(),
				CartID:    uuid.NewString(),
				CSRFToken: newCSRFToken(),
				CreatedAt: now,
				UpdatedAt: now,
				dirty:     true,
			}
		}
		if sd.CartID == "" {
			sd.CartID = uuid.NewString()
			sd.dirty = true
		}

		rw := NewResponseRecorder(w)
		rw.SetBeforeWrite(func(w http.ResponseWriter) {
			if sd.dirty || !fromCookie {
				m.write(w, sd)
			}
		})
		next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), ctxKeySession, sd)))
		// If nothing was written yet (e.g., HEAD), persist cookie now
		if !rw.Wrote() && (sd.dirty || !fromCookie) {
			m.write(w, sd)
		}
	})
}

// GetSession returns session data from context
func GetSession(r *http.Request) *SessionData {
	if v := r.Context().Value(ctxKeySession); v != nil {
		if sd, ok := v.(*SessionData); ok {
			return sd
		}
	}
	return &SessionData{}
}

// WithSession attaches sd to ctx; used by tests and background renders.
func WithSession(ctx context.Context, sd *SessionData) context.Context {
	return context.WithValue(ctx, ctxKeySession, sd)
}

func (m *Sessions) read(r *http.Request) (*SessionData, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return &SessionData{}, false
	}
	payload, ok := m.verify(c.Value)
	if !ok {
		return &SessionData{}, false
	}
	var sd SessionData
	if err := json.Unmarshal(payload, &sd); err != nil {
		return &SessionData{}, false
	}
	sd.Draft = sd.Draft.Normalize()
	return &sd, true
}

func (m *Sessions) verify(value string) ([]byte, bool) {
	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		return nil, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, false
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, false
	}
	mac := hmac.New(sha256.New, m.key)
	mac.Write(payload)
	return payload, hmac.Equal(sig, mac.Sum(nil))
}

// Encode signs sd into a cookie value.
func (m *Sessions) Encode(sd *SessionData) string {
	b, _ := json.Marshal(sd)
	mac := hmac.New(sha256.New, m.key)
	mac.Write(b)
	return base64.RawURLEncoding.EncodeToString(b) + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Cookie returns the session cookie for sd.
func (m *Sessions) Cookie(sd *SessionData) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    m.Encode(sd),
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sessionMaxAge),
	}
}

func (m *Sessions) write(w http.ResponseWriter, sd *SessionData) {
	http.SetCookie(w, m.Cookie(sd))
}

// helpers
func randID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func newCSRFToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
