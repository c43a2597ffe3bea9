// Package middleware holds the HTTP middleware shared by the player and
// admin routes.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionCookie names the cookie carrying the player session id.
const SessionCookie = "session_id"

const sessionMaxAge = 30 * 24 * time.Hour

type sessionKey struct{}

// Toucher records session activity.
type Toucher interface {
	Touch(ctx context.Context, sessionID string) error
}

// PlayerSession issues a session cookie on first contact, touches the
// session on every request and stores the id in the request context.
// Admin routes and the health check are passed through without a new
// cookie; an existing id is still exposed to them.
func PlayerSession(sessions Toucher, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID, ok := readSession(r)
			if skipSession(r.URL.Path) {
				if ok {
					r = r.WithContext(WithSessionID(r.Context(), sessionID))
				}
				next.ServeHTTP(w, r)
				return
			}

			if !ok {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(sessionMaxAge.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			if err := sessions.Touch(r.Context(), sessionID); err != nil {
				logger.Warn("session touch failed", zap.String("session", sessionID), zap.Error(err))
			}

			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sessionID)))
		})
	}
}

func skipSession(path string) bool {
	return strings.HasPrefix(path, "/api/admin") || path == "/api/health" || path == "/metrics"
}

func readSession(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	return value, value != ""
}

// WithSessionID stores a session id on ctx.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionID returns the session id stored by PlayerSession.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionKey{}).(string)
	return id, ok && id != ""
}
