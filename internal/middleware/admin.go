package middleware

import (
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/lowerlands/backend/pkg/utils"
)

// AdminCookie carries the token issued at admin login.
const AdminCookie = "admin_auth"

const adminMaxAge = 8 * time.Hour

// AdminTokens keeps the admin tokens issued by login. Tokens live in
// process memory, so a restart logs every admin out.
type AdminTokens struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

// NewAdminTokens creates an empty token registry.
func NewAdminTokens() *AdminTokens {
	return &AdminTokens{
		tokens: make(map[string]time.Time),
		ttl:    adminMaxAge,
		now:    time.Now,
	}
}

// Issue mints a random token valid for the admin cookie lifetime.
func (a *AdminTokens) Issue() string {
	token := uuid.NewString()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneLocked()
	a.tokens[token] = a.now().Add(a.ttl)
	return token
}

// Valid reports whether token was issued here and has not expired.
func (a *AdminTokens) Valid(token string) bool {
	if token == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	valid := false
	for issued, expires := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(issued), []byte(token)) == 1 && now.Before(expires) {
			valid = true
		}
	}
	return valid
}

// Revoke forgets token.
func (a *AdminTokens) Revoke(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.tokens, token)
}

func (a *AdminTokens) pruneLocked() {
	now := a.now()
	for token, expires := range a.tokens {
		if !now.Before(expires) {
			delete(a.tokens, token)
		}
	}
}

// RequireAdmin rejects requests whose admin cookie does not hold a live token.
func RequireAdmin(tokens *AdminTokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(AdminCookie)
			if err != nil || !tokens.Valid(cookie.Value) {
				utils.RespondError(w, http.StatusUnauthorized, "Not authenticated as admin")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetAdminCookie stores token in the admin cookie.
func SetAdminCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     AdminCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(adminMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAdminCookie expires the admin cookie.
func ClearAdminCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AdminCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
