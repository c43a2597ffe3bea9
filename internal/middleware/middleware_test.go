package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingToucher struct {
	touched []string
	err     error
}

func (r *recordingToucher) Touch(_ context.Context, sessionID string) error {
	r.touched = append(r.touched, sessionID)
	return r.err
}

func echoSession() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := SessionID(r.Context())
		_, _ = w.Write([]byte(id))
	})
}

func TestPlayerSessionIssuesCookie(t *testing.T) {
	toucher := &recordingToucher{}
	handler := PlayerSession(toucher, nil)(echoSession())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/character", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, 30*24*60*60, cookies[0].MaxAge)
	assert.Equal(t, cookies[0].Value, rec.Body.String())
	assert.Equal(t, []string{cookies[0].Value}, toucher.touched)
}

func TestPlayerSessionReusesCookie(t *testing.T) {
	toucher := &recordingToucher{err: errors.New("locked")}
	handler := PlayerSession(toucher, nil)(echoSession())

	req := httptest.NewRequest(http.MethodPost, "/api/turn", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "abc"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, "abc", rec.Body.String())
	assert.Equal(t, []string{"abc"}, toucher.touched)
}

func TestPlayerSessionSkipsAdminAndHealth(t *testing.T) {
	toucher := &recordingToucher{}
	handler := PlayerSession(toucher, nil)(echoSession())

	for _, path := range []string{"/api/admin/stats", "/api/health"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Empty(t, rec.Result().Cookies(), path)
		assert.Empty(t, rec.Body.String(), path)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "abc"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Body.String())

	assert.Empty(t, toucher.touched)
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"http://localhost:5173"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/turn", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/turn", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequireAdmin(t *testing.T) {
	tokens := NewAdminTokens()
	handler := RequireAdmin(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(cookie *http.Cookie) int {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(nil))
	assert.Equal(t, http.StatusUnauthorized, serve(&http.Cookie{Name: AdminCookie, Value: "yes"}))

	login := httptest.NewRecorder()
	SetAdminCookie(login, tokens.Issue())
	cookie := login.Result().Cookies()[0]
	assert.Equal(t, http.StatusOK, serve(cookie))

	tokens.Revoke(cookie.Value)
	assert.Equal(t, http.StatusUnauthorized, serve(cookie))
}

func TestAdminTokensExpire(t *testing.T) {
	tokens := NewAdminTokens()
	now := time.Now()
	tokens.now = func() time.Time { return now }

	token := tokens.Issue()
	assert.True(t, tokens.Valid(token))
	assert.False(t, tokens.Valid(""))

	now = now.Add(adminMaxAge)
	assert.False(t, tokens.Valid(token))

	tokens.Issue()
	assert.Len(t, tokens.tokens, 1)
}
