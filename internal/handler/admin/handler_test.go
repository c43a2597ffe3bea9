package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/lowerlands/backend/internal/middleware"
	"github.com/zhouzirui/lowerlands/backend/internal/model/game"
	gameService "github.com/zhouzirui/lowerlands/backend/internal/service/game"
)

func setupRouter(t *testing.T) (*chi.Mux, *game.MemoryStore) {
	t.Helper()
	store := game.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.TouchSession(ctx, "s1"))
	require.NoError(t, store.SaveProfile(ctx, game.PlayerProfile{SessionID: "s1", Name: "Mara", Class: "mage", Goal: "revenge"}))
	require.NoError(t, store.AppendTurnPair(ctx, "s1", "look", "Fog. 1. Walk 2. Wait"))

	r := chi.NewRouter()
	New(gameService.NewService(store, nil), "secret", nil).RegisterRoutes(r)
	return r, store
}

func request(r http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func login(t *testing.T, r http.Handler) *http.Cookie {
	t.Helper()
	resp := request(r, http.MethodPost, "/admin/login", map[string]string{"password": "secret"})
	require.Equal(t, http.StatusOK, resp.Code)
	for _, c := range resp.Result().Cookies() {
		if c.Name == middleware.AdminCookie {
			return c
		}
	}
	t.Fatal("admin cookie not set")
	return nil
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	r, _ := setupRouter(t)

	for _, body := range []any{map[string]string{"password": "nope"}, map[string]string{}} {
		resp := request(r, http.MethodPost, "/admin/login", body)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	}
}

func TestGuardedRoutesRequireLogin(t *testing.T) {
	r, _ := setupRouter(t)

	resp := request(r, http.MethodGet, "/admin/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = request(r, http.MethodDelete, "/admin/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestForgedAdminCookieRejected(t *testing.T) {
	r, store := setupRouter(t)
	forged := &http.Cookie{Name: middleware.AdminCookie, Value: "yes"}

	resp := request(r, http.MethodDelete, "/admin/sessions", nil, forged)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	_, err := store.GetProfile(context.Background(), "s1")
	require.NoError(t, err)
}

func TestLoginIssuesDistinctTokens(t *testing.T) {
	r, _ := setupRouter(t)

	first := login(t, r)
	second := login(t, r)
	assert.NotEqual(t, "yes", first.Value)
	assert.NotEqual(t, first.Value, second.Value)
}

func TestLogoutClearsCookie(t *testing.T) {
	r, _ := setupRouter(t)
	cookie := login(t, r)

	resp := request(r, http.MethodPost, "/admin/logout", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	cookies := resp.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)

	resp = request(r, http.MethodGet, "/admin/stats", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestStatsAndSessions(t *testing.T) {
	r, _ := setupRouter(t)
	cookie := login(t, r)

	resp := request(r, http.MethodGet, "/admin/stats", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"totalSessions":1,"totalPlayers":1,"totalTurns":2,"recentSessions24h":1}`, resp.Body.String())

	resp = request(r, http.MethodGet, "/admin/sessions", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	var payload struct {
		Sessions []game.SessionSummary `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	require.Len(t, payload.Sessions, 1)
	assert.Equal(t, "Mara", payload.Sessions[0].PlayerName)
}

func TestSessionDetail(t *testing.T) {
	r, _ := setupRouter(t)
	cookie := login(t, r)

	resp := request(r, http.MethodGet, "/admin/session/s1", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)

	var detail game.SessionDetail
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &detail))
	assert.Equal(t, "s1", detail.SessionID)
	require.NotNil(t, detail.Player)
	assert.Equal(t, "Mara", detail.Player.Name)
	require.NotNil(t, detail.State)
	assert.Equal(t, game.DefaultLocation, detail.State.Location)
	require.Len(t, detail.Turns, 2)
	assert.Equal(t, game.RoleUser, detail.Turns[0].Role)

	resp = request(r, http.MethodGet, "/admin/session/missing", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"sessionId":"missing","player":null,"state":null,"turns":[]}`, resp.Body.String())
}

func TestUpdatePlayer(t *testing.T) {
	r, store := setupRouter(t)
	cookie := login(t, r)

	resp := request(r, http.MethodPatch, "/admin/player/s1", map[string]string{}, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = request(r, http.MethodPatch, "/admin/player/nobody", map[string]string{"goal": "x"}, cookie)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = request(r, http.MethodPatch, "/admin/player/s1", map[string]string{"goal": "atonement", "playerClass": "witch"}, cookie)
	require.Equal(t, http.StatusOK, resp.Code)

	profile, err := store.GetProfile(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "atonement", profile.Goal)
	assert.Equal(t, "witch", profile.Class)
	assert.Equal(t, "Mara", profile.Name)
}

func TestResetAndDelete(t *testing.T) {
	r, store := setupRouter(t)
	cookie := login(t, r)
	ctx := context.Background()

	resp := request(r, http.MethodPost, "/admin/session/s1/reset", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	turns, err := store.RecentTurns(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
	_, err = store.GetProfile(ctx, "s1")
	require.NoError(t, err)

	resp = request(r, http.MethodDelete, "/admin/session/s1", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	_, err = store.GetProfile(ctx, "s1")
	require.ErrorIs(t, err, game.ErrNotFound)

	require.NoError(t, store.TouchSession(ctx, "s2"))
	resp = request(r, http.MethodDelete, "/admin/sessions", nil, cookie)
	require.Equal(t, http.StatusOK, resp.Code)
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, game.Stats{}, stats)
}
