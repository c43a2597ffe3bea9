package admin

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/lowerlands/backend/internal/middleware"
	"github.com/zhouzirui/lowerlands/backend/internal/model/game"
	gameService "github.com/zhouzirui/lowerlands/backend/internal/service/game"
	"github.com/zhouzirui/lowerlands/backend/pkg/utils"
)

// Handler serves the admin dashboard API.
type Handler struct {
	games    *gameService.Service
	password string
	tokens   *middleware.AdminTokens
	logger   *zap.Logger
}

// New creates an admin handler guarded by password.
func New(games *gameService.Service, password string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{games: games, password: password, tokens: middleware.NewAdminTokens(), logger: logger}
}

// RegisterRoutes mounts the admin routes under /admin.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(admin chi.Router) {
		admin.Post("/login", h.handleLogin)
		admin.Post("/logout", h.handleLogout)

		admin.Group(func(guarded chi.Router) {
			guarded.Use(middleware.RequireAdmin(h.tokens))
			guarded.Get("/stats", h.handleStats)
			guarded.Get("/sessions", h.handleSessions)
			guarded.Delete("/sessions", h.handleDeleteAll)
			guarded.Get("/session/{id}", h.handleSessionDetail)
			guarded.Post("/session/{id}/reset", h.handleReset)
			guarded.Delete("/session/{id}", h.handleDelete)
			guarded.Patch("/player/{sessionId}", h.handleUpdatePlayer)
		})
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Password == "" || subtle.ConstantTimeCompare([]byte(payload.Password), []byte(h.password)) != 1 {
		utils.RespondError(w, http.StatusUnauthorized, "Invalid admin password")
		return
	}

	middleware.SetAdminCookie(w, h.tokens.Issue())
	utils.RespondOK(w)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.AdminCookie); err == nil {
		h.tokens.Revoke(cookie.Value)
	}
	middleware.ClearAdminCookie(w)
	utils.RespondOK(w)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.games.Stats(r.Context())
	if err != nil {
		h.fail(w, "stats", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.games.Sessions(r.Context())
	if err != nil {
		h.fail(w, "list sessions", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.games.SessionDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "session detail", err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleUpdatePlayer(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name        *string `json:"name"`
		PlayerClass *string `json:"playerClass"`
		Background  *string `json:"background"`
		Goal        *string `json:"goal"`
		Alignment   *string `json:"alignment"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.games.UpdateProfile(r.Context(), chi.URLParam(r, "sessionId"), game.ProfilePatch{
		Name:       payload.Name,
		Class:      payload.PlayerClass,
		Background: payload.Background,
		Goal:       payload.Goal,
		Alignment:  payload.Alignment,
	})
	switch {
	case errors.Is(err, gameService.ErrNoFields):
		utils.RespondError(w, http.StatusBadRequest, "No valid fields to update")
	case errors.Is(err, gameService.ErrPlayerMissing):
		utils.RespondError(w, http.StatusNotFound, "Player not found for session")
	case err != nil:
		h.fail(w, "update player", err)
	default:
		utils.RespondOK(w)
	}
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.games.ResetSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "reset session", err)
		return
	}
	utils.RespondOK(w)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.games.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete session", err)
		return
	}
	utils.RespondOK(w)
}

func (h *Handler) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.games.DeleteAllSessions(r.Context()); err != nil {
		h.fail(w, "delete all sessions", err)
		return
	}
	utils.RespondOK(w)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error("admin operation failed", zap.String("op", op), zap.Error(err))
	utils.RespondError(w, http.StatusInternalServerError, "DB error")
}
