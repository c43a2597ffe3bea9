package player

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/lowerlands/backend/internal/middleware"
	"github.com/zhouzirui/lowerlands/backend/internal/model/game"
	gameService "github.com/zhouzirui/lowerlands/backend/internal/service/game"
	"github.com/zhouzirui/lowerlands/backend/internal/service/turn"
	"github.com/zhouzirui/lowerlands/backend/pkg/utils"
)

const maxHistoryLimit = 100

// Handler serves the player API.
type Handler struct {
	games  *gameService.Service
	engine *turn.Engine
	logger *zap.Logger
}

// New creates a player handler.
func New(games *gameService.Service, engine *turn.Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{games: games, engine: engine, logger: logger}
}

// RegisterRoutes mounts the player routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/character", h.handleGetCharacter)
	r.Post("/character", h.handleSaveCharacter)
	r.Post("/turn", h.handleTurn)
	r.Get("/history", h.handleHistory)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]string{"status": "ok"}
	if id, ok := middleware.SessionID(r.Context()); ok {
		payload["sessionId"] = id
	}
	utils.RespondJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r)
	if !ok {
		return
	}

	profile, err := h.games.Profile(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("load character failed", zap.String("session", sessionID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "DB error")
		return
	}
	utils.RespondJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleSaveCharacter(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r)
	if !ok {
		return
	}

	var payload struct {
		Name        string `json:"name"`
		PlayerClass string `json:"playerClass"`
		Background  string `json:"background"`
		Goal        string `json:"goal"`
		Alignment   string `json:"alignment"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.games.SaveProfile(r.Context(), game.PlayerProfile{
		SessionID:  sessionID,
		Name:       payload.Name,
		Class:      payload.PlayerClass,
		Background: payload.Background,
		Goal:       payload.Goal,
		Alignment:  payload.Alignment,
	})
	switch {
	case errors.Is(err, gameService.ErrFieldTooLong):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.logger.Error("save character failed", zap.String("session", sessionID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "DB error")
	default:
		utils.RespondOK(w)
	}
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r)
	if !ok {
		return
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.engine.RunTurn(r.Context(), sessionID, payload.Message)
	switch {
	case errors.Is(err, turn.ErrMessageRequired):
		utils.RespondError(w, http.StatusBadRequest, "message is required")
	case err != nil:
		h.logger.Error("turn failed", zap.String("session", sessionID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Failed to run game turn")
	default:
		utils.RespondJSON(w, http.StatusOK, map[string]string{"reply": reply})
	}
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSession(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			utils.RespondError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	turns, err := h.engine.History(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("load history failed", zap.String("session", sessionID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.SessionID(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "session is required")
	}
	return id, ok
}
