package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/lowerlands/backend/internal/middleware"
	"github.com/zhouzirui/lowerlands/backend/internal/service/turn"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// TurnRunner answers one player message.
type TurnRunner interface {
	RunTurn(ctx context.Context, sessionID, message string) (string, error)
}

type inboundMessage struct {
	Message string `json:"message"`
}

type outgoingMessage struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// Handler plays turns over a websocket, one reply frame per message frame.
type Handler struct {
	turns    TurnRunner
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// New creates a websocket handler. An empty origin list accepts any origin.
func New(turns TurnRunner, origins []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return &Handler{
		turns:  turns,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowed) == 0 {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionID(r.Context())
	if !ok {
		http.Error(w, "session is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("websocket connected", zap.String("session", sessionID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	go pingLoop(ctx, conn)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.String("session", sessionID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		out := h.play(ctx, sessionID, msg.Message)
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(out); err != nil {
			h.logger.Warn("websocket write failed", zap.String("session", sessionID), zap.Error(err))
			return
		}
	}
}

func (h *Handler) play(ctx context.Context, sessionID, message string) outgoingMessage {
	reply, err := h.turns.RunTurn(ctx, sessionID, message)
	switch {
	case errors.Is(err, turn.ErrMessageRequired):
		return outgoingMessage{Error: "message is required"}
	case err != nil:
		h.logger.Error("websocket turn failed", zap.String("session", sessionID), zap.Error(err))
		return outgoingMessage{Error: "Failed to run game turn"}
	default:
		return outgoingMessage{Reply: reply}
	}
}

// pingLoop 定期发送ping消息。WriteControl 可与回复写入并发调用。
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
