package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/lowerlands/backend/internal/handler/admin"
	"github.com/zhouzirui/lowerlands/backend/internal/handler/player"
	"github.com/zhouzirui/lowerlands/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/lowerlands/backend/internal/middleware"
	gameService "github.com/zhouzirui/lowerlands/backend/internal/service/game"
	"github.com/zhouzirui/lowerlands/backend/internal/service/turn"
)

// Options carries what the router wires into the handlers.
type Options struct {
	Games         *gameService.Service
	Engine        *turn.Engine
	CORSOrigins   []string
	AdminPassword string
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(opts.CORSOrigins))
	r.Use(middlewarePkg.PlayerSession(opts.Games, logger))

	playerHandler := player.New(opts.Games, opts.Engine, logger)
	adminHandler := admin.New(opts.Games, opts.AdminPassword, logger)
	wsHandler := ws.New(opts.Engine, opts.CORSOrigins, logger)

	r.Route("/api", func(api chi.Router) {
		playerHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
		adminHandler.RegisterRoutes(api)
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	return r
}
