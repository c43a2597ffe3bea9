package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/lowerlands/backend/internal/config"
	"github.com/zhouzirui/lowerlands/backend/internal/handler"
	"github.com/zhouzirui/lowerlands/backend/internal/model/world"
	"github.com/zhouzirui/lowerlands/backend/internal/observe"
	"github.com/zhouzirui/lowerlands/backend/internal/service/ai"
	gameService "github.com/zhouzirui/lowerlands/backend/internal/service/game"
	"github.com/zhouzirui/lowerlands/backend/internal/service/turn"
	"github.com/zhouzirui/lowerlands/backend/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := observe.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, using process environment", zap.Error(envErr))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()
	logger.Info("store ready", zap.String("path", cfg.Storage.Path))

	completer, err := ai.NewCompleter(ctx, cfg.AI)
	if err != nil {
		logger.Warn("completion service unavailable, turns will use the fallback reply",
			zap.String("provider", cfg.AI.Provider),
			zap.Error(err),
		)
		completer = ai.Unconfigured{Reason: err.Error()}
	} else {
		logger.Info("completion service initialized", zap.String("provider", cfg.AI.Provider))
	}

	var (
		metrics        *observe.Metrics
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		provider, err := observe.InitProvider("lowerlands")
		if err != nil {
			return err
		}
		defer func() { _ = provider.MeterProvider.Shutdown(context.Background()) }()

		if metrics, err = observe.NewMetrics(provider.MeterProvider); err != nil {
			return err
		}
		metricsHandler = provider.Handler
	}

	engine := turn.NewEngine(store, completer, world.Default(), turn.Config{
		HistoryLimit: cfg.Turn.HistoryLimit,
		Timeout:      cfg.Turn.Timeout,
		MaxTokens:    cfg.Turn.MaxTokens,
		Temperature:  cfg.Turn.Temperature,
	}, turn.WithLogger(logger), turn.WithMetrics(metrics))

	router := handler.NewRouter(handler.Options{
		Games:         gameService.NewService(store, logger),
		Engine:        engine,
		CORSOrigins:   cfg.Server.CORSOrigins,
		AdminPassword: cfg.Admin.Password,
		Metrics:       metricsHandler,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("Lower Lands backend listening", zap.String("addr", cfg.Server.Addr))
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
