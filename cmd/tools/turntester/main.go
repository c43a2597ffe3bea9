// Command turntester plays turns and edits profiles against the configured
// store and completion provider, without the HTTP server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/lowerlands/backend/internal/config"
	"github.com/zhouzirui/lowerlands/backend/internal/model/game"
	"github.com/zhouzirui/lowerlands/backend/internal/model/world"
	"github.com/zhouzirui/lowerlands/backend/internal/observe"
	"github.com/zhouzirui/lowerlands/backend/internal/service/ai"
	gameService "github.com/zhouzirui/lowerlands/backend/internal/service/game"
	"github.com/zhouzirui/lowerlands/backend/internal/service/turn"
	"github.com/zhouzirui/lowerlands/backend/internal/storage"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(openFromEnv).Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the services a command works with.
type app struct {
	store  game.Store
	engine *turn.Engine
	games  *gameService.Service
}

func (a *app) Close() error {
	return a.store.Close()
}

type opener func(ctx context.Context, verbose bool) (*app, error)

func openFromEnv(ctx context.Context, verbose bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger, err := observe.NewLogger(level)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	completer, err := ai.NewCompleter(ctx, cfg.AI)
	if err != nil {
		logger.Warn("completion service unavailable, using fallback reply", zap.Error(err))
		completer = ai.Unconfigured{Reason: err.Error()}
	}

	return newApp(store, completer, turn.Config{
		HistoryLimit: cfg.Turn.HistoryLimit,
		Timeout:      cfg.Turn.Timeout,
		MaxTokens:    cfg.Turn.MaxTokens,
		Temperature:  cfg.Turn.Temperature,
	}, logger), nil
}

func newApp(store game.Store, completer ai.Completer, cfg turn.Config, logger *zap.Logger) *app {
	return &app{
		store:  store,
		engine: turn.NewEngine(store, completer, world.Default(), cfg, turn.WithLogger(logger)),
		games:  gameService.NewService(store, logger),
	}
}

func newRootCmd(open opener) *cobra.Command {
	var (
		sessionID string
		verbose   bool
		current   *app
	)

	root := &cobra.Command{
		Use:          "turntester",
		Short:        "Drive the Lower Lands turn engine from the command line",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			a, err := open(cmd.Context(), verbose)
			if err != nil {
				return err
			}
			current = a
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if current == nil {
				return nil
			}
			return current.Close()
		},
	}
	root.PersistentFlags().StringVarP(&sessionID, "session", "s", "", "session id")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	getApp := func() *app { return current }
	session := func() string { return sessionID }

	root.AddCommand(
		newTurnCmd(getApp, session),
		newHistoryCmd(getApp, session),
		newProfileCmd(getApp, session),
	)
	return root
}
