// Package storage selects the game store backend from configuration.
package storage

import (
	"context"

	"github.com/zhouzirui/lowerlands/backend/internal/config"
	"github.com/zhouzirui/lowerlands/backend/internal/model/game"
	"github.com/zhouzirui/lowerlands/backend/internal/storage/sqlite"
)

// Open returns the in-process store for ":memory:" and a SQLite store otherwise.
func Open(ctx context.Context, cfg config.StorageConfig) (game.Store, error) {
	if cfg.InMemory() {
		return game.NewMemoryStore(), nil
	}
	store, err := sqlite.Open(ctx, cfg.Path)
	if err != nil {
		return nil, err
	}
	return store, nil
}
