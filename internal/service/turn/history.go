package turn

import (
	"context"
	"fmt"

	"github.com/zhouzirui/lowerlands/backend/internal/model/game"
)

// DefaultHistoryLimit is the number of turns replayed into each prompt.
const DefaultHistoryLimit = 6

// TurnReader reads the most recent turns of a session, oldest first.
type TurnReader interface {
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]game.Turn, error)
}

// HistoryWindow returns a bounded, chronological slice of a session's turns.
type HistoryWindow struct {
	store TurnReader
	limit int
}

// NewHistoryWindow creates a window of limit turns; non-positive means the default.
func NewHistoryWindow(store TurnReader, limit int) *HistoryWindow {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &HistoryWindow{store: store, limit: limit}
}

// Limit is the configured window size.
func (w *HistoryWindow) Limit() int {
	return w.limit
}

// Recent returns up to limit turns in ascending creation order. A
// non-positive limit uses the window default. No turns yields an empty slice.
func (w *HistoryWindow) Recent(ctx context.Context, sessionID string, limit int) ([]game.Turn, error) {
	if limit <= 0 {
		limit = w.limit
	}
	turns, err := w.store.RecentTurns(ctx, sessionID, limit)
	if err != nil {
		return []game.Turn{}, fmt.Errorf("read history: %w", err)
	}
	if turns == nil {
		turns = []game.Turn{}
	}
	return turns, nil
}
