package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/lowerlands/backend/internal/model/game"
	"github.com/zhouzirui/lowerlands/backend/internal/model/world"
)

// Display placeholders for absent context fields. They differ from the
// storage defaults used when a world state is created.
const (
	unknownField     = "Unknown"
	unknownAlignment = "Uncertain"
	defaultLocation  = "The Bleak Marches outskirts"
	emptyInventory   = "Empty"
)

// ProfileReader reads the records the context block is built from.
type ProfileReader interface {
	GetProfile(ctx context.Context, sessionID string) (game.PlayerProfile, error)
	GetWorldState(ctx context.Context, sessionID string) (game.WorldState, error)
}

// ContextBuilder renders the per-session player and state summary.
type ContextBuilder struct {
	store   ProfileReader
	setting world.Setting
	logger  *zap.Logger
}

// NewContextBuilder creates a builder over store.
func NewContextBuilder(store ProfileReader, setting world.Setting, logger *zap.Logger) *ContextBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextBuilder{store: store, setting: setting, logger: logger}
}

// Build fetches the profile and world state concurrently and renders them.
// It never fails: missing records and read errors render as placeholders.
func (b *ContextBuilder) Build(ctx context.Context, sessionID string) string {
	var (
		profile *game.PlayerProfile
		state   *game.WorldState
	)

	// Reads fail independently; one failing must not cancel the other.
	var g errgroup.Group
	g.Go(func() error {
		p, err := b.store.GetProfile(ctx, sessionID)
		if err != nil {
			return readErr("profile", err)
		}
		profile = &p
		return nil
	})
	g.Go(func() error {
		s, err := b.store.GetWorldState(ctx, sessionID)
		if err != nil {
			return readErr("world state", err)
		}
		state = &s
		return nil
	})
	if err := g.Wait(); err != nil {
		b.logger.Warn("turn context read failed, using placeholders",
			zap.String("session", sessionID),
			zap.Error(err),
		)
	}

	return RenderContext(b.setting, profile, state)
}

func readErr(what string, err error) error {
	if errors.Is(err, game.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("read %s: %w", what, err)
}

// RenderContext formats the context block. Either record may be nil.
func RenderContext(setting world.Setting, profile *game.PlayerProfile, state *game.WorldState) string {
	if profile == nil {
		profile = &game.PlayerProfile{}
	}

	location := defaultLocation
	inventory := emptyInventory
	if state != nil {
		if loc := strings.TrimSpace(state.Location); loc != "" {
			location = setting.LocationName(loc)
		}
		if items := state.Items(); len(items) > 0 {
			inventory = strings.Join(items, ", ")
		}
	}

	var sb strings.Builder
	sb.WriteString("Player:\n")
	fmt.Fprintf(&sb, "Name: %s\n", orDefault(profile.Name, unknownField))
	fmt.Fprintf(&sb, "Class: %s\n", orDefault(profile.Class, unknownField))
	fmt.Fprintf(&sb, "Background: %s\n", orDefault(profile.Background, unknownField))
	fmt.Fprintf(&sb, "Goal: %s\n", orDefault(profile.Goal, unknownField))
	fmt.Fprintf(&sb, "Alignment: %s\n", orDefault(profile.Alignment, unknownAlignment))
	sb.WriteString("\nState:\n")
	fmt.Fprintf(&sb, "Location: %s\n", location)
	fmt.Fprintf(&sb, "Inventory: %s", inventory)
	return sb.String()
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
