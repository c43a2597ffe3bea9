package game

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/lowerlands/backend/internal/model/game"
)

var (
	ErrNoFields      = errors.New("no valid fields to update")
	ErrFieldTooLong  = errors.New("profile field too long")
	ErrPlayerMissing = errors.New("player not found for session")
)

const (
	// DetailTurnLimit bounds the turns shown in the admin session detail.
	DetailTurnLimit = 30
	// SessionListLimit bounds the admin session list.
	SessionListLimit = 100

	maxFieldLength = 200
)

// Service wraps the store operations behind the player and admin endpoints.
type Service struct {
	store  game.Store
	logger *zap.Logger
}

// NewService creates a service over store.
func NewService(store game.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Touch records activity for a session, creating it on first contact.
func (s *Service) Touch(ctx context.Context, sessionID string) error {
	if err := s.store.TouchSession(ctx, sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Profile returns the session's profile, or nil when none was saved.
func (s *Service) Profile(ctx context.Context, sessionID string) (*game.PlayerProfile, error) {
	profile, err := s.store.GetProfile(ctx, sessionID)
	if errors.Is(err, game.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &profile, nil
}

// SaveProfile overwrites the session's profile. The first save also creates
// the world state with its starting values.
func (s *Service) SaveProfile(ctx context.Context, profile game.PlayerProfile) error {
	if strings.TrimSpace(profile.SessionID) == "" {
		return game.ErrSessionRequired
	}
	for _, field := range []*string{&profile.Name, &profile.Class, &profile.Background, &profile.Goal, &profile.Alignment} {
		*field = strings.TrimSpace(*field)
		if len([]rune(*field)) > maxFieldLength {
			return ErrFieldTooLong
		}
	}

	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	s.logger.Info("profile saved",
		zap.String("session", profile.SessionID),
		zap.String("name", profile.Name),
	)
	return nil
}

// UpdateProfile applies an admin patch to an existing profile.
func (s *Service) UpdateProfile(ctx context.Context, sessionID string, patch game.ProfilePatch) error {
	if patch.Empty() {
		return ErrNoFields
	}
	err := s.store.UpdateProfile(ctx, sessionID, patch)
	if errors.Is(err, game.ErrNotFound) {
		return ErrPlayerMissing
	}
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// Stats returns the dashboard counters.
func (s *Service) Stats(ctx context.Context) (game.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return game.Stats{}, fmt.Errorf("load stats: %w", err)
	}
	return stats, nil
}

// Sessions lists the most recently active sessions that have a named player.
func (s *Service) Sessions(ctx context.Context) ([]game.SessionSummary, error) {
	sessions, err := s.store.ListSessions(ctx, SessionListLimit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []game.SessionSummary{}
	}
	return sessions, nil
}

// SessionDetail collects the profile, world state and latest turns of a session.
func (s *Service) SessionDetail(ctx context.Context, sessionID string) (game.SessionDetail, error) {
	detail := game.SessionDetail{SessionID: sessionID}

	profile, err := s.Profile(ctx, sessionID)
	if err != nil {
		return detail, err
	}
	detail.Player = profile

	state, err := s.store.GetWorldState(ctx, sessionID)
	switch {
	case err == nil:
		detail.State = &state
	case !errors.Is(err, game.ErrNotFound):
		return detail, fmt.Errorf("load world state: %w", err)
	}

	turns, err := s.store.RecentTurns(ctx, sessionID, DetailTurnLimit)
	if err != nil {
		return detail, fmt.Errorf("load turns: %w", err)
	}
	if turns == nil {
		turns = []game.Turn{}
	}
	detail.Turns = turns
	return detail, nil
}

// ResetSession wipes turns and world state and keeps the profile.
func (s *Service) ResetSession(ctx context.Context, sessionID string) error {
	if err := s.store.ResetSession(ctx, sessionID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	s.logger.Info("session reset", zap.String("session", sessionID))
	return nil
}

// DeleteSession removes every record of a session.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.Info("session deleted", zap.String("session", sessionID))
	return nil
}

// DeleteAllSessions purges the store.
func (s *Service) DeleteAllSessions(ctx context.Context) error {
	if err := s.store.DeleteAllSessions(ctx); err != nil {
		return fmt.Errorf("delete all sessions: %w", err)
	}
	s.logger.Warn("all sessions deleted")
	return nil
}
