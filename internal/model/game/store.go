package game

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrSessionRequired = errors.New("session id is required")
)

// Store persists sessions, profiles, world state and turns.
//
// Turns are append-only and RecentTurns always returns them oldest first.
// SaveProfile creates the world state only when none exists yet.
type Store interface {
	TouchSession(ctx context.Context, sessionID string) error

	GetProfile(ctx context.Context, sessionID string) (PlayerProfile, error)
	SaveProfile(ctx context.Context, profile PlayerProfile) error
	UpdateProfile(ctx context.Context, sessionID string, patch ProfilePatch) error
	GetWorldState(ctx context.Context, sessionID string) (WorldState, error)

	AppendTurnPair(ctx context.Context, sessionID, userContent, assistantContent string) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error)

	Stats(ctx context.Context) (Stats, error)
	ListSessions(ctx context.Context, limit int) ([]SessionSummary, error)
	ResetSession(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteAllSessions(ctx context.Context) error

	Close() error
}

// MemoryStore implements Store in process memory. It backs tests and
// DATABASE_PATH=:memory: runs.
type MemoryStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	nextID   int64
	sessions map[string]Session
	profiles map[string]PlayerProfile
	states   map[string]WorldState
	turns    map[string][]Turn
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]Session),
		profiles: make(map[string]PlayerProfile),
		states:   make(map[string]WorldState),
		turns:    make(map[string][]Turn),
	}
}

// TouchSession creates the session on first contact and bumps UpdatedAt afterwards.
func (s *MemoryStore) TouchSession(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	session, ok := s.sessions[sessionID]
	if !ok {
		session = Session{ID: sessionID, CreatedAt: now}
	}
	session.UpdatedAt = now
	s.sessions[sessionID] = session
	return nil
}

// GetProfile returns ErrNotFound when the session has no profile yet.
func (s *MemoryStore) GetProfile(_ context.Context, sessionID string) (PlayerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[sessionID]
	if !ok {
		return PlayerProfile{}, ErrNotFound
	}
	return profile, nil
}

// SaveProfile overwrites the profile and lazily creates the world state.
func (s *MemoryStore) SaveProfile(_ context.Context, profile PlayerProfile) error {
	if profile.SessionID == "" {
		return ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[profile.SessionID] = profile
	if _, ok := s.states[profile.SessionID]; !ok {
		s.states[profile.SessionID] = NewWorldState(profile.SessionID)
	}
	return nil
}

// UpdateProfile patches an existing profile.
func (s *MemoryStore) UpdateProfile(_ context.Context, sessionID string, patch ProfilePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.profiles[sessionID] = patch.Apply(profile)
	return nil
}

// GetWorldState returns ErrNotFound when no state was created yet.
func (s *MemoryStore) GetWorldState(_ context.Context, sessionID string) (WorldState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[sessionID]
	if !ok {
		return WorldState{}, ErrNotFound
	}
	return state, nil
}

// AppendTurnPair stores the user turn followed by the assistant turn.
func (s *MemoryStore) AppendTurnPair(_ context.Context, sessionID, userContent, assistantContent string) error {
	if sessionID == "" {
		return ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, turn := range []Turn{
		{Role: RoleUser, Content: userContent},
		{Role: RoleAssistant, Content: assistantContent},
	} {
		s.nextID++
		turn.ID = s.nextID
		turn.SessionID = sessionID
		turn.CreatedAt = now
		s.turns[sessionID] = append(s.turns[sessionID], turn)
	}
	return nil
}

// RecentTurns returns up to limit of the newest turns, oldest first.
func (s *MemoryStore) RecentTurns(_ context.Context, sessionID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[sessionID]
	start := 0
	if limit >= 0 && len(turns) > limit {
		start = len(turns) - limit
	}

	copied := make([]Turn, len(turns)-start)
	copy(copied, turns[start:])
	return copied, nil
}

// Stats counts stored records.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalSessions: len(s.sessions),
		TotalPlayers:  len(s.profiles),
	}
	for _, turns := range s.turns {
		stats.TotalTurns += len(turns)
	}
	cutoff := s.now().Add(-24 * time.Hour)
	for _, session := range s.sessions {
		if session.UpdatedAt.After(cutoff) {
			stats.RecentSessions24h++
		}
	}
	return stats, nil
}

// ListSessions returns sessions with a named player, most recently active first.
func (s *MemoryStore) ListSessions(_ context.Context, limit int) ([]SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]SessionSummary, 0, len(s.profiles))
	for id, session := range s.sessions {
		profile, ok := s.profiles[id]
		if !ok || profile.Name == "" {
			continue
		}
		summaries = append(summaries, SessionSummary{
			SessionID:   id,
			CreatedAt:   session.CreatedAt,
			UpdatedAt:   session.UpdatedAt,
			PlayerName:  profile.Name,
			PlayerClass: profile.Class,
			PlayerGoal:  profile.Goal,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].SessionID < summaries[j].SessionID
		}
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// ResetSession wipes turns and world state but keeps the profile.
func (s *MemoryStore) ResetSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.turns, sessionID)
	delete(s.states, sessionID)
	if session, ok := s.sessions[sessionID]; ok {
		session.UpdatedAt = s.now()
		s.sessions[sessionID] = session
	}
	return nil
}

// DeleteSession removes every record of one session.
func (s *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.turns, sessionID)
	delete(s.states, sessionID)
	delete(s.profiles, sessionID)
	delete(s.sessions, sessionID)
	return nil
}

// DeleteAllSessions purges the store.
func (s *MemoryStore) DeleteAllSessions(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]Session)
	s.profiles = make(map[string]PlayerProfile)
	s.states = make(map[string]WorldState)
	s.turns = make(map[string][]Turn)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
