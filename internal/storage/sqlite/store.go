// Package sqlite provides the SQLite-backed game store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zhouzirui/lowerlands/backend/internal/model/game"
	"github.com/zhouzirui/lowerlands/backend/internal/storage/sqlite/migrations"
	"github.com/zhouzirui/lowerlands/backend/internal/storage/sqlitemigrate"
)

const timeFormat = time.RFC3339Nano

// Store implements game.Store on a SQLite database file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.Apply(ctx, db, migrations.FS, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// TouchSession inserts the session or bumps updated_at.
func (s *Store) TouchSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return game.ErrSessionRequired
	}

	now := s.timestamp()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions (id, created_at, updated_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		sessionID, now, now,
	)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// GetProfile loads the player profile of a session.
func (s *Store) GetProfile(ctx context.Context, sessionID string) (game.PlayerProfile, error) {
	profile := game.PlayerProfile{SessionID: sessionID}
	err := s.db.QueryRowContext(ctx, `
SELECT name, class, background, goal, alignment FROM players WHERE session_id = ?`,
		sessionID,
	).Scan(&profile.Name, &profile.Class, &profile.Background, &profile.Goal, &profile.Alignment)
	if errors.Is(err, sql.ErrNoRows) {
		return game.PlayerProfile{}, game.ErrNotFound
	}
	if err != nil {
		return game.PlayerProfile{}, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// SaveProfile upserts the profile and creates the world state if absent,
// in one transaction.
func (s *Store) SaveProfile(ctx context.Context, profile game.PlayerProfile) error {
	if strings.TrimSpace(profile.SessionID) == "" {
		return game.ErrSessionRequired
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.timestamp()
		if _, err := tx.ExecContext(ctx, `
INSERT INTO players (session_id, name, class, background, goal, alignment, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
    name = excluded.name,
    class = excluded.class,
    background = excluded.background,
    goal = excluded.goal,
    alignment = excluded.alignment,
    updated_at = excluded.updated_at`,
			profile.SessionID, profile.Name, profile.Class, profile.Background, profile.Goal, profile.Alignment, now, now,
		); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}

		state := game.NewWorldState(profile.SessionID)
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO state (session_id, location, health, mana, gold, inventory)
VALUES (?, ?, ?, ?, ?, ?)`,
			state.SessionID, state.Location, state.Health, state.Mana, state.Gold, state.Inventory,
		); err != nil {
			return fmt.Errorf("create world state: %w", err)
		}
		return nil
	})
}

// UpdateProfile applies a partial update to an existing profile.
func (s *Store) UpdateProfile(ctx context.Context, sessionID string, patch game.ProfilePatch) error {
	var (
		fields []string
		args   []any
	)
	add := func(column string, value *string) {
		if value != nil {
			fields = append(fields, column+" = ?")
			args = append(args, *value)
		}
	}
	add("name", patch.Name)
	add("class", patch.Class)
	add("background", patch.Background)
	add("goal", patch.Goal)
	add("alignment", patch.Alignment)
	if len(fields) == 0 {
		return nil
	}

	fields = append(fields, "updated_at = ?")
	args = append(args, s.timestamp(), sessionID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE players SET `+strings.Join(fields, ", ")+` WHERE session_id = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n == 0 {
		return game.ErrNotFound
	}
	return nil
}

// GetWorldState loads the world state of a session.
func (s *Store) GetWorldState(ctx context.Context, sessionID string) (game.WorldState, error) {
	state := game.WorldState{SessionID: sessionID}
	err := s.db.QueryRowContext(ctx, `
SELECT location, health, mana, gold, inventory FROM state WHERE session_id = ?`,
		sessionID,
	).Scan(&state.Location, &state.Health, &state.Mana, &state.Gold, &state.Inventory)
	if errors.Is(err, sql.ErrNoRows) {
		return game.WorldState{}, game.ErrNotFound
	}
	if err != nil {
		return game.WorldState{}, fmt.Errorf("get world state: %w", err)
	}
	return state, nil
}

// AppendTurnPair inserts the user and assistant turns with one statement so
// the pair is atomic and the user row gets the lower id.
func (s *Store) AppendTurnPair(ctx context.Context, sessionID, userContent, assistantContent string) error {
	if strings.TrimSpace(sessionID) == "" {
		return game.ErrSessionRequired
	}

	now := s.timestamp()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO turns (session_id, role, content, created_at) VALUES (?, ?, ?, ?), (?, ?, ?, ?)`,
		sessionID, string(game.RoleUser), userContent, now,
		sessionID, string(game.RoleAssistant), assistantContent, now,
	)
	if err != nil {
		return fmt.Errorf("append turns: %w", err)
	}
	return nil
}

// RecentTurns returns the newest limit turns in chronological order.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, limit int) ([]game.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, role, content, created_at FROM turns
WHERE session_id = ?
ORDER BY id DESC
LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	turns := make([]game.Turn, 0, max(limit, 0))
	for rows.Next() {
		var (
			turn      game.Turn
			role      string
			createdAt string
		)
		if err := rows.Scan(&turn.ID, &role, &turn.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.SessionID = sessionID
		turn.Role = game.Role(role)
		turn.CreatedAt = parseTime(createdAt)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Stats counts stored records.
func (s *Store) Stats(ctx context.Context) (game.Stats, error) {
	var stats game.Stats
	cutoff := s.now().Add(-24 * time.Hour).Format(timeFormat)
	err := s.db.QueryRowContext(ctx, `
SELECT
    (SELECT COUNT(*) FROM sessions),
    (SELECT COUNT(*) FROM players),
    (SELECT COUNT(*) FROM turns),
    (SELECT COUNT(*) FROM sessions WHERE updated_at >= ?)`,
		cutoff,
	).Scan(&stats.TotalSessions, &stats.TotalPlayers, &stats.TotalTurns, &stats.RecentSessions24h)
	if err != nil {
		return game.Stats{}, fmt.Errorf("load stats: %w", err)
	}
	return stats, nil
}

// ListSessions returns sessions with a named player, most recent first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]game.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT s.id, s.created_at, s.updated_at, p.name, p.class, p.goal
FROM sessions s
JOIN players p ON p.session_id = s.id
WHERE p.name <> ''
ORDER BY s.updated_at DESC, s.id ASC
LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []game.SessionSummary
	for rows.Next() {
		var (
			summary            game.SessionSummary
			createdAt, updated string
		)
		if err := rows.Scan(&summary.SessionID, &createdAt, &updated, &summary.PlayerName, &summary.PlayerClass, &summary.PlayerGoal); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		summary.CreatedAt = parseTime(createdAt)
		summary.UpdatedAt = parseTime(updated)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return summaries, nil
}

// ResetSession wipes turns and world state but keeps the profile.
func (s *Store) ResetSession(ctx context.Context, sessionID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM turns WHERE session_id = ?`,
			`DELETE FROM state WHERE session_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, sessionID); err != nil {
				return fmt.Errorf("reset session: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, s.timestamp(), sessionID); err != nil {
			return fmt.Errorf("reset session: %w", err)
		}
		return nil
	})
}

// DeleteSession removes every record of one session.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM turns WHERE session_id = ?`,
			`DELETE FROM state WHERE session_id = ?`,
			`DELETE FROM players WHERE session_id = ?`,
			`DELETE FROM sessions WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, sessionID); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
		}
		return nil
	})
}

// DeleteAllSessions purges every table.
func (s *Store) DeleteAllSessions(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"turns", "state", "players", "sessions"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("purge %s: %w", table, err)
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) timestamp() string {
	return s.now().Format(timeFormat)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeFormat, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

var _ game.Store = (*Store)(nil)
