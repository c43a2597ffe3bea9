package game

import "time"

// Session correlates a player's profile, world state and turn history.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SessionSummary is a row of the admin session list.
type SessionSummary struct {
	SessionID   string    `json:"sessionId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	PlayerName  string    `json:"playerName"`
	PlayerClass string    `json:"playerClass"`
	PlayerGoal  string    `json:"playerGoal"`
}

// SessionDetail bundles everything stored for one session.
type SessionDetail struct {
	SessionID string         `json:"sessionId"`
	Player    *PlayerProfile `json:"player"`
	State     *WorldState    `json:"state"`
	Turns     []Turn         `json:"turns"`
}

// Stats feeds the admin dashboard header.
type Stats struct {
	TotalSessions     int `json:"totalSessions"`
	TotalPlayers      int `json:"totalPlayers"`
	TotalTurns        int `json:"totalTurns"`
	RecentSessions24h int `json:"recentSessions24h"`
}
