package game

import (
	"encoding/json"
	"fmt"
	"strings"
)

// World state creation defaults. These are storage defaults; the turn
// context renders its own display defaults for missing fields.
const (
	DefaultLocation = "bleak_marches"
	DefaultHealth   = 100
	DefaultMana     = 50
	DefaultGold     = 0
	StartingItem    = "Rusty Dagger"
)

// PlayerProfile is the character sheet a player fills in once per session.
type PlayerProfile struct {
	SessionID  string `json:"-"`
	Name       string `json:"name"`
	Class      string `json:"class"`
	Background string `json:"background"`
	Goal       string `json:"goal"`
	Alignment  string `json:"alignment"`
}

// ProfilePatch carries a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	Name       *string
	Class      *string
	Background *string
	Goal       *string
	Alignment  *string
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.Name == nil && p.Class == nil && p.Background == nil && p.Goal == nil && p.Alignment == nil
}

// Apply returns a copy of profile with the patch applied.
func (p ProfilePatch) Apply(profile PlayerProfile) PlayerProfile {
	if p.Name != nil {
		profile.Name = *p.Name
	}
	if p.Class != nil {
		profile.Class = *p.Class
	}
	if p.Background != nil {
		profile.Background = *p.Background
	}
	if p.Goal != nil {
		profile.Goal = *p.Goal
	}
	if p.Alignment != nil {
		profile.Alignment = *p.Alignment
	}
	return profile
}

// WorldState tracks where the player is and what they carry.
// Inventory is stored as a JSON array of item names.
type WorldState struct {
	SessionID string `json:"-"`
	Location  string `json:"location"`
	Health    int    `json:"health"`
	Mana      int    `json:"mana"`
	Gold      int    `json:"gold"`
	Inventory string `json:"inventory"`
}

// NewWorldState returns the state created alongside the first profile save.
func NewWorldState(sessionID string) WorldState {
	inventory, _ := EncodeInventory([]string{StartingItem})
	return WorldState{
		SessionID: sessionID,
		Location:  DefaultLocation,
		Health:    DefaultHealth,
		Mana:      DefaultMana,
		Gold:      DefaultGold,
		Inventory: inventory,
	}
}

// Items decodes the serialized inventory. Legacy rows holding plain text
// are returned as a single item.
func (s WorldState) Items() []string {
	raw := strings.TrimSpace(s.Inventory)
	if raw == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return []string{raw}
	}
	return items
}

// EncodeInventory serializes an ordered list of item names.
func EncodeInventory(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode inventory: %w", err)
	}
	return string(data), nil
}
