package world

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed world.yaml
var defaultSetting []byte

// Region is a named area of the world.
type Region struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Factions    []string `yaml:"factions" json:"factions,omitempty"`
	Encounters  []string `yaml:"encounters" json:"encounters,omitempty"`
	Treasures   []string `yaml:"treasures" json:"treasures,omitempty"`
}

// Magic lists the rules and schools of magic.
type Magic struct {
	Rules   []string `yaml:"rules" json:"rules"`
	Schools []string `yaml:"schools" json:"schools"`
}

// Setting describes the world the game master narrates.
type Setting struct {
	Name           string   `yaml:"name" json:"name"`
	Tone           string   `yaml:"tone" json:"tone"`
	StartingRegion string   `yaml:"startingRegion" json:"startingRegion"`
	Style          string   `yaml:"style" json:"-"`
	Regions        []Region `yaml:"regions" json:"regions"`
	Magic          Magic    `yaml:"magic" json:"magic"`
	Constraints    []string `yaml:"constraints" json:"constraints"`
}

// Default returns the embedded Lower Lands setting.
func Default() Setting {
	setting, err := Parse(defaultSetting)
	if err != nil {
		panic(fmt.Sprintf("world: embedded setting is invalid: %v", err))
	}
	return setting
}

// Parse decodes a YAML world setting.
func Parse(data []byte) (Setting, error) {
	var setting Setting
	if err := yaml.Unmarshal(data, &setting); err != nil {
		return Setting{}, fmt.Errorf("decode world setting: %w", err)
	}
	if strings.TrimSpace(setting.Style) == "" {
		return Setting{}, fmt.Errorf("world setting %q has no style directive", setting.Name)
	}
	return setting, nil
}

// StyleDirective is the first system message of every turn prompt.
func (s Setting) StyleDirective() string {
	return strings.TrimSpace(s.Style)
}

// Region looks up a region by identifier.
func (s Setting) Region(id string) (Region, bool) {
	for _, region := range s.Regions {
		if region.ID == id {
			return region, true
		}
	}
	return Region{}, false
}

// LocationName resolves a stored location to a display name. Unknown
// locations are returned as stored.
func (s Setting) LocationName(location string) string {
	if region, ok := s.Region(location); ok {
		return region.Name
	}
	return location
}
