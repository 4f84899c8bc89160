package game

import (
	"github.com/wfunc/bopserver/deck"
)

// BopperAssignment selects how boppers are chosen for a turn.
type BopperAssignment string

const (
	AssignRotate BopperAssignment = "rotate"
	AssignManual BopperAssignment = "manual"
)

// Settings are the host-editable rules of a room.
type Settings struct {
	TimerSec         int              `json:"timerSec" mapstructure:"timer_sec"`
	Rounds           int              `json:"rounds" mapstructure:"rounds"`
	PointsEasy       int              `json:"pointsEasy" mapstructure:"points_easy"`
	PointsHard       int              `json:"pointsHard" mapstructure:"points_hard"`
	BopPenalty       int              `json:"bopPenalty" mapstructure:"bop_penalty"`
	BopperCount      int              `json:"bopperCount" mapstructure:"bopper_count"`
	BopperAssignment BopperAssignment `json:"bopperAssignment" mapstructure:"bopper_assignment"`
	EnabledPacks     []string         `json:"enabledPacks" mapstructure:"enabled_packs"`
}

// DefaultSettings are the house rules: 90 second turns, three rounds, 1/3 points,
// one rotating bopper, every pack.
func DefaultSettings(catalog *deck.Catalog) Settings {
	return Settings{
		TimerSec:         90,
		Rounds:           3,
		PointsEasy:       1,
		PointsHard:       3,
		BopPenalty:       1,
		BopperCount:      1,
		BopperAssignment: AssignRotate,
		EnabledPacks:     catalog.IDs(),
	}
}

// Validate checks the settings are playable and puts the pack list in canonical order.
func (s *Settings) Validate(catalog *deck.Catalog) error {
	switch {
	case s.TimerSec < 1:
		return Validationf("Timer must be at least 1 second")
	case s.Rounds < 1:
		return Validationf("At least one round is required")
	case s.PointsEasy < 0 || s.PointsHard < 0:
		return Validationf("Points cannot be negative")
	case s.BopPenalty < 0:
		return Validationf("Bop penalty cannot be negative")
	case s.BopperCount < 0:
		return Validationf("Bopper count cannot be negative")
	}
	if s.BopperAssignment != AssignRotate && s.BopperAssignment != AssignManual {
		return Validationf("Unknown bopper assignment %q", s.BopperAssignment)
	}
	for _, id := range s.EnabledPacks {
		if !catalog.Has(id) {
			return Validationf("Unknown card pack %q", id)
		}
	}
	s.EnabledPacks = catalog.Canonical(s.EnabledPacks)
	return nil
}

func (s Settings) clone() Settings {
	s.EnabledPacks = append([]string(nil), s.EnabledPacks...)
	return s
}
