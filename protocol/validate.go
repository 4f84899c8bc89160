package protocol

import (
	"bytes"
	"strings"

	"github.com/wfunc/bopserver/game"
)

const maxPlayerIDLength = 64

func validPlayerID(id string) bool {
	return len(id) <= maxPlayerIDLength && strings.TrimSpace(id) == id
}

func (c *CreateRoom) validate() error {
	if !validPlayerID(c.PlayerID) {
		return game.Validationf("Invalid player id")
	}
	c.PlayerName = NormalizeName(c.PlayerName)
	return nil
}

func (c *JoinRoom) validate() error {
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	if c.Code == "" {
		return game.Validationf("Room code is required")
	}
	if !validPlayerID(c.PlayerID) {
		return game.Validationf("Invalid player id")
	}
	c.PlayerName = NormalizeName(c.PlayerName)
	return nil
}

func (c *UpdateSettings) validate() error {
	if c.Settings == nil {
		return game.Validationf("Settings are required")
	}
	return nil
}

func (c *JoinTeam) validate() error {
	if c.TeamIndex == nil || (*c.TeamIndex != 0 && *c.TeamIndex != 1) {
		return game.Validationf("Team must be 0 or 1")
	}
	if c.PlayerName != "" {
		c.PlayerName = NormalizeName(c.PlayerName)
	}
	return nil
}

func (c *GotIt) validate() error {
	if c.Difficulty != game.OutcomeEasy && c.Difficulty != game.OutcomeHard {
		return game.Validationf("Difficulty must be easy or hard")
	}
	return nil
}

func (c *Signal) validate() error {
	if c.TargetID == "" {
		return game.Validationf("Signal target is required")
	}
	if len(c.Signal) == 0 || bytes.Equal(c.Signal, []byte("null")) {
		return game.Validationf("Signal payload is required")
	}
	return nil
}

func (c *VoiceStatus) validate() error {
	if !c.Status.Valid() {
		return game.Validationf("Unknown voice status %q", c.Status)
	}
	return nil
}

func (*LeaveRoom) validate() error   { return nil }
func (*ToggleVoice) validate() error { return nil }
func (*StartGame) validate() error   { return nil }
func (*Skip) validate() error        { return nil }
func (*Bop) validate() error         { return nil }
func (*EndTurn) validate() error     { return nil }
func (*NextTurn) validate() error    { return nil }

// NormalizeName trims a display name and caps its length; an empty name becomes "Player".
func NormalizeName(name string) string {
	runes := []rune(strings.TrimSpace(name))
	if len(runes) > MaxNameLength {
		runes = runes[:MaxNameLength]
	}
	if len(runes) == 0 {
		return "Player"
	}
	return string(runes)
}
