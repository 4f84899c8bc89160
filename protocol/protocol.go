package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/wfunc/bopserver/game"
)

// Type names a message kind in either direction.
type Type string

// Client -> server commands.
const (
	TypeCreateRoom     Type = "create_room"
	TypeJoinRoom       Type = "join_room"
	TypeLeaveRoom      Type = "leave_room"
	TypeUpdateSettings Type = "update_settings"
	TypeToggleVoice    Type = "toggle_voice"
	TypeJoinTeam       Type = "join_team"
	TypeStartGame      Type = "start_game"
	TypeGotIt          Type = "got_it"
	TypeSkip           Type = "skip"
	TypeBop            Type = "bop"
	TypeEndTurn        Type = "end_turn"
	TypeNextTurn       Type = "next_turn"
	TypeSignal         Type = "signal"
	TypeVoiceStatus    Type = "voice_status"
)

// Server -> client pushes. TypeSignal is used in both directions.
const (
	TypeWelcome        Type = "welcome"
	TypeRoomState      Type = "room_state"
	TypeTick           Type = "tick"
	TypeDeckReshuffled Type = "deck_reshuffled"
	TypeTurnEnd        Type = "turn_end"
	TypeError          Type = "error"
)

// MaxNameLength bounds display names; longer names are truncated.
const MaxNameLength = 32

// Envelope is the wire shape of every inbound message.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is the wire shape of every outbound message.
type Message struct {
	Type    Type `json:"type"`
	Payload any  `json:"payload,omitempty"`
}

// Command is a decoded and validated inbound message.
type Command interface {
	Kind() Type
}

type CreateRoom struct {
	PlayerName   string         `json:"playerName"`
	PlayerID     string         `json:"playerId,omitempty"`
	Settings     *game.Settings `json:"settings,omitempty"`
	VoiceEnabled bool           `json:"voiceEnabled"`
}

type JoinRoom struct {
	Code       string `json:"code"`
	PlayerName string `json:"playerName"`
	PlayerID   string `json:"playerId,omitempty"`
}

type LeaveRoom struct{}

type UpdateSettings struct {
	Settings *game.Settings `json:"settings"`
}

type ToggleVoice struct {
	Enabled bool `json:"enabled"`
}

type JoinTeam struct {
	TeamIndex  *int   `json:"teamIndex"`
	PlayerName string `json:"playerName,omitempty"`
}

type StartGame struct{}

type GotIt struct {
	Difficulty game.Outcome `json:"difficulty"`
}

type Skip struct{}

type Bop struct{}

type EndTurn struct{}

type NextTurn struct{}

// Signal carries an opaque negotiation payload for TargetID.
type Signal struct {
	TargetID string          `json:"targetId"`
	Signal   json.RawMessage `json:"signal"`
}

type VoiceStatus struct {
	Status PeerStatus `json:"status"`
}

func (CreateRoom) Kind() Type     { return TypeCreateRoom }
func (JoinRoom) Kind() Type       { return TypeJoinRoom }
func (LeaveRoom) Kind() Type      { return TypeLeaveRoom }
func (UpdateSettings) Kind() Type { return TypeUpdateSettings }
func (ToggleVoice) Kind() Type    { return TypeToggleVoice }
func (JoinTeam) Kind() Type       { return TypeJoinTeam }
func (StartGame) Kind() Type      { return TypeStartGame }
func (GotIt) Kind() Type          { return TypeGotIt }
func (Skip) Kind() Type           { return TypeSkip }
func (Bop) Kind() Type            { return TypeBop }
func (EndTurn) Kind() Type        { return TypeEndTurn }
func (NextTurn) Kind() Type       { return TypeNextTurn }
func (Signal) Kind() Type         { return TypeSignal }
func (VoiceStatus) Kind() Type    { return TypeVoiceStatus }

// PeerStatus is a player's self-reported voice-connection state.
type PeerStatus string

const (
	PeerConnecting PeerStatus = "connecting"
	PeerConnected  PeerStatus = "connected"
	PeerFailed     PeerStatus = "failed"
)

func (s PeerStatus) Valid() bool {
	return s == PeerConnecting || s == PeerConnected || s == PeerFailed
}

// Welcome tells a client which player id and room it is bound to.
type Welcome struct {
	PlayerID string `json:"playerId"`
	Code     string `json:"code"`
}

// RoomState is the full room snapshot pushed after every successful mutation.
// Turn.CurrentCard is the only field that differs between recipients.
type RoomState struct {
	Code string `json:"code"`
	Host string `json:"host"`
	game.Snapshot
	VoiceEnabled bool                  `json:"voiceEnabled"`
	Connected    []string              `json:"connected"`
	VoiceStatus  map[string]PeerStatus `json:"voiceStatus"`
}

type Tick struct {
	TimeRemaining int `json:"timeRemaining"`
}

type TurnEnd struct {
	TurnCards []game.TurnCard `json:"turnCards"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// SignalPush is what the target of a Signal receives.
type SignalPush struct {
	FromID string          `json:"fromId"`
	Signal json.RawMessage `json:"signal"`
}

// NewError renders err for the issuing client. Kinded game errors keep their kind
// as the code; anything else is reported as internal.
func NewError(err error) Message {
	return Message{Type: TypeError, Payload: ErrorPayload{Message: err.Error(), Code: game.KindOf(err).String()}}
}

// Decode parses and validates one inbound frame. Every failure is a validation error
// suitable for sending straight back to the issuer.
func Decode(data []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, game.Validationf("Invalid JSON")
	}
	if env.Type == "" {
		return nil, game.Validationf("Missing message type")
	}

	var cmd interface {
		Command
		validate() error
	}
	switch env.Type {
	case TypeCreateRoom:
		cmd = &CreateRoom{}
	case TypeJoinRoom:
		cmd = &JoinRoom{}
	case TypeLeaveRoom:
		cmd = &LeaveRoom{}
	case TypeUpdateSettings:
		cmd = &UpdateSettings{}
	case TypeToggleVoice:
		cmd = &ToggleVoice{}
	case TypeJoinTeam:
		cmd = &JoinTeam{}
	case TypeStartGame:
		cmd = &StartGame{}
	case TypeGotIt:
		cmd = &GotIt{}
	case TypeSkip:
		cmd = &Skip{}
	case TypeBop:
		cmd = &Bop{}
	case TypeEndTurn:
		cmd = &EndTurn{}
	case TypeNextTurn:
		cmd = &NextTurn{}
	case TypeSignal:
		cmd = &Signal{}
	case TypeVoiceStatus:
		cmd = &VoiceStatus{}
	default:
		return nil, game.Validationf("Unknown message type: %s", env.Type)
	}

	if len(env.Payload) > 0 && !bytes.Equal(env.Payload, []byte("null")) {
		if err := json.Unmarshal(env.Payload, cmd); err != nil {
			return nil, game.Validationf("Malformed %s payload", env.Type)
		}
	}
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}
