package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/bopserver/deck"
	"github.com/wfunc/bopserver/game"
)

func TestDecode_Commands(t *testing.T) {
	cases := []struct {
		frame string
		want  Command
	}{
		{`{"type":"create_room","payload":{"playerName":" Ann ","voiceEnabled":true}}`,
			&CreateRoom{PlayerName: "Ann", VoiceEnabled: true}},
		{`{"type":"join_room","payload":{"code":" abcd","playerName":"Bo","playerId":"p1"}}`,
			&JoinRoom{Code: "ABCD", PlayerName: "Bo", PlayerID: "p1"}},
		{`{"type":"join_team","payload":{"teamIndex":1}}`,
			&JoinTeam{TeamIndex: ptr(1)}},
		{`{"type":"got_it","payload":{"difficulty":"hard"}}`,
			&GotIt{Difficulty: game.OutcomeHard}},
		{`{"type":"skip"}`, &Skip{}},
		{`{"type":"bop","payload":null}`, &Bop{}},
		{`{"type":"next_turn","payload":{}}`, &NextTurn{}},
		{`{"type":"toggle_voice","payload":{"enabled":true}}`, &ToggleVoice{Enabled: true}},
		{`{"type":"voice_status","payload":{"status":"connected"}}`, &VoiceStatus{Status: PeerConnected}},
		{`{"type":"signal","payload":{"targetId":"b","signal":{"type":"offer","sdp":"x"}}}`,
			&Signal{TargetID: "b", Signal: json.RawMessage(`{"type":"offer","sdp":"x"}`)}},
	}
	for _, tc := range cases {
		t.Run(string(tc.want.Kind()), func(t *testing.T) {
			cmd, err := Decode([]byte(tc.frame))
			require.NoError(t, err)
			assert.Equal(t, tc.want, cmd)
		})
	}
}

func TestDecode_Rejections(t *testing.T) {
	cases := map[string]string{
		"not json":         `{"type":`,
		"missing type":     `{"payload":{}}`,
		"unknown type":     `{"type":"launch_rockets"}`,
		"wrong field type": `{"type":"join_team","payload":{"teamIndex":"one"}}`,
		"team out of range": `{"type":"join_team","payload":{"teamIndex":2}}`,
		"team missing":     `{"type":"join_team","payload":{}}`,
		"bad difficulty":   `{"type":"got_it","payload":{"difficulty":"medium"}}`,
		"signal no target": `{"type":"signal","payload":{"signal":{}}}`,
		"signal no body":   `{"type":"signal","payload":{"targetId":"b"}}`,
		"no settings":      `{"type":"update_settings","payload":{}}`,
		"empty code":       `{"type":"join_room","payload":{"code":"  "}}`,
		"bad status":       `{"type":"voice_status","payload":{"status":"happy"}}`,
		"padded player id": `{"type":"create_room","payload":{"playerId":" x "}}`,
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			cmd, err := Decode([]byte(frame))
			assert.Nil(t, cmd)
			require.Error(t, err)
			assert.Equal(t, game.KindValidation, game.KindOf(err))
		})
	}
}

func TestDecode_UnknownTypeMessage(t *testing.T) {
	_, err := Decode([]byte(`{"type":"dance"}`))
	assert.EqualError(t, err, "Unknown message type: dance")
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Player", NormalizeName("   "))
	assert.Equal(t, "Zoë", NormalizeName(" Zoë "))
	assert.Equal(t, MaxNameLength, len([]rune(NormalizeName(strings.Repeat("é", 100)))))
}

func TestRoomState_JSONShape(t *testing.T) {
	state := RoomState{
		Code: "ABCD",
		Host: "a",
		Snapshot: game.Snapshot{
			Phase: "playing",
			Turn:  &game.Turn{CurrentCard: deck.Redacted, Boppers: []string{}, Cards: []game.TurnCard{}},
		},
		Connected:   []string{"a"},
		VoiceStatus: map[string]PeerStatus{"a": PeerConnecting},
	}

	data, err := json.Marshal(Message{Type: TypeRoomState, Payload: state})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	payload := decoded["payload"].(map[string]any)
	for _, key := range []string{"code", "host", "settings", "phase", "teams", "deckIndex", "round", "turn", "voiceEnabled", "connected", "voiceStatus"} {
		assert.Contains(t, payload, key)
	}
	assert.NotContains(t, payload, "deck")
	turn := payload["turn"].(map[string]any)
	assert.Equal(t, map[string]any{"easy": "???", "hard": "???"}, turn["currentCard"])
}

func TestNewError(t *testing.T) {
	msg := NewError(game.ErrRoomFull)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, ErrorPayload{Message: "Room is full", Code: "capacity"}, msg.Payload)
}

func ptr[T any](v T) *T { return &v }
