package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/bopserver/broadcast"
	"github.com/wfunc/bopserver/protocol"
)

type recorder struct{ got []protocol.Message }

func (r *recorder) Send(msg protocol.Message) error {
	r.got = append(r.got, msg)
	return nil
}

func TestRelay_ForwardsVerbatim(t *testing.T) {
	bc := broadcast.NewBroadcaster(nil)
	a, b := &recorder{}, &recorder{}
	conns := map[string]broadcast.Recipient{"a": a, "b": b}
	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

	ok := Relay(bc, conns, "a", &protocol.Signal{TargetID: "b", Signal: payload})

	require.True(t, ok)
	require.Len(t, b.got, 1)
	assert.Equal(t, protocol.TypeSignal, b.got[0].Type)
	assert.Equal(t, protocol.SignalPush{FromID: "a", Signal: payload}, b.got[0].Payload)
	assert.Empty(t, a.got)
}

func TestRelay_DropsUnknownTargetAndSelf(t *testing.T) {
	bc := broadcast.NewBroadcaster(nil)
	a := &recorder{}
	conns := map[string]broadcast.Recipient{"a": a}

	assert.False(t, Relay(bc, conns, "a", &protocol.Signal{TargetID: "gone", Signal: json.RawMessage(`{}`)}))
	assert.False(t, Relay(bc, conns, "a", &protocol.Signal{TargetID: "a", Signal: json.RawMessage(`{}`)}))
	assert.Empty(t, a.got)
}

func TestBoard(t *testing.T) {
	b := NewBoard()
	b.Set("a", protocol.PeerConnecting)
	b.Set("b", protocol.PeerConnected)
	b.Set("a", protocol.PeerFailed)

	snap := b.Snapshot()
	assert.Equal(t, map[string]protocol.PeerStatus{"a": protocol.PeerFailed, "b": protocol.PeerConnected}, snap)

	snap["c"] = protocol.PeerConnected
	b.Remove("b")
	assert.Equal(t, map[string]protocol.PeerStatus{"a": protocol.PeerFailed}, b.Snapshot())

	b.Reset()
	assert.Empty(t, b.Snapshot())
}
