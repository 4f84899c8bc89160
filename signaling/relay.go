// Package signaling carries voice-chat negotiation. Relay and Board run inside the
// server's rooms; Mesh is the client-side coordinator a voice client embeds to build
// its peer mesh over the relay.
package signaling

import (
	"maps"

	"github.com/wfunc/bopserver/broadcast"
	"github.com/wfunc/bopserver/protocol"
)

// Board is a room's soft record of each player's self-reported voice status.
// Nothing is derived from it server-side; it only feeds room_state. Not safe for
// concurrent use.
type Board struct {
	statuses map[string]protocol.PeerStatus
}

func NewBoard() *Board {
	return &Board{statuses: make(map[string]protocol.PeerStatus)}
}

func (b *Board) Set(playerID string, status protocol.PeerStatus) {
	b.statuses[playerID] = status
}

func (b *Board) Remove(playerID string) {
	delete(b.statuses, playerID)
}

// Reset forgets every status, used when voice is switched off.
func (b *Board) Reset() {
	clear(b.statuses)
}

func (b *Board) Snapshot() map[string]protocol.PeerStatus {
	return maps.Clone(b.statuses)
}

// Relay forwards sig verbatim to its target's live connection. A target that is not
// connected (or is the sender) is silently dropped; there is no queue and no retry.
func Relay(bc *broadcast.Broadcaster, conns map[string]broadcast.Recipient, fromID string, sig *protocol.Signal) bool {
	if sig.TargetID == fromID {
		return false
	}
	target, ok := conns[sig.TargetID]
	if !ok {
		return false
	}
	return bc.ToOne(sig.TargetID, target, protocol.Message{
		Type:    protocol.TypeSignal,
		Payload: protocol.SignalPush{FromID: fromID, Signal: sig.Signal},
	})
}
