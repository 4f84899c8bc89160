// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/bopserver/logger"
	"github.com/wfunc/bopserver/protocol"
)

// Recipient is anything a push can be queued on. Send must not block on network I/O.
type Recipient interface {
	Send(msg protocol.Message) error
}

// Broadcaster fans messages out to a room's connections. A failed send to one
// recipient is logged and counted, never returned, and never stops delivery to the rest.
type Broadcaster struct {
	onFailure func()
}

// NewBroadcaster returns a Broadcaster; onFailure, if non-nil, is called once per failed send.
func NewBroadcaster(onFailure func()) *Broadcaster {
	return &Broadcaster{onFailure: onFailure}
}

// ToOne sends msg to a single recipient and reports whether it was queued.
func (b *Broadcaster) ToOne(id string, r Recipient, msg protocol.Message) bool {
	if r == nil {
		return false
	}
	if err := r.Send(msg); err != nil {
		logger.Log.Debugw("send failed", "player", id, "type", msg.Type, "error", err)
		if b.onFailure != nil {
			b.onFailure()
		}
		return false
	}
	return true
}

// ToAll sends the same msg to every recipient and returns how many accepted it.
func (b *Broadcaster) ToAll(recipients map[string]Recipient, msg protocol.Message) int {
	delivered := 0
	for id, r := range recipients {
		if b.ToOne(id, r, msg) {
			delivered++
		}
	}
	return delivered
}

// Tailored builds a separate message for each recipient id.
func (b *Broadcaster) Tailored(recipients map[string]Recipient, build func(id string) protocol.Message) int {
	delivered := 0
	for id, r := range recipients {
		if b.ToOne(id, r, build(id)) {
			delivered++
		}
	}
	return delivered
}
