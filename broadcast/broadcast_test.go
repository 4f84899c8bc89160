package broadcast

import (
	"errors"
	"testing"

	"github.com/wfunc/bopserver/protocol"
)

// MockRecipient records what it was sent and optionally fails every send.
type MockRecipient struct {
	fail bool
	got  []protocol.Message
}

func (m *MockRecipient) Send(msg protocol.Message) error {
	if m.fail {
		return errors.New("closed")
	}
	m.got = append(m.got, msg)
	return nil
}

func TestBroadcaster_ToAll_IsolatesFailures(t *testing.T) {
	failures := 0
	b := NewBroadcaster(func() { failures++ })

	good1, bad, good2 := &MockRecipient{}, &MockRecipient{fail: true}, &MockRecipient{}
	recipients := map[string]Recipient{"a": good1, "b": bad, "c": good2}

	delivered := b.ToAll(recipients, protocol.Message{Type: protocol.TypeDeckReshuffled})

	if delivered != 2 {
		t.Errorf("Expected 2 deliveries, got %d", delivered)
	}
	if failures != 1 {
		t.Errorf("Expected 1 failure, got %d", failures)
	}
	if len(good1.got) != 1 || len(good2.got) != 1 {
		t.Error("Healthy recipients should each get the message")
	}
}

func TestBroadcaster_Tailored(t *testing.T) {
	b := NewBroadcaster(nil)
	a, c := &MockRecipient{}, &MockRecipient{}

	b.Tailored(map[string]Recipient{"a": a, "c": c}, func(id string) protocol.Message {
		return protocol.Message{Type: protocol.TypeTick, Payload: id}
	})

	if a.got[0].Payload != "a" || c.got[0].Payload != "c" {
		t.Errorf("Each recipient should get its own payload, got %v and %v", a.got[0].Payload, c.got[0].Payload)
	}
}

func TestBroadcaster_ToOneNil(t *testing.T) {
	b := NewBroadcaster(func() { t.Error("a missing recipient is not a send failure") })
	if b.ToOne("ghost", nil, protocol.Message{Type: protocol.TypeSignal}) {
		t.Error("ToOne to a nil recipient should report false")
	}
}
