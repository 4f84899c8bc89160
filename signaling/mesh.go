package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/wfunc/bopserver/logger"
	"github.com/wfunc/bopserver/protocol"
)

// This file is the client side of signaling: nothing in the server constructs a Mesh.

// Negotiation kinds carried inside a relayed signal.
const (
	NegotiationOffer     = "offer"
	NegotiationAnswer    = "answer"
	NegotiationCandidate = "ice-candidate"
)

// Negotiation is the payload two peers exchange through the relay. The server never
// looks inside it.
type Negotiation struct {
	Type      string          `json:"type"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// ConnState is what a transport reports about one peer connection.
type ConnState int

const (
	ConnConnecting ConnState = iota
	ConnConnected
	ConnDisconnected
	ConnFailed
	ConnClosed
)

// PeerHandlers are the callbacks a transport invokes for one connection.
type PeerHandlers struct {
	OnCandidate func(candidate json.RawMessage)
	OnState     func(state ConnState)
}

// PeerConnection is one direct media link to a remote player.
type PeerConnection interface {
	CreateOffer() (sdp string, err error)
	// AcceptOffer applies a remote offer and returns the local answer.
	AcceptOffer(offerSDP string) (answerSDP string, err error)
	AcceptAnswer(answerSDP string) error
	AddCandidate(candidate json.RawMessage) error
	Close() error
}

// PeerTransport is the platform media stack plus the signaling channel. Keeping it
// behind an interface lets the mesh policy run without a network.
type PeerTransport interface {
	CreateConnection(peerID string, handlers PeerHandlers) (PeerConnection, error)
	AddLocalTrack(pc PeerConnection) error
	OnRemoteTrack(handler func(peerID string, track any))
	SendNegotiation(targetID string, n Negotiation) error
	OnNegotiation(handler func(fromID string, n Negotiation))
}

// ShouldInitiate is the mesh tie-break: of any two peers only the one with the
// lexicographically smaller id sends the offer.
func ShouldInitiate(self, other string) bool {
	return self < other
}

var ErrMeshClosed = errors.New("signaling: mesh closed")

type peer struct {
	conn   PeerConnection
	status protocol.PeerStatus
}

// Mesh coordinates one player's connections to every other player in the room.
type Mesh struct {
	self      string
	transport PeerTransport

	mutex    sync.Mutex
	peers    map[string]*peer
	closed   bool
	onStatus func(statuses map[string]protocol.PeerStatus)
	onTrack  func(peerID string, track any)
}

// NewMesh binds the mesh to transport's negotiation and track callbacks.
func NewMesh(self string, transport PeerTransport) *Mesh {
	m := &Mesh{
		self:      self,
		transport: transport,
		peers:     make(map[string]*peer),
	}
	transport.OnNegotiation(m.handleNegotiation)
	transport.OnRemoteTrack(func(peerID string, track any) {
		m.mutex.Lock()
		cb := m.onTrack
		m.mutex.Unlock()
		if cb != nil {
			cb(peerID, track)
		}
	})
	return m
}

// OnStatusChange registers a callback receiving a copy of every peer status after
// each change.
func (m *Mesh) OnStatusChange(cb func(statuses map[string]protocol.PeerStatus)) {
	m.mutex.Lock()
	m.onStatus = cb
	m.mutex.Unlock()
}

// OnRemoteTrack registers where incoming audio is routed.
func (m *Mesh) OnRemoteTrack(cb func(peerID string, track any)) {
	m.mutex.Lock()
	m.onTrack = cb
	m.mutex.Unlock()
}

// Start connects to every player already in the room.
func (m *Mesh) Start(playerIDs []string) error {
	var errs []error
	for _, id := range playerIDs {
		if err := m.AddPeer(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AddPeer offers to id when the tie-break makes us the initiator; otherwise it waits
// for id's offer.
func (m *Mesh) AddPeer(id string) error {
	if id == m.self || !ShouldInitiate(m.self, id) {
		return nil
	}

	m.mutex.Lock()
	if m.closed {
		m.mutex.Unlock()
		return ErrMeshClosed
	}
	if _, exists := m.peers[id]; exists {
		m.mutex.Unlock()
		return nil
	}
	m.mutex.Unlock()

	pc, err := m.connect(id)
	if err != nil {
		return err
	}
	sdp, err := pc.CreateOffer()
	if err != nil {
		m.setStatus(id, protocol.PeerFailed)
		return fmt.Errorf("offer to %s: %w", id, err)
	}
	return m.transport.SendNegotiation(id, Negotiation{Type: NegotiationOffer, SDP: sdp})
}

// connect creates the connection for id, attaches the local track and marks it
// connecting. An existing connection for id is replaced.
func (m *Mesh) connect(id string) (PeerConnection, error) {
	pc, err := m.transport.CreateConnection(id, PeerHandlers{
		OnCandidate: func(candidate json.RawMessage) {
			if err := m.transport.SendNegotiation(id, Negotiation{Type: NegotiationCandidate, Candidate: candidate}); err != nil {
				logger.Log.Debugw("candidate not sent", "peer", id, "error", err)
			}
		},
		OnState: func(state ConnState) { m.handleState(id, state) },
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", id, err)
	}
	if err := m.transport.AddLocalTrack(pc); err != nil {
		pc.Close()
		return nil, fmt.Errorf("attach local track for %s: %w", id, err)
	}

	m.mutex.Lock()
	if m.closed {
		m.mutex.Unlock()
		pc.Close()
		return nil, ErrMeshClosed
	}
	if old, ok := m.peers[id]; ok {
		old.conn.Close()
	}
	m.peers[id] = &peer{conn: pc, status: protocol.PeerConnecting}
	m.mutex.Unlock()

	m.notify()
	return pc, nil
}

func (m *Mesh) handleNegotiation(fromID string, n Negotiation) {
	switch n.Type {
	case NegotiationOffer:
		if ShouldInitiate(m.self, fromID) {
			// We are the initiator for this pair; an offer from the other side is glare.
			logger.Log.Debugw("ignoring offer from responder", "peer", fromID)
			return
		}
		pc, err := m.connect(fromID)
		if err != nil {
			logger.Log.Warnw("cannot answer offer", "peer", fromID, "error", err)
			return
		}
		answer, err := pc.AcceptOffer(n.SDP)
		if err != nil {
			m.setStatus(fromID, protocol.PeerFailed)
			return
		}
		if err := m.transport.SendNegotiation(fromID, Negotiation{Type: NegotiationAnswer, SDP: answer}); err != nil {
			logger.Log.Debugw("answer not sent", "peer", fromID, "error", err)
		}

	case NegotiationAnswer:
		if pc := m.conn(fromID); pc != nil {
			if err := pc.AcceptAnswer(n.SDP); err != nil {
				m.setStatus(fromID, protocol.PeerFailed)
			}
		}

	case NegotiationCandidate:
		if pc := m.conn(fromID); pc != nil && len(n.Candidate) > 0 {
			if err := pc.AddCandidate(n.Candidate); err != nil {
				logger.Log.Debugw("bad candidate", "peer", fromID, "error", err)
			}
		}
	}
}

func (m *Mesh) handleState(id string, state ConnState) {
	switch state {
	case ConnConnected:
		m.setStatus(id, protocol.PeerConnected)
	case ConnFailed:
		m.setStatus(id, protocol.PeerFailed)
	case ConnDisconnected:
		m.setStatus(id, protocol.PeerConnecting)
	}
}

func (m *Mesh) conn(id string) PeerConnection {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if p, ok := m.peers[id]; ok {
		return p.conn
	}
	return nil
}

func (m *Mesh) setStatus(id string, status protocol.PeerStatus) {
	m.mutex.Lock()
	p, ok := m.peers[id]
	if ok {
		p.status = status
	}
	m.mutex.Unlock()
	if ok {
		m.notify()
	}
}

func (m *Mesh) notify() {
	m.mutex.Lock()
	cb := m.onStatus
	statuses := m.statusesLocked()
	m.mutex.Unlock()
	if cb != nil {
		cb(statuses)
	}
}

func (m *Mesh) statusesLocked() map[string]protocol.PeerStatus {
	out := make(map[string]protocol.PeerStatus, len(m.peers))
	for id, p := range m.peers {
		out[id] = p.status
	}
	return out
}

// Statuses returns a copy of every peer's status.
func (m *Mesh) Statuses() map[string]protocol.PeerStatus {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.statusesLocked()
}

// RemovePeer closes and forgets the connection to id.
func (m *Mesh) RemovePeer(id string) {
	m.mutex.Lock()
	p, ok := m.peers[id]
	delete(m.peers, id)
	m.mutex.Unlock()
	if ok {
		p.conn.Close()
		m.notify()
	}
}

// Close tears down every connection. The mesh cannot be restarted.
func (m *Mesh) Close() {
	m.mutex.Lock()
	if m.closed {
		m.mutex.Unlock()
		return
	}
	m.closed = true
	peers := m.peers
	m.peers = make(map[string]*peer)
	m.mutex.Unlock()

	for _, p := range peers {
		p.conn.Close()
	}
	m.notify()
}
