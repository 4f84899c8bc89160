// session/session.go
package session

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wfunc/bopserver/network"
	"github.com/wfunc/bopserver/protocol"
)

// Session is one live transport and the player/room it is bound to. A session binds
// at most once per room join; a reconnect is a new session carrying the old player id.
type Session struct {
	ID        string
	Conn      network.Connection
	CreatedAt time.Time

	limiter  *rate.Limiter
	playerID string
	roomCode string
	mutex    sync.RWMutex
}

// NewSession creates a session allowing limit inbound commands per second with the
// given burst.
func NewSession(id string, conn network.Connection, limit rate.Limit, burst int) *Session {
	return &Session{
		ID:        id,
		Conn:      conn,
		CreatedAt: time.Now(),
		limiter:   rate.NewLimiter(limit, burst),
	}
}

// Send implements broadcast.Recipient.
func (s *Session) Send(msg protocol.Message) error {
	return s.Conn.Send(msg)
}

// Allow reports whether another inbound command fits the rate limit.
func (s *Session) Allow() bool {
	return s.limiter.Allow()
}

func (s *Session) Bind(playerID, roomCode string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.playerID = playerID
	s.roomCode = roomCode
}

func (s *Session) Unbind() {
	s.Bind("", "")
}

// Binding returns the bound player id and room code; both are empty before a join.
func (s *Session) Binding() (playerID, roomCode string) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.playerID, s.roomCode
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager tracks every live session.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every transport, used on shutdown.
func (m *Manager) CloseAll() {
	m.mutex.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mutex.RUnlock()

	for _, s := range sessions {
		s.Close()
	}
}
