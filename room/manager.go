// room/manager.go
package room

import (
	"context"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/bopserver/broadcast"
	"github.com/wfunc/bopserver/game"
	"github.com/wfunc/bopserver/logger"
)

// CodeAlphabet leaves out I and O so codes read unambiguously aloud.
const (
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	CodeLength   = 4
)

// Manager is the room registry. It is the only structure shared between rooms.
type Manager struct {
	rooms map[string]*Room
	mutex sync.RWMutex
	opts  Options
	intn  func(n int) int

	// OnCountChange, if set, receives the room count after every insert or delete.
	OnCountChange func(count int)
}

// NewRoomManager creates an empty registry. opts.Catalog and opts.Scheduler are required.
func NewRoomManager(opts Options) *Manager {
	opts.setDefaults()
	return &Manager{
		rooms: make(map[string]*Room),
		opts:  opts,
		intn:  rand.IntN,
	}
}

// DefaultSettings are the rules a new room starts with when the creator sends none.
func (m *Manager) DefaultSettings() game.Settings {
	s := *m.opts.Defaults
	s.EnabledPacks = append([]string(nil), s.EnabledPacks...)
	return s
}

// CreateRoom allocates a code, seats host on Team 1 and binds conn as the host's
// connection. A nil settings selects the defaults.
func (m *Manager) CreateRoom(host game.Player, settings *game.Settings, voice bool, conn broadcast.Recipient) (*Room, error) {
	s := m.DefaultSettings()
	if settings != nil {
		s = *settings
		if err := s.Validate(m.opts.Catalog); err != nil {
			return nil, err
		}
	}

	m.mutex.Lock()
	code, err := m.allocateCode()
	if err != nil {
		m.mutex.Unlock()
		logger.Log.Errorw("room code space exhausted", "attempts", m.opts.CodeAttempts, "rooms", len(m.rooms))
		return nil, err
	}
	room := newRoom(code, host, s, voice, &m.opts)
	m.rooms[code] = room
	count := len(m.rooms)
	m.mutex.Unlock()

	go room.run()
	m.countChanged(count)
	logger.Log.Infow("room created", "room", code, "host", host.ID, "voice", voice)

	if err := room.Join(host.ID, host.Name, conn); err != nil {
		m.RemoveRoom(code)
		return nil, err
	}
	return room, nil
}

// allocateCode draws random codes until one is free. Caller holds the write lock.
func (m *Manager) allocateCode() (string, error) {
	var b strings.Builder
	for attempt := 0; attempt < m.opts.CodeAttempts; attempt++ {
		b.Reset()
		for i := 0; i < CodeLength; i++ {
			b.WriteByte(CodeAlphabet[m.intn(len(CodeAlphabet))])
		}
		if _, taken := m.rooms[b.String()]; !taken {
			return b.String(), nil
		}
	}
	return "", game.ErrCodeSpaceExhausted
}

// GetRoom looks a room up by code, case-insensitively.
func (m *Manager) GetRoom(code string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	room, exists := m.rooms[strings.ToUpper(strings.TrimSpace(code))]
	return room, exists
}

// RemoveRoom deletes and closes a room.
func (m *Manager) RemoveRoom(code string) {
	m.mutex.Lock()
	room, exists := m.rooms[code]
	delete(m.rooms, code)
	count := len(m.rooms)
	m.mutex.Unlock()

	if exists {
		room.Close()
		m.countChanged(count)
	}
}

// Count is the number of live rooms.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// Rooms returns a summary of every room, ordered by code.
func (m *Manager) Rooms() []Summary {
	m.mutex.RLock()
	summaries := make([]Summary, 0, len(m.rooms))
	for _, room := range m.rooms {
		summaries = append(summaries, room.Summary())
	}
	m.mutex.RUnlock()

	slices.SortFunc(summaries, func(a, b Summary) int { return strings.Compare(a.Code, b.Code) })
	return summaries
}

// Sweep reaps rooms with no connections and no pending host migration that have
// been idle past the threshold. It returns the codes it removed.
func (m *Manager) Sweep(now time.Time) []string {
	m.mutex.RLock()
	candidates := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		candidates = append(candidates, room)
	}
	m.mutex.RUnlock()

	reaped := []string{}
	for _, room := range candidates {
		if !room.retire(now) {
			continue
		}
		m.mutex.Lock()
		if m.rooms[room.Code] == room {
			delete(m.rooms, room.Code)
		}
		m.mutex.Unlock()
		reaped = append(reaped, room.Code)
	}
	if len(reaped) > 0 {
		logger.Log.Infow("idle rooms reaped", "rooms", reaped)
		m.countChanged(m.Count())
	}
	return reaped
}

// Run sweeps every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.opts.Now())
		}
	}
}

// CloseAll closes every room, used on shutdown.
func (m *Manager) CloseAll() {
	m.mutex.Lock()
	rooms := m.rooms
	m.rooms = make(map[string]*Room)
	m.mutex.Unlock()

	for _, room := range rooms {
		room.Close()
	}
	m.countChanged(0)
}

func (m *Manager) countChanged(count int) {
	if m.OnCountChange != nil {
		m.OnCountChange(count)
	}
}
