// room/room.go
package room

import (
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/bopserver/broadcast"
	"github.com/wfunc/bopserver/deck"
	"github.com/wfunc/bopserver/game"
	"github.com/wfunc/bopserver/logger"
	"github.com/wfunc/bopserver/models"
	"github.com/wfunc/bopserver/protocol"
	"github.com/wfunc/bopserver/signaling"
	"github.com/wfunc/bopserver/state"
)

const inboxSize = 64

// Scheduler runs callbacks later. timer.TimerManager satisfies it.
type Scheduler interface {
	AddTimer(delay time.Duration, interval time.Duration, callback func()) int64
	RemoveTimer(timerId int64) bool
}

// Metrics receives gameplay events. monitor.Monitor satisfies it.
type Metrics interface {
	DeckReshuffled()
	TurnCompleted()
	GameFinished()
}

// Recorder takes finished games. services.ResultService satisfies it.
type Recorder interface {
	Submit(record models.GameRecord) bool
}

type nopMetrics struct{}

func (nopMetrics) DeckReshuffled() {}
func (nopMetrics) TurnCompleted()  {}
func (nopMetrics) GameFinished()   {}

// Options are shared by every room of a Manager.
type Options struct {
	Catalog           *deck.Catalog
	Defaults          *game.Settings
	Scheduler         Scheduler
	Broadcaster       *broadcast.Broadcaster
	Metrics           Metrics
	Recorder          Recorder
	MaxPlayersVoice   int
	MaxPlayersNoVoice int
	HostGrace         time.Duration
	IdleTimeout       time.Duration
	CodeAttempts      int
	Now               func() time.Time

	// Rand seeds deck shuffles. It is shared by every room, so only single-room
	// tests set it; nil uses the global source.
	Rand *rand.Rand
}

func (o *Options) setDefaults() {
	if o.Defaults == nil {
		s := game.DefaultSettings(o.Catalog)
		o.Defaults = &s
	}
	if o.Broadcaster == nil {
		o.Broadcaster = broadcast.NewBroadcaster(nil)
	}
	if o.Metrics == nil {
		o.Metrics = nopMetrics{}
	}
	if o.MaxPlayersVoice <= 0 {
		o.MaxPlayersVoice = 8
	}
	if o.MaxPlayersNoVoice <= 0 {
		o.MaxPlayersNoVoice = 12
	}
	if o.HostGrace <= 0 {
		o.HostGrace = 30 * time.Second
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 5 * time.Minute
	}
	if o.CodeAttempts <= 0 {
		o.CodeAttempts = 100
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Summary is a point-in-time view of a room, readable without entering it.
type Summary struct {
	Code         string      `json:"code"`
	Phase        state.Phase `json:"phase"`
	Host         string      `json:"host"`
	Players      int         `json:"players"`
	Connections  int         `json:"connections"`
	VoiceEnabled bool        `json:"voiceEnabled"`
	LastActivity time.Time   `json:"lastActivity"`
}

// Room is one game session. All of its state is owned by a single goroutine that
// drains inbox; commands, disconnects and timer callbacks are posted there and each
// runs to completion before the next starts.
type Room struct {
	Code string

	opts  *Options
	bc    *broadcast.Broadcaster
	game  *game.Game
	host  string
	voice bool
	board *signaling.Board

	// players holds every id that joined and has not left; a known id may always
	// reconnect.
	players map[string]game.Player
	conns   map[string]broadcast.Recipient

	tickTimer  int64
	tickGen    uint64
	graceTimer int64
	graceSeq   uint64
	startedAt  time.Time

	inbox     chan func()
	done      chan struct{}
	closed    bool
	closeOnce sync.Once

	migrating    atomic.Bool
	lastActivity atomic.Int64
	summary      atomic.Pointer[Summary]
}

func newRoom(code string, host game.Player, settings game.Settings, voice bool, opts *Options) *Room {
	r := &Room{
		Code:    code,
		opts:    opts,
		bc:      opts.Broadcaster,
		game:    game.New(opts.Catalog, host, settings, opts.Rand),
		host:    host.ID,
		voice:   voice,
		board:   signaling.NewBoard(),
		players: map[string]game.Player{host.ID: host},
		conns:   make(map[string]broadcast.Recipient),
		inbox:   make(chan func(), inboxSize),
		done:    make(chan struct{}),
	}
	r.game.OnReshuffle = r.onReshuffle
	r.game.OnTurnEnd = r.onTurnEnd
	r.game.OnGameOver = r.onGameOver
	r.touch()
	r.publish()
	return r
}

func (r *Room) run() {
	for !r.closed {
		select {
		case fn := <-r.inbox:
			fn()
		case <-r.done:
			return
		}
	}
}

// post queues fn for the room goroutine. It reports false once the room is closed.
func (r *Room) post(fn func()) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.inbox <- fn:
		return true
	case <-r.done:
		return false
	}
}

// call runs fn on the room goroutine and waits for it to finish.
func (r *Room) call(fn func()) bool {
	finished := make(chan struct{})
	if !r.post(func() { defer close(finished); fn() }) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-r.done:
		return false
	}
}

// Join binds conn to playerID. A known id reconnects unconditionally; a new id must
// find the room in lobby with a free seat. On success the caller receives welcome
// and everyone receives the new room_state.
func (r *Room) Join(playerID, name string, conn broadcast.Recipient) error {
	var err error
	if !r.call(func() { err = r.join(playerID, name, conn) }) {
		return game.ErrRoomNotFound
	}
	return err
}

// Handle queues an in-room command issued by playerID over conn.
func (r *Room) Handle(playerID string, conn broadcast.Recipient, cmd protocol.Command) bool {
	return r.post(func() { r.handle(playerID, conn, cmd) })
}

// Leave removes playerID for good. Nothing happens if conn no longer holds the binding.
func (r *Room) Leave(playerID string, conn broadcast.Recipient) bool {
	return r.post(func() { r.leave(playerID, conn) })
}

// Disconnect releases conn's binding; the player stays on its team and may reconnect.
func (r *Room) Disconnect(playerID string, conn broadcast.Recipient) bool {
	return r.post(func() { r.disconnect(playerID, conn) })
}

// Close stops the room goroutine and cancels its timers.
func (r *Room) Close() {
	if !r.call(r.shutdown) {
		r.closeOnce.Do(func() { close(r.done) })
	}
}

// Done is closed when the room stops.
func (r *Room) Done() <-chan struct{} { return r.done }

// Summary returns the latest published view of the room.
func (r *Room) Summary() Summary { return *r.summary.Load() }

// retire closes the room if it has no connections, no pending host migration and
// has been idle past the threshold. It runs on the room goroutine so no join can
// slip in between the check and the close.
func (r *Room) retire(now time.Time) bool {
	retired := false
	r.call(func() {
		if len(r.conns) > 0 || r.migrating.Load() {
			return
		}
		if now.Sub(time.Unix(0, r.lastActivity.Load())) <= r.opts.IdleTimeout {
			return
		}
		r.shutdown()
		retired = true
	})
	return retired
}

func (r *Room) shutdown() {
	r.cancelTick()
	r.cancelGrace()
	r.closed = true
	r.closeOnce.Do(func() { close(r.done) })
}

func (r *Room) join(playerID, name string, conn broadcast.Recipient) error {
	if _, known := r.players[playerID]; !known {
		if r.game.Phase() != state.PhaseLobby {
			return game.ErrGameInProgress
		}
		if r.occupancy() >= r.capacity() {
			return game.ErrRoomFull
		}
		r.players[playerID] = game.Player{ID: playerID, Name: name}
	}

	r.conns[playerID] = conn
	if playerID == r.host {
		r.cancelGrace()
	}
	r.touch()
	logger.Log.Infow("player joined", "room", r.Code, "player", playerID, "connections", len(r.conns))

	r.bc.ToOne(playerID, conn, protocol.Message{
		Type:    protocol.TypeWelcome,
		Payload: protocol.Welcome{PlayerID: playerID, Code: r.Code},
	})
	r.broadcastState()
	return nil
}

func (r *Room) handle(playerID string, conn broadcast.Recipient, cmd protocol.Command) {
	if current, ok := r.conns[playerID]; !ok || current != conn {
		r.bc.ToOne(playerID, conn, protocol.NewError(game.ErrNotInRoom))
		return
	}
	r.touch()

	before := r.game.Generation()
	err := r.dispatch(playerID, cmd)
	changed := r.settle(before)

	switch {
	case err != nil:
		r.bc.ToOne(playerID, conn, protocol.NewError(err))
		if changed {
			r.broadcastState()
		}
	case cmd.Kind() != protocol.TypeSignal:
		r.broadcastState()
	}
}

func (r *Room) dispatch(playerID string, cmd protocol.Command) error {
	switch c := cmd.(type) {
	case *protocol.UpdateSettings:
		if err := r.requireHost(playerID); err != nil {
			return err
		}
		return r.game.UpdateSettings(*c.Settings)

	case *protocol.ToggleVoice:
		if err := r.requireHost(playerID); err != nil {
			return err
		}
		return r.toggleVoice(c.Enabled)

	case *protocol.JoinTeam:
		p := r.players[playerID]
		if c.PlayerName != "" {
			p.Name = c.PlayerName
			r.players[playerID] = p
		}
		return r.game.JoinTeam(p, *c.TeamIndex)

	case *protocol.StartGame:
		if err := r.requireHost(playerID); err != nil {
			return err
		}
		if err := r.game.Start(); err != nil {
			return err
		}
		r.startedAt = r.opts.Now()
		logger.Log.Infow("game started", "room", r.Code, "rounds", r.game.Settings().Rounds)
		return nil

	case *protocol.GotIt:
		return r.game.GotIt(playerID, c.Difficulty)

	case *protocol.Skip:
		return r.game.Skip(playerID)

	case *protocol.Bop:
		return r.game.Bop(playerID)

	case *protocol.EndTurn:
		if err := r.requireHost(playerID); err != nil {
			return err
		}
		if !r.game.EndTurn() {
			return game.ErrNotPlaying
		}
		return nil

	case *protocol.NextTurn:
		if err := r.requireHost(playerID); err != nil {
			return err
		}
		return r.game.Advance()

	case *protocol.Signal:
		signaling.Relay(r.bc, r.conns, playerID, c)
		return nil

	case *protocol.VoiceStatus:
		if !r.voice {
			return game.Validationf("Voice chat is disabled")
		}
		r.board.Set(playerID, c.Status)
		return nil

	default:
		return game.Validationf("Unsupported command: %s", cmd.Kind())
	}
}

func (r *Room) requireHost(playerID string) error {
	if playerID != r.host {
		return game.ErrNotHost
	}
	return nil
}

func (r *Room) toggleVoice(enabled bool) error {
	if enabled && r.occupancy() > r.opts.MaxPlayersVoice {
		return game.Capacityf("Cannot enable voice with more than %d players", r.opts.MaxPlayersVoice)
	}
	r.voice = enabled
	if !enabled {
		r.board.Reset()
	}
	return nil
}

// settle starts the countdown for a turn that began during the last mutation. It
// reports whether the turn generation moved.
func (r *Room) settle(before uint64) bool {
	if r.game.Phase() == state.PhasePlaying && r.tickGen != r.game.Generation() {
		r.scheduleTick()
	}
	return r.game.Generation() != before
}

func (r *Room) scheduleTick() {
	r.cancelTick()
	gen := r.game.Generation()
	r.tickGen = gen
	r.tickTimer = r.opts.Scheduler.AddTimer(time.Second, time.Second, func() {
		r.post(func() { r.onTick(gen) })
	})
}

func (r *Room) cancelTick() {
	if r.tickTimer != 0 {
		r.opts.Scheduler.RemoveTimer(r.tickTimer)
		r.tickTimer = 0
	}
}

func (r *Room) onTick(gen uint64) {
	remaining, expired, ok := r.game.Tick(gen)
	if !ok {
		return
	}
	r.bc.ToAll(r.conns, protocol.Message{
		Type:    protocol.TypeTick,
		Payload: protocol.Tick{TimeRemaining: remaining},
	})
	if expired {
		r.settle(gen)
		r.broadcastState()
	}
}

func (r *Room) onReshuffle() {
	r.opts.Metrics.DeckReshuffled()
	r.bc.ToAll(r.conns, protocol.Message{Type: protocol.TypeDeckReshuffled})
}

func (r *Room) onTurnEnd() {
	r.cancelTick()
	r.opts.Metrics.TurnCompleted()
	r.bc.ToAll(r.conns, protocol.Message{
		Type:    protocol.TypeTurnEnd,
		Payload: protocol.TurnEnd{TurnCards: r.game.TurnCards()},
	})
}

func (r *Room) onGameOver() {
	r.cancelTick()
	r.finishGame()
}

func (r *Room) finishGame() {
	r.opts.Metrics.GameFinished()

	record := models.GameRecord{
		RoomCode:   r.Code,
		Rounds:     r.game.Settings().Rounds,
		Winner:     r.game.Winner(),
		StartedAt:  r.startedAt,
		FinishedAt: r.opts.Now(),
	}
	for i := 0; i < 2; i++ {
		t := r.game.Team(i)
		result := models.TeamResult{Name: t.Name, Score: t.Score, Players: []models.PlayerResult{}}
		for _, p := range t.Players {
			result.Players = append(result.Players, models.PlayerResult{ID: p.ID, Name: p.Name})
		}
		record.Teams = append(record.Teams, result)
	}
	logger.Log.Infow("game over", "room", r.Code, "winner", record.Winner,
		"score1", record.Teams[0].Score, "score2", record.Teams[1].Score)

	if r.opts.Recorder != nil {
		r.opts.Recorder.Submit(record)
	}
}

func (r *Room) leave(playerID string, conn broadcast.Recipient) {
	if current, ok := r.conns[playerID]; !ok || current != conn {
		return
	}
	before := r.game.Generation()

	delete(r.conns, playerID)
	delete(r.players, playerID)
	r.board.Remove(playerID)
	r.game.RemovePlayer(playerID)
	if playerID == r.host {
		r.cancelGrace()
		r.migrateHost()
	}
	r.touch()
	logger.Log.Infow("player left", "room", r.Code, "player", playerID)

	r.settle(before)
	r.broadcastState()
}

func (r *Room) disconnect(playerID string, conn broadcast.Recipient) {
	if current, ok := r.conns[playerID]; !ok || current != conn {
		return
	}
	wasPlaying := r.game.Phase() == state.PhasePlaying
	before := r.game.Generation()

	delete(r.conns, playerID)
	r.board.Remove(playerID)
	if cg, ok := r.game.ClueGiver(); ok && wasPlaying && cg.ID == playerID {
		r.game.EndTurn()
	}
	if playerID == r.host {
		r.startGrace()
	}
	r.touch()
	logger.Log.Infow("player disconnected", "room", r.Code, "player", playerID, "connections", len(r.conns))

	r.settle(before)
	r.broadcastState()
}

func (r *Room) startGrace() {
	r.cancelGrace()
	r.graceSeq++
	seq := r.graceSeq
	r.migrating.Store(true)
	r.graceTimer = r.opts.Scheduler.AddTimer(r.opts.HostGrace, 0, func() {
		r.post(func() { r.onGraceExpired(seq) })
	})
}

func (r *Room) cancelGrace() {
	if r.graceTimer != 0 {
		r.opts.Scheduler.RemoveTimer(r.graceTimer)
		r.graceTimer = 0
	}
	r.graceSeq++
	r.migrating.Store(false)
}

func (r *Room) onGraceExpired(seq uint64) {
	if seq != r.graceSeq {
		return
	}
	r.graceTimer = 0
	r.migrating.Store(false)
	if _, back := r.conns[r.host]; back {
		return
	}
	if r.migrateHost() {
		r.broadcastState()
	}
}

// migrateHost hands the host role to the lowest connected id. With nobody connected
// it falls back to the lowest remaining player, and keeps the role when the departed
// host was still a player.
func (r *Room) migrateHost() bool {
	ids := r.connected()
	if len(ids) == 0 {
		if _, stillHere := r.players[r.host]; stillHere || len(r.players) == 0 {
			return false
		}
		for id := range r.players {
			ids = append(ids, id)
		}
		slices.Sort(ids)
	}
	logger.Log.Infow("host migrated", "room", r.Code, "from", r.host, "to", ids[0])
	r.host = ids[0]
	return true
}

// occupancy counts seated players plus connected players without a team.
func (r *Room) occupancy() int {
	n := r.game.RosterSize()
	for id := range r.conns {
		if r.game.TeamOf(id) < 0 {
			n++
		}
	}
	return n
}

func (r *Room) capacity() int {
	if r.voice {
		return r.opts.MaxPlayersVoice
	}
	return r.opts.MaxPlayersNoVoice
}

func (r *Room) connected() []string {
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// broadcastState sends every connection its own room_state. Only the current card
// differs between recipients.
func (r *Room) broadcastState() {
	connected := r.connected()
	voiceStatus := r.board.Snapshot()
	r.bc.Tailored(r.conns, func(id string) protocol.Message {
		return protocol.Message{
			Type: protocol.TypeRoomState,
			Payload: protocol.RoomState{
				Code:         r.Code,
				Host:         r.host,
				Snapshot:     r.game.Snapshot(id),
				VoiceEnabled: r.voice,
				Connected:    connected,
				VoiceStatus:  voiceStatus,
			},
		}
	})
	r.publish()
}

func (r *Room) touch() {
	r.lastActivity.Store(r.opts.Now().UnixNano())
}

func (r *Room) publish() {
	r.summary.Store(&Summary{
		Code:         r.Code,
		Phase:        r.game.Phase(),
		Host:         r.host,
		Players:      r.game.RosterSize(),
		Connections:  len(r.conns),
		VoiceEnabled: r.voice,
		LastActivity: time.Unix(0, r.lastActivity.Load()),
	})
}
