package game

import (
	"math/rand/v2"

	"github.com/wfunc/bopserver/deck"
	"github.com/wfunc/bopserver/state"
)

// MinTeamSize is the smallest roster that can start a game.
const MinTeamSize = 2

// Game is the rules engine of one room: rosters, scores, deck and the turn state
// machine. It is not safe for concurrent use; the owning room serialises access.
type Game struct {
	settings   Settings
	teams      [2]*Team
	machine    *state.BaseStateMachine
	catalog    *deck.Catalog
	deck       *deck.Deck
	rng        *rand.Rand
	round      int
	turnNumber int
	turn       *Turn

	// generation changes whenever a turn starts or ends. Timer callbacks carry the
	// generation they were scheduled for and are ignored once it has moved on.
	generation uint64

	// OnReshuffle is invoked when a draw had to rebuild the deck.
	OnReshuffle func()
	// OnTurnEnd runs each time a turn enters review, whatever ended it.
	OnTurnEnd func()
	// OnGameOver runs once when the last turn has been reviewed.
	OnGameOver func()
}

// New seats host on the first team and leaves the game in lobby. rng may be nil.
func New(catalog *deck.Catalog, host Player, settings Settings, rng *rand.Rand) *Game {
	g := &Game{
		settings: settings.clone(),
		teams: [2]*Team{
			{Name: "Team 1", Players: []Player{host}},
			{Name: "Team 2", Players: []Player{}},
		},
		catalog: catalog,
		rng:     rng,
	}
	g.machine = state.NewGameMachine(g.lastTurnDone)
	g.machine.OnEnter(state.PhaseTurnReview, func(state.Phase) {
		if g.OnTurnEnd != nil {
			g.OnTurnEnd()
		}
	})
	g.machine.OnEnter(state.PhaseGameOver, func(state.Phase) {
		if g.OnGameOver != nil {
			g.OnGameOver()
		}
	})
	return g
}

// lastTurnDone reports that the turn under review closed the final round.
func (g *Game) lastTurnDone() bool {
	next := g.turnNumber + 1
	return next%2 == 0 && g.round+1 > g.settings.Rounds
}

func (g *Game) Phase() state.Phase { return g.machine.GetCurrentState() }
func (g *Game) Settings() Settings { return g.settings.clone() }
func (g *Game) Round() int { return g.round }
func (g *Game) TurnNumber() int { return g.turnNumber }
func (g *Game) Generation() uint64 { return g.generation }
func (g *Game) Team(i int) Team { return cloneTeam(g.teams[i]) }
func (g *Game) HasTurn() bool { return g.turn != nil }
func (g *Game) Score(team int) int { return g.teams[team].Score }

// DeckIndex is the deck read cursor, the only deck detail clients ever see.
func (g *Game) DeckIndex() int {
	if g.deck == nil {
		return 0
	}
	return g.deck.Index()
}

// TurnCards returns the cards resolved so far in the current (or just ended) turn.
func (g *Game) TurnCards() []TurnCard {
	if g.turn == nil {
		return []TurnCard{}
	}
	return append([]TurnCard{}, g.turn.Cards...)
}

// TimeRemaining of the current turn in seconds.
func (g *Game) TimeRemaining() int {
	if g.turn == nil {
		return 0
	}
	return g.turn.TimeRemaining
}

// UpdateSettings replaces the settings wholesale. Only allowed in lobby.
func (g *Game) UpdateSettings(s Settings) error {
	if g.Phase() != state.PhaseLobby {
		return Validationf("Settings can only be changed in the lobby")
	}
	s = s.clone()
	if err := s.Validate(g.catalog); err != nil {
		return err
	}
	g.settings = s
	return nil
}

// TeamOf returns the roster index holding playerID, or -1.
func (g *Game) TeamOf(playerID string) int {
	for i, t := range g.teams {
		if t.indexOf(playerID) >= 0 {
			return i
		}
	}
	return -1
}

// RosterSize counts players seated on either team.
func (g *Game) RosterSize() int {
	return len(g.teams[0].Players) + len(g.teams[1].Players)
}

// JoinTeam moves p onto team index, removing it from any other roster first. Joining
// the current team only refreshes the stored player. While a turn is being played the
// clue-giver and boppers keep their seats.
func (g *Game) JoinTeam(p Player, index int) error {
	if index != 0 && index != 1 {
		return Validationf("Team must be 0 or 1")
	}
	if i := g.teams[index].indexOf(p.ID); i >= 0 {
		g.teams[index].Players[i] = p
		return nil
	}
	if g.Phase() == state.PhasePlaying && g.turn != nil &&
		(p.ID == g.turn.ClueGiverID || g.IsBopper(p.ID)) {
		return ErrRoleLocked
	}
	for _, t := range g.teams {
		t.remove(p.ID)
	}
	g.teams[index].Players = append(g.teams[index].Players, p)
	g.reseat()
	return nil
}

// RemovePlayer drops playerID from both rosters and the bopper set. Removing the
// clue-giver of a turn in play ends it; ended reports that.
func (g *Game) RemovePlayer(playerID string) (ended bool) {
	for _, t := range g.teams {
		t.remove(playerID)
	}
	if g.turn == nil {
		return false
	}
	boppers := g.turn.Boppers[:0]
	for _, id := range g.turn.Boppers {
		if id != playerID {
			boppers = append(boppers, id)
		}
	}
	g.turn.Boppers = boppers
	g.reseat()

	if g.Phase() == state.PhasePlaying && playerID == g.turn.ClueGiverID {
		return g.EndTurn()
	}
	return false
}

// reseat points ClueGiverIndex at the clue-giver's current roster slot after the
// active team changed shape.
func (g *Game) reseat() {
	if g.turn == nil {
		return
	}
	if i := g.teams[g.turn.TeamIndex].indexOf(g.turn.ClueGiverID); i >= 0 {
		g.turn.ClueGiverIndex = i
	}
}

// Start validates rosters and packs, resets scores and begins turn 0.
func (g *Game) Start() error {
	if g.Phase() != state.PhaseLobby {
		return ErrGameInProgress
	}
	for i, t := range g.teams {
		if len(t.Players) < MinTeamSize {
			return Validationf("Team %d needs at least %d players", i+1, MinTeamSize)
		}
	}
	if len(g.settings.EnabledPacks) == 0 {
		return Validationf("Select at least one card pack")
	}
	d := deck.New(g.catalog, g.settings.EnabledPacks, g.rng)
	if d.Len() == 0 {
		return Validationf("The selected card packs are empty")
	}

	if err := g.machine.ChangeState(state.PhasePlaying); err != nil {
		return Validationf("Cannot start the game now")
	}
	g.deck = d
	g.round = 1
	g.teams[0].Score = 0
	g.teams[1].Score = 0
	g.startTurn(0)
	return nil
}

// startTurn assumes the active team is non-empty and the phase is already playing.
func (g *Game) startTurn(n int) {
	teamIndex := n % 2
	team := g.teams[teamIndex]
	clueGiverIndex := (n / 2) % len(team.Players)

	opposing := g.teams[1-teamIndex]
	boppers := []string{}
	if g.settings.BopperAssignment == AssignRotate && len(opposing.Players) > 0 {
		count := min(g.settings.BopperCount, len(opposing.Players))
		start := (n / 2) % len(opposing.Players)
		for i := 0; i < count; i++ {
			boppers = append(boppers, opposing.Players[(start+i)%len(opposing.Players)].ID)
		}
	}

	g.turnNumber = n
	g.generation++
	g.turn = &Turn{
		TeamIndex:      teamIndex,
		ClueGiverIndex: clueGiverIndex,
		ClueGiverID:    team.Players[clueGiverIndex].ID,
		Boppers:        boppers,
		TimeRemaining:  g.settings.TimerSec,
		Cards:          []TurnCard{},
	}
	if card, ok := g.draw(); ok {
		g.turn.CurrentCard = card
	} else {
		g.EndTurn()
	}
}

func (g *Game) draw() (deck.Card, bool) {
	card, reshuffled, err := g.deck.Draw()
	if reshuffled && g.OnReshuffle != nil {
		g.OnReshuffle()
	}
	return card, err == nil
}

// ClueGiver resolves the turn's clue-giver lazily: the player the turn started with,
// as long as they are still on the active team.
func (g *Game) ClueGiver() (Player, bool) {
	if g.turn == nil {
		return Player{}, false
	}
	team := g.teams[g.turn.TeamIndex]
	i := team.indexOf(g.turn.ClueGiverID)
	if i < 0 {
		return Player{}, false
	}
	return team.Players[i], true
}

// IsBopper reports whether playerID may bop this turn.
func (g *Game) IsBopper(playerID string) bool {
	if g.turn == nil {
		return false
	}
	for _, id := range g.turn.Boppers {
		if id == playerID {
			return true
		}
	}
	return false
}

// activeTurn checks the phase and that the clue-giver is still seated, ending the
// turn when it is not.
func (g *Game) activeTurn() (Player, error) {
	if g.Phase() != state.PhasePlaying || g.turn == nil {
		return Player{}, ErrNotPlaying
	}
	cg, ok := g.ClueGiver()
	if !ok {
		g.EndTurn()
		return Player{}, ErrClueGiverGone
	}
	return cg, nil
}

// GotIt resolves the current card as guessed and scores it for the active team.
func (g *Game) GotIt(playerID string, difficulty Outcome) error {
	cg, err := g.activeTurn()
	if err != nil {
		return err
	}
	if cg.ID != playerID {
		return ErrNotClueGiver
	}

	var points int
	switch difficulty {
	case OutcomeEasy:
		points = g.settings.PointsEasy
	case OutcomeHard:
		points = g.settings.PointsHard
	default:
		return Validationf("Difficulty must be easy or hard")
	}

	g.teams[g.turn.TeamIndex].Score += points
	g.resolve(difficulty)
	return nil
}

// Skip resolves the current card without scoring.
func (g *Game) Skip(playerID string) error {
	cg, err := g.activeTurn()
	if err != nil {
		return err
	}
	if cg.ID != playerID {
		return ErrNotClueGiver
	}
	g.resolve(OutcomeSkip)
	return nil
}

// Bop penalises the active team; only a designated bopper may do it.
func (g *Game) Bop(playerID string) error {
	if _, err := g.activeTurn(); err != nil {
		return err
	}
	if !g.IsBopper(playerID) {
		return ErrNotBopper
	}
	g.teams[g.turn.TeamIndex].Score -= g.settings.BopPenalty
	g.resolve(OutcomeBop)
	return nil
}

func (g *Game) resolve(result Outcome) {
	g.turn.Cards = append(g.turn.Cards, TurnCard{Card: g.turn.CurrentCard, Result: result})
	if card, ok := g.draw(); ok {
		g.turn.CurrentCard = card
	} else {
		g.EndTurn()
	}
}

// EndTurn moves playing -> turn_review. It reports false, changing nothing, when no
// turn is being played.
func (g *Game) EndTurn() bool {
	if err := g.machine.ChangeState(state.PhaseTurnReview); err != nil {
		return false
	}
	g.generation++
	return true
}

// Tick counts the turn down by one second. Ticks scheduled for an earlier generation
// are ignored (ok is false). expired reports that this tick ended the turn.
func (g *Game) Tick(generation uint64) (remaining int, expired, ok bool) {
	if generation != g.generation || g.Phase() != state.PhasePlaying || g.turn == nil {
		return 0, false, false
	}
	g.turn.TimeRemaining--
	if g.turn.TimeRemaining <= 0 {
		g.turn.TimeRemaining = 0
		g.EndTurn()
		return 0, true, true
	}
	return g.turn.TimeRemaining, false, true
}

// Advance leaves turn_review: either the next turn starts or, once the last round
// is complete, the game is over.
func (g *Game) Advance() error {
	if g.Phase() != state.PhaseTurnReview {
		return ErrNotInReview
	}

	next := g.turnNumber + 1
	if g.machine.CanChange(state.PhaseGameOver) {
		if err := g.machine.ChangeState(state.PhaseGameOver); err != nil {
			return Validationf("Cannot finish the game now")
		}
		g.round++
		g.turnNumber = next
		g.turn = nil
		g.generation++
		return nil
	}

	if len(g.teams[next%2].Players) == 0 {
		return Validationf("%s has no players", g.teams[next%2].Name)
	}
	if err := g.machine.ChangeState(state.PhasePlaying); err != nil {
		return Validationf("Cannot start the next turn now")
	}
	if next%2 == 0 {
		g.round++
	}
	g.startTurn(next)
	return nil
}

// Winner is the index of the leading team, or -1 on a tie.
func (g *Game) Winner() int {
	switch {
	case g.teams[0].Score > g.teams[1].Score:
		return 0
	case g.teams[1].Score > g.teams[0].Score:
		return 1
	default:
		return -1
	}
}

// Snapshot renders the game for viewer. Only the active clue-giver sees the real
// current card; everyone else gets deck.Redacted.
func (g *Game) Snapshot(viewer string) Snapshot {
	snap := Snapshot{
		Settings:  g.settings.clone(),
		Phase:     g.Phase(),
		Teams:     [2]Team{cloneTeam(g.teams[0]), cloneTeam(g.teams[1])},
		DeckIndex: g.DeckIndex(),
		Round:     g.round,
	}
	if g.turn != nil {
		snap.Turn = g.turn.clone()
		cg, ok := g.ClueGiver()
		if !(ok && snap.Phase == state.PhasePlaying && cg.ID == viewer) {
			snap.Turn.CurrentCard = deck.Redacted
		}
	}
	return snap
}

func cloneTeam(t *Team) Team {
	c := *t
	c.Players = append([]Player{}, t.Players...)
	return c
}
