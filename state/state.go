package state

import (
	"errors"
	"sync"
)

// Phase is a room's game phase.
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhasePlaying    Phase = "playing"
	PhaseTurnReview Phase = "turn_review"
	PhaseGameOver   Phase = "game_over"
)

// ErrTransitionNotAllowed is returned when no registered edge leads from the current
// phase to the requested one, or when the edge's condition rejects it.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// BaseStateMachine only follows edges registered with AddTransition.
type BaseStateMachine struct {
	currentState Phase
	transitions  map[Phase]map[Phase]func() bool // from -> to -> condition
	onEnter      map[Phase]func(from Phase)
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initial Phase) *BaseStateMachine {
	return &BaseStateMachine{
		currentState: initial,
		transitions:  make(map[Phase]map[Phase]func() bool),
		onEnter:      make(map[Phase]func(from Phase)),
	}
}

// NewGameMachine returns a machine in lobby with the game's edges:
// lobby -> playing <-> turn_review -> game_over. finished picks the way out of
// turn_review: game_over once it reports true, playing until then. A nil finished
// never ends the game.
func NewGameMachine(finished func() bool) *BaseStateMachine {
	if finished == nil {
		finished = func() bool { return false }
	}
	sm := NewBaseStateMachine(PhaseLobby)
	sm.AddTransition(PhaseLobby, PhasePlaying, nil)
	sm.AddTransition(PhasePlaying, PhaseTurnReview, nil)
	sm.AddTransition(PhaseTurnReview, PhasePlaying, func() bool { return !finished() })
	sm.AddTransition(PhaseTurnReview, PhaseGameOver, finished)
	return sm
}

func (sm *BaseStateMachine) ChangeState(to Phase) error {
	sm.mutex.Lock()

	from := sm.currentState
	edges, ok := sm.transitions[from]
	if !ok {
		sm.mutex.Unlock()
		return ErrTransitionNotAllowed
	}
	condition, ok := edges[to]
	if !ok || (condition != nil && !condition()) {
		sm.mutex.Unlock()
		return ErrTransitionNotAllowed
	}

	sm.currentState = to
	hook := sm.onEnter[to]
	sm.mutex.Unlock()

	if hook != nil {
		hook(from)
	}
	return nil
}

func (sm *BaseStateMachine) GetCurrentState() Phase {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

// CanChange reports whether ChangeState(to) would currently succeed.
func (sm *BaseStateMachine) CanChange(to Phase) bool {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	condition, ok := sm.transitions[sm.currentState][to]
	return ok && (condition == nil || condition())
}

func (sm *BaseStateMachine) AddTransition(from, to Phase, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if _, exists := sm.transitions[from]; !exists {
		sm.transitions[from] = make(map[Phase]func() bool)
	}

	sm.transitions[from][to] = condition
	return nil
}

// OnEnter registers fn to run after every successful transition into phase.
// The hook runs outside the machine's lock.
func (sm *BaseStateMachine) OnEnter(phase Phase, fn func(from Phase)) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.onEnter[phase] = fn
}
