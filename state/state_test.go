package state

import (
	"testing"
)

func TestStateMachine_InitialState(t *testing.T) {
	sm := NewGameMachine(nil)

	if sm.GetCurrentState() != PhaseLobby {
		t.Errorf("Expected initial phase lobby, got %s", sm.GetCurrentState())
	}
}

func TestStateMachine_ChangeState(t *testing.T) {
	sm := NewGameMachine(nil)

	entered := Phase("")
	sm.OnEnter(PhasePlaying, func(from Phase) { entered = from })

	if err := sm.ChangeState(PhasePlaying); err != nil {
		t.Fatalf("ChangeState should not return an error, but got: %v", err)
	}

	if sm.GetCurrentState() != PhasePlaying {
		t.Errorf("Expected phase playing, got %s", sm.GetCurrentState())
	}

	if entered != PhaseLobby {
		t.Errorf("Expected OnEnter hook to see lobby as previous phase, got %q", entered)
	}
}

func TestStateMachine_FullGamePath(t *testing.T) {
	done := false
	sm := NewGameMachine(func() bool { return done })

	path := []Phase{PhasePlaying, PhaseTurnReview, PhasePlaying, PhaseTurnReview}
	for _, p := range path {
		if err := sm.ChangeState(p); err != nil {
			t.Fatalf("transition to %s failed: %v", p, err)
		}
	}

	if sm.CanChange(PhaseGameOver) {
		t.Errorf("game_over should stay closed until the game is finished")
	}
	done = true
	if sm.CanChange(PhasePlaying) {
		t.Errorf("a finished game should not start another turn")
	}
	if err := sm.ChangeState(PhaseGameOver); err != nil {
		t.Fatalf("transition to game_over failed: %v", err)
	}
}

func TestStateMachine_RejectsUnregisteredEdges(t *testing.T) {
	cases := []struct {
		name string
		walk []Phase
		bad  Phase
	}{
		{"lobby to review", nil, PhaseTurnReview},
		{"lobby to game over", nil, PhaseGameOver},
		{"playing to game over", []Phase{PhasePlaying}, PhaseGameOver},
		{"playing to lobby", []Phase{PhasePlaying}, PhaseLobby},
		{"review to lobby", []Phase{PhasePlaying, PhaseTurnReview}, PhaseLobby},
		{"review to game over before the end", []Phase{PhasePlaying, PhaseTurnReview}, PhaseGameOver},
		{"self loop", []Phase{PhasePlaying}, PhasePlaying},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sm := NewGameMachine(nil)
			for _, p := range tc.walk {
				if err := sm.ChangeState(p); err != nil {
					t.Fatalf("setup transition to %s failed: %v", p, err)
				}
			}
			before := sm.GetCurrentState()

			if sm.CanChange(tc.bad) {
				t.Errorf("CanChange(%s) should be false from %s", tc.bad, before)
			}
			if err := sm.ChangeState(tc.bad); err != ErrTransitionNotAllowed {
				t.Errorf("Expected ErrTransitionNotAllowed, but got: %v", err)
			}
			if sm.GetCurrentState() != before {
				t.Errorf("Expected phase to remain %s after a blocked transition, but got %s", before, sm.GetCurrentState())
			}
		})
	}
}

func TestStateMachine_GameOverIsTerminal(t *testing.T) {
	sm := NewGameMachine(func() bool { return true })
	for _, p := range []Phase{PhasePlaying, PhaseTurnReview, PhaseGameOver} {
		if err := sm.ChangeState(p); err != nil {
			t.Fatalf("transition to %s failed: %v", p, err)
		}
	}

	for _, p := range []Phase{PhaseLobby, PhasePlaying, PhaseTurnReview} {
		if err := sm.ChangeState(p); err != ErrTransitionNotAllowed {
			t.Errorf("Expected ErrTransitionNotAllowed leaving game_over for %s, but got: %v", p, err)
		}
	}
}

func TestStateMachine_AddAndUseTransition(t *testing.T) {
	sm := NewBaseStateMachine("A")

	err := sm.AddTransition("A", "B", func() bool { return true })
	if err != nil {
		t.Fatalf("AddTransition failed: %v", err)
	}

	err = sm.AddTransition("B", "C", func() bool { return false })
	if err != nil {
		t.Fatalf("AddTransition failed: %v", err)
	}

	// --- Test valid transition ---
	if err := sm.ChangeState("B"); err != nil {
		t.Errorf("Expected transition from A to B to be allowed, but got error: %v", err)
	}
	if sm.GetCurrentState() != "B" {
		t.Errorf("Expected current state to be B, but got %s", sm.GetCurrentState())
	}

	// --- Test blocked transition ---
	if err := sm.ChangeState("C"); err != ErrTransitionNotAllowed {
		t.Errorf("Expected ErrTransitionNotAllowed, but got: %v", err)
	}
	if sm.GetCurrentState() != "B" {
		t.Errorf("Expected current state to remain B after a blocked transition, but got %s", sm.GetCurrentState())
	}
}
