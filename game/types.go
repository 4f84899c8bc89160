package game

import (
	"github.com/wfunc/bopserver/deck"
	"github.com/wfunc/bopserver/state"
)

// Player is identified by an opaque, stable id issued on first join.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Team rosters are ordered: the index drives clue-giver and bopper rotation.
type Team struct {
	Name    string   `json:"name"`
	Players []Player `json:"players"`
	Score   int      `json:"score"`
}

func (t *Team) indexOf(playerID string) int {
	for i, p := range t.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

func (t *Team) remove(playerID string) bool {
	i := t.indexOf(playerID)
	if i < 0 {
		return false
	}
	t.Players = append(t.Players[:i], t.Players[i+1:]...)
	return true
}

// Outcome is how a card left play.
type Outcome string

const (
	OutcomeEasy Outcome = "easy"
	OutcomeHard Outcome = "hard"
	OutcomeSkip Outcome = "skip"
	OutcomeBop  Outcome = "bop"
)

// TurnCard is a resolved card. A turn's list of them only grows.
type TurnCard struct {
	Card   deck.Card `json:"card"`
	Result Outcome   `json:"result"`
}

// Turn lives from startTurn until the next turn replaces it.
type Turn struct {
	TeamIndex      int        `json:"teamIndex"`
	ClueGiverIndex int        `json:"clueGiverIndex"`
	ClueGiverID    string     `json:"clueGiverId"`
	Boppers        []string   `json:"boppers"`
	TimeRemaining  int        `json:"timeRemaining"`
	Cards          []TurnCard `json:"cards"`
	CurrentCard    deck.Card  `json:"currentCard"`
}

func (t *Turn) clone() *Turn {
	c := *t
	c.Boppers = append([]string{}, t.Boppers...)
	c.Cards = append([]TurnCard{}, t.Cards...)
	return &c
}

// Snapshot is the serialisable game portion of a room's state.
type Snapshot struct {
	Settings  Settings    `json:"settings"`
	Phase     state.Phase `json:"phase"`
	Teams     [2]Team     `json:"teams"`
	DeckIndex int         `json:"deckIndex"`
	Round     int         `json:"round"`
	Turn      *Turn       `json:"turn"`
}
