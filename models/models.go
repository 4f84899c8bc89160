// models/models.go
package models

import (
	"time"
)

// GameRecord is the outcome of one finished game. Only results are recorded; rooms
// themselves are never persisted.
type GameRecord struct {
	RoomCode   string       `json:"roomCode"`
	Rounds     int          `json:"rounds"`
	Teams      []TeamResult `json:"teams"`
	Winner     int          `json:"winner"` // team index, -1 on a tie
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
}

// TeamResult is one team's final roster and score.
type TeamResult struct {
	Name    string         `json:"name"`
	Score   int            `json:"score"`
	Players []PlayerResult `json:"players"`
}

type PlayerResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PlayerIDs lists every player id in the record, team by team.
func (r *GameRecord) PlayerIDs() []string {
	ids := []string{}
	for _, t := range r.Teams {
		for _, p := range t.Players {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
