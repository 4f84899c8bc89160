// models/gorm_models.go
package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// GormGameRecord is the game_records row as mapped by gorm.
type GormGameRecord struct {
	ID         uint                             `gorm:"primaryKey"`
	RoomCode   string                           `gorm:"size:8;index;not null"`
	Rounds     int                              `gorm:"not null"`
	Winner     int                              `gorm:"not null"`
	Teams      datatypes.JSONType[[]TeamResult] `gorm:"type:jsonb;not null"`
	PlayerIDs  pq.StringArray                   `gorm:"type:text[];not null"`
	StartedAt  time.Time                        `gorm:"not null"`
	FinishedAt time.Time                        `gorm:"index;not null"`
	CreatedAt  time.Time
}

func (GormGameRecord) TableName() string { return "game_records" }

func NewGormGameRecord(r *GameRecord) *GormGameRecord {
	return &GormGameRecord{
		RoomCode:   r.RoomCode,
		Rounds:     r.Rounds,
		Winner:     r.Winner,
		Teams:      datatypes.NewJSONType(r.Teams),
		PlayerIDs:  pq.StringArray(r.PlayerIDs()),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

func (g *GormGameRecord) GameRecord() GameRecord {
	return GameRecord{
		RoomCode:   g.RoomCode,
		Rounds:     g.Rounds,
		Teams:      g.Teams.Data(),
		Winner:     g.Winner,
		StartedAt:  g.StartedAt,
		FinishedAt: g.FinishedAt,
	}
}
