// services/result_service.go
package services

import (
	"context"
	"time"

	"github.com/wfunc/bopserver/logger"
	"github.com/wfunc/bopserver/models"
	"github.com/wfunc/bopserver/persistence"
)

const saveTimeout = 5 * time.Second

// ResultService records finished games off the room goroutines. Rooms submit and
// move on; a slow or absent database never stalls gameplay.
type ResultService struct {
	db    persistence.Database
	queue chan models.GameRecord
}

func NewResultService(db persistence.Database, buffer int) *ResultService {
	if buffer <= 0 {
		buffer = 1
	}
	return &ResultService{db: db, queue: make(chan models.GameRecord, buffer)}
}

// Submit queues a record for saving. It reports false when no database is configured
// or the queue is full.
func (s *ResultService) Submit(record models.GameRecord) bool {
	if s == nil || s.db == nil {
		return false
	}
	select {
	case s.queue <- record:
		return true
	default:
		logger.Log.Warnw("result queue full, dropping game record", "room", record.RoomCode)
		return false
	}
}

// Run drains the queue until ctx is cancelled.
func (s *ResultService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case record := <-s.queue:
			// A save already started finishes even if ctx is cancelled meanwhile.
			s.save(context.WithoutCancel(ctx), record)
		}
	}
}

// Drain saves whatever is still queued and returns once the queue is empty or ctx
// is done. Call it after Run has returned, so late results are not lost on shutdown.
func (s *ResultService) Drain(ctx context.Context) int {
	if s == nil || s.db == nil {
		return 0
	}
	saved := 0
	for {
		select {
		case <-ctx.Done():
			if n := len(s.queue); n > 0 {
				logger.Log.Warnw("game records dropped on shutdown", "count", n)
			}
			return saved
		case record := <-s.queue:
			s.save(ctx, record)
			saved++
		default:
			return saved
		}
	}
}

func (s *ResultService) save(ctx context.Context, record models.GameRecord) {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	if err := s.db.SaveGameRecord(ctx, &record); err != nil {
		logger.Log.Errorw("failed to save game record", "room", record.RoomCode, "error", err)
		return
	}
	logger.Log.Infow("game record saved", "room", record.RoomCode, "winner", record.Winner)
}

// Recent returns up to limit finished games, newest first. Without a database the
// history is empty.
func (s *ResultService) Recent(ctx context.Context, limit int) ([]models.GameRecord, error) {
	if s == nil || s.db == nil {
		return []models.GameRecord{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.db.RecentGameRecords(ctx, limit)
}
