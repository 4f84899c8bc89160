// persistence/interface.go
package persistence

import (
	"context"

	"github.com/wfunc/bopserver/models"
)

// Database stores finished-game results.
type Database interface {
	SaveGameRecord(ctx context.Context, record *models.GameRecord) error
	// RecentGameRecords returns up to limit records, newest first.
	RecentGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error)
	Close() error
}
