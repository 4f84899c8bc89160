// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/wfunc/bopserver/models"
)

// PostgreSQL is the database/sql store over lib/pq.
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL connects with dsn, verifies the connection and creates the schema.
func NewPostgreSQL(ctx context.Context, dsn string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	p, err := NewPostgreSQLWithDB(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgreSQLWithDB wraps an open handle and creates the schema if needed.
func NewPostgreSQLWithDB(ctx context.Context, db *sql.DB) (*PostgreSQL, error) {
	if err := initTables(ctx, db); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &PostgreSQL{db: db}, nil
}

func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            room_code VARCHAR(8) NOT NULL,
            rounds INTEGER NOT NULL,
            winner INTEGER NOT NULL,
            teams JSONB NOT NULL,
            player_ids TEXT[] NOT NULL,
            started_at TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ NOT NULL,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_game_records_room_code ON game_records(room_code);
        CREATE INDEX IF NOT EXISTS idx_game_records_finished_at ON game_records(finished_at);
    `)
	return err
}

func (p *PostgreSQL) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	teams, err := json.Marshal(record.Teams)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO game_records (room_code, rounds, winner, teams, player_ids, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err = p.db.ExecContext(ctx, query,
		record.RoomCode,
		record.Rounds,
		record.Winner,
		teams,
		pq.Array(record.PlayerIDs()),
		record.StartedAt,
		record.FinishedAt)
	return err
}

func (p *PostgreSQL) RecentGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error) {
	query := `
        SELECT room_code, rounds, winner, teams, started_at, finished_at
        FROM game_records
        ORDER BY finished_at DESC
        LIMIT $1
    `
	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.GameRecord{}
	for rows.Next() {
		var (
			r     models.GameRecord
			teams []byte
		)
		if err := rows.Scan(&r.RoomCode, &r.Rounds, &r.Winner, &teams, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(teams, &r.Teams); err != nil {
			return nil, fmt.Errorf("decode teams of %s: %w", r.RoomCode, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
