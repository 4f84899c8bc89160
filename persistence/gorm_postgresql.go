// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/bopserver/logger"
	"github.com/wfunc/bopserver/models"
)

// GormPostgreSQL is the gorm-backed store.
type GormPostgreSQL struct {
	db *gorm.DB
}

// zapWriter routes gorm's log output into the process logger.
type zapWriter struct{}

func (zapWriter) Printf(format string, args ...any) {
	logger.Log.Debugf(format, args...)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.New(zapWriter{}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
		SkipDefaultTransaction: true,
	}
}

// NewGormPostgreSQL connects with dsn and migrates the schema.
func NewGormPostgreSQL(dsn string) (*GormPostgreSQL, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormGameRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &GormPostgreSQL{db: db}, nil
}

// NewGormPostgreSQLWithConn wraps an existing connection without migrating.
func NewGormPostgreSQLWithConn(conn *sql.DB) (*GormPostgreSQL, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 conn,
		PreferSimpleProtocol: true,
	}), gormConfig())
	if err != nil {
		return nil, err
	}
	return &GormPostgreSQL{db: db}, nil
}

func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	return p.db.WithContext(ctx).Create(models.NewGormGameRecord(record)).Error
}

func (p *GormPostgreSQL) RecentGameRecords(ctx context.Context, limit int) ([]models.GameRecord, error) {
	var rows []models.GormGameRecord
	err := p.db.WithContext(ctx).
		Order("finished_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]models.GameRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].GameRecord())
	}
	return records, nil
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
