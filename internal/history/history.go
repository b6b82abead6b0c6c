// Package history persists a record of completed downloads in a local sqlite
// database.
package history

import (
	"context"
	"embed"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"moul.io/zapgorm2"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// A Record is one completed download.
type Record struct {
	ID        string `gorm:"primaryKey"`
	Platform  string
	Title     string
	RawURL    string
	Dir       string
	Items     int
	Bytes     int64
	CreatedAt time.Time
}

func (Record) TableName() string {
	return "download"
}

// A Store is a sqlite-backed download history.
type Store struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// Open opens (creating if necessary) the history database at path and brings
// its schema up to date.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.L()
	}
	gormLogger := zapgorm2.New(logger.Named("history"))
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, log: logger.Sugar().Named("history")}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	fs, err := iofs.New(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", fs, "sqlite3", driver)
	if err != nil {
		return err
	}
	switch err = m.Up(); err {
	case nil:
		s.log.Debug("history migration complete")
	case migrate.ErrNoChange:
	default:
		return err
	}
	return nil
}

// Record inserts a completed download, assigning an ID and timestamp if unset.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// ListRecent returns up to limit records, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	var records []Record
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
