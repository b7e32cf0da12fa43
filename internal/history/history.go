// Package history keeps an append-only log of registry mutations in SQLite via GORM.
package history

import (
	"fmt"
	"log/slog"

	"github.com/glebarez/sqlite"
	"github.com/vesaa/lansite/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the history database.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and runs AutoMigrate.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := db.AutoMigrate(&models.SiteEvent{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	log.Debug("history opened", "path", path)
	return &Store{db: db, logger: log}, nil
}

// Record appends a change.
func (s *Store) Record(c models.Change) error {
	ev := models.SiteEvent{Kind: c.Kind, Name: c.Name, Link: c.Link, At: c.At}
	return s.db.Create(&ev).Error
}

// Observe is a registry subscriber; failures are logged and never propagate to the mutation.
// External changes were already recorded by the process that made them.
func (s *Store) Observe(c models.Change) {
	if c.External {
		return
	}
	if err := s.Record(c); err != nil {
		s.logger.Warn("history record", "kind", c.Kind, "name", c.Name, "error", err)
	}
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(limit int) ([]models.SiteEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.SiteEvent
	err := s.db.Order("at desc").Order("id desc").Limit(limit).Find(&events).Error
	return events, err
}

// ForName returns every event recorded for a site name, oldest first.
func (s *Store) ForName(name string) ([]models.SiteEvent, error) {
	var events []models.SiteEvent
	err := s.db.Where("name = ?", name).Order("at asc").Order("id asc").Find(&events).Error
	return events, err
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
