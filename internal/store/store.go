package store

import (
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"festival-bot/internal/models"
)

// Store owns the single shared database handle. Every component gets the
// same handle; mutations run inside transactions so concurrent chats cannot
// observe half-applied writes.
type Store struct {
	db *gorm.DB

	Registry *Registry
	Ledger   *Ledger
	Sessions *Sessions
	Audit    *Audit
}

func Open(path string) (*Store, error) {
	dsn := path + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := db.AutoMigrate(
		&models.Participant{},
		&models.VolunteerAssignment{},
		&models.ContestRecord{},
		&models.HomeSession{},
		&models.AuditEntry{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Store{db: db}
	s.Registry = &Registry{db: db}
	s.Ledger = &Ledger{db: db}
	s.Sessions = &Sessions{db: db}
	s.Audit = &Audit{db: db}
	return s, nil
}

// storageErr wraps an unexpected persistence failure in the ErrStorage
// sentinel so the controller can render a generic failure view.
func storageErr(err error) error {
	return fmt.Errorf("%w: %v", models.ErrStorage, err)
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return storageErr(err)
}
