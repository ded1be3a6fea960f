// Package store is the persistence layer. Every application lookup or write
// made on behalf of a user takes that user's id as a required argument and
// filters on it; admin review queries live under separately named methods.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cashadvance/models"
	"cashadvance/pkg/apperr"
	"cashadvance/pkg/logger"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Config selects and tunes the database connection.
type Config struct {
	Driver       string // postgres or sqlite
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxLife  time.Duration
	SlowQuery    time.Duration
}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to the configured database and applies pool settings.
func Open(cfg Config, log *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "", "postgres", "postgresql":
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, errors.New("DB_DSN is not set; a Postgres DSN is required")
		}
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "cashadvance.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if log == nil {
		log = logger.Discard()
	}
	slow := cfg.SlowQuery
	if slow == 0 {
		slow = 200 * time.Millisecond
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(log, slow),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(cfg.Driver, "sqlite") {
		// single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLife > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLife)
		}
	}
	return gdb, nil
}

// Migrate creates or updates every table. Each model is migrated on its own so
// a failure on one is reported without hiding the others.
func (s *Store) Migrate(ctx context.Context) error {
	var errs []error
	for _, m := range models.All() {
		if err := s.db.WithContext(ctx).AutoMigrate(m); err != nil {
			errs = append(errs, fmt.Errorf("migrate %T: %w", m, err))
		}
	}
	return errors.Join(errs...)
}

// WithTx runs fn with a Store bound to one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint")
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(what + " not found")
	}
	return fmt.Errorf("load %s: %w", what, err)
}
