// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and Postgres, tracing, and schema migrations.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-chat-ledger/internal/domain"
)

// Open dispatches on driver ("sqlite" or "postgres"), installs the
// OpenTelemetry plugin and returns the handle. It does not migrate.
func Open(driver, path, dsn string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "", "sqlite":
		db, err = OpenSQLite(path)
	case "postgres":
		db, err = OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("gorm tracing: %w", err)
	}
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// OpenPostgres opens a Postgres database through pgx.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// AutoMigrate creates or updates every ledger table and seeds the singleton
// supply and pool rows, so FOR UPDATE reads always have a row to lock.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Account{},
		&domain.TokenSupply{},
		&domain.AuthorizedSpender{},
		&domain.ChatbotOwner{},
		&domain.DailyUsage{},
		&domain.PendingNative{},
		&domain.NativePool{},
		&domain.NativeTransfer{},
		&domain.Settlement{},
		&domain.Idempotency{},
	); err != nil {
		return err
	}
	return seedSingletons(db)
}

// seedSingletons inserts the zero supply and pool rows if they are missing.
// Existing totals are never touched.
func seedSingletons(db *gorm.DB) error {
	now := time.Now().UTC()
	ignore := clause.OnConflict{DoNothing: true}
	if err := db.Clauses(ignore).Create(&domain.TokenSupply{ID: domain.SupplyRowID, UpdatedAt: now}).Error; err != nil {
		return fmt.Errorf("seed token supply: %w", err)
	}
	if err := db.Clauses(ignore).Create(&domain.NativePool{ID: domain.PoolRowID, UpdatedAt: now}).Error; err != nil {
		return fmt.Errorf("seed native pool: %w", err)
	}
	return nil
}
