// Package repo implements the persistent feed cache, backed by GORM. This
// file contains database bootstrapping helpers for SQLite (pure Go driver)
// and schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/gfycat/feedcore/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
// When trace is set, GORM operations are reported to the global OTel
// tracer provider.
func OpenSQLite(path string, trace bool) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
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

	if trace {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// AutoMigrate creates or upgrades the feed cache schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Gfycat{},
		&domain.Feed{},
		&domain.FeedItem{},
		&domain.BlockedGfycat{},
		&domain.BlockedUser{},
	)
}
