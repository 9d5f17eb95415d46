// Package repo implements the persistence layer: the durable reminder/user
// snapshot store and the GORM-backed tables for conversation memory and
// idempotency records.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
)

// pragmas are applied in order on every OpenSQLite. WAL lets the sweeper
// flush snapshots while webhooks read conversation history.
var pragmas = []string{
	"journal_mode=WAL",
	"synchronous=NORMAL",
	"foreign_keys=ON",
	"busy_timeout=5000",
}

const maxOpenConns = 10

// OpenSQLite opens (or creates) the service database, applies pragmas and
// installs the OpenTelemetry tracing plugin. In-memory DSNs (":memory:" or
// "file:...mode=memory") skip the directory check.
func OpenSQLite(path string) (*gorm.DB, error) {
	if !isMemoryDSN(path) {
		// A missing parent dir otherwise surfaces as an opaque sqlite error.
		if dir := filepath.Dir(path); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, err
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	for _, p := range pragmas {
		if err := db.Exec("PRAGMA " + p).Error; err != nil {
			return nil, fmt.Errorf("pragma %s: %w", p, err)
		}
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxOpenConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

func isMemoryDSN(path string) bool {
	return path == ":memory:" || (strings.HasPrefix(path, "file:") && strings.Contains(path, "mode=memory"))
}

// AutoMigrate creates or updates every table owned by the service,
// including the ones used by the sqlite snapshot backend.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Conversation{},
		&domain.Turn{},
		&domain.Idempotency{},
		&domain.Reminder{},
		&userRow{},
	)
}
