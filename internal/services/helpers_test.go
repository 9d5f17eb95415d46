package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(&domain.Conversation{}, &domain.Turn{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// brokenBackend loads nothing and fails every save.
type brokenBackend struct{}

func (brokenBackend) Name() string { return "broken" }

func (brokenBackend) Load(context.Context) (*domain.Snapshot, error) { return nil, nil }

func (brokenBackend) Save(context.Context, *domain.Snapshot) error {
	return errors.New("disk full")
}
