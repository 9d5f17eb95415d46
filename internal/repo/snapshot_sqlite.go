package repo

import (
	"context"
	"encoding/json"
	"maps"
	"slices"

	"gorm.io/gorm"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
)

// userRow is the relational form of a UserRecord; Prefs holds the JSON
// encoded preference map.
type userRow struct {
	Identity string `gorm:"type:varchar(128);primaryKey"`
	Prefs    string `gorm:"type:text;not null"`
}

func (userRow) TableName() string { return "users" }

// SQLiteBackend stores the snapshot in the users and reminders tables. Each
// save replaces both tables inside one transaction.
type SQLiteBackend struct {
	DB *gorm.DB
}

// NewSQLiteBackend returns a backend over db. Tables must already exist
// (see AutoMigrate).
func NewSQLiteBackend(db *gorm.DB) *SQLiteBackend {
	return &SQLiteBackend{DB: db}
}

// Name implements SnapshotBackend.
func (b *SQLiteBackend) Name() string { return "sqlite" }

// Load implements SnapshotBackend.
func (b *SQLiteBackend) Load(ctx context.Context) (*domain.Snapshot, error) {
	db := b.DB.WithContext(ctx)

	var users []userRow
	if err := db.Order("identity ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	var reminders []domain.Reminder
	if err := db.Order("seq ASC").Find(&reminders).Error; err != nil {
		return nil, err
	}
	if len(users) == 0 && len(reminders) == 0 {
		return nil, nil
	}

	snap := domain.NewSnapshot()
	for _, u := range users {
		rec := &domain.UserRecord{}
		if u.Prefs != "" {
			if err := json.Unmarshal([]byte(u.Prefs), &rec.Prefs); err != nil {
				return nil, err
			}
		}
		snap.Users[u.Identity] = rec
	}
	snap.Reminders = reminders
	return snap, nil
}

// Save implements SnapshotBackend.
func (b *SQLiteBackend) Save(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil {
		return nil
	}
	users := make([]userRow, 0, len(snap.Users))
	for _, id := range slices.Sorted(maps.Keys(snap.Users)) {
		prefs := map[string]any{}
		if u := snap.Users[id]; u != nil && u.Prefs != nil {
			prefs = u.Prefs
		}
		raw, err := json.Marshal(prefs)
		if err != nil {
			return err
		}
		users = append(users, userRow{Identity: id, Prefs: string(raw)})
	}
	reminders := make([]domain.Reminder, len(snap.Reminders))
	for i, r := range snap.Reminders {
		r.Seq = i
		reminders[i] = r
	}

	return b.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.Reminder{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&userRow{}).Error; err != nil {
			return err
		}
		if len(users) > 0 {
			if err := tx.CreateInBatches(users, 200).Error; err != nil {
				return err
			}
		}
		if len(reminders) > 0 {
			// Select("*") so zero values (done=false, seq=0) are written as-is.
			if err := tx.Select("*").CreateInBatches(reminders, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
