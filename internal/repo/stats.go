// This file provides small aggregate queries used for conditional
// responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
)

// TurnsStats returns the number of turns in a conversation and the
// CreatedAt of the newest one. When the conversation has no turns, the
// returned count is 0 and lastAt is nil.
func TurnsStats(ctx context.Context, db *gorm.DB, conversationID string) (count int64, lastAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Turn{}).Where("conversation_id = ?", conversationID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
