// This file provides repository functions for conversation memory: one
// Conversation row per identity and its ordered Turns.
//
// All functions are context-aware and accept a *gorm.DB handle so they can
// run inside transactions. They hold no business logic.
package repo

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetConversation fetches the conversation owned by identity, or ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, identity string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("identity = ?", identity).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// EnsureConversation returns the identity's conversation, creating it on
// first contact. A concurrent creator losing the unique-index race re-reads
// the winner's row.
func EnsureConversation(ctx context.Context, db *gorm.DB, identity, channel string) (*domain.Conversation, error) {
	c, err := GetConversation(ctx, db, identity)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	now := time.Now().UTC()
	c = &domain.Conversation{
		ID:        uuid.NewString(),
		Identity:  identity,
		Channel:   channel,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") || errors.Is(err, gorm.ErrDuplicatedKey) {
			return GetConversation(ctx, db, identity)
		}
		return nil, err
	}
	return c, nil
}

// AppendTurn inserts a turn and bumps the conversation's UpdatedAt.
func AppendTurn(ctx context.Context, db *gorm.DB, conversationID, role, content string) (*domain.Turn, error) {
	t := &domain.Turn{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", t.CreatedAt).Error
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListRecentTurns returns the last limit turns in chronological order.
func ListRecentTurns(ctx context.Context, db *gorm.DB, conversationID string, limit int) ([]domain.Turn, error) {
	var out []domain.Turn
	q := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// CountTurns returns the number of turns in a conversation.
func CountTurns(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Turn{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error
	return total, err
}

// ListTurnsPage returns a page of turns in chronological order.
// The caller is responsible for computing offset and limit.
func ListTurnsPage(ctx context.Context, db *gorm.DB, conversationID string, offset, limit int) ([]domain.Turn, error) {
	var out []domain.Turn
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteTurns removes every turn of a conversation and returns the count.
func DeleteTurns(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	res := db.WithContext(ctx).Where("conversation_id = ?", conversationID).Delete(&domain.Turn{})
	return res.RowsAffected, res.Error
}
