// Package services – ConversationService
//
// ConversationService gives the assistant per-identity memory. Each identity
// owns one Conversation row; every successful exchange appends the user turn
// and the assistant turn, and only the last Window turns are replayed to the
// model.
package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/llm"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/repo"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/utils"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"

	conversationPrompt = "Eres un asistente argentino, amable, natural y cercano."
)

// ChatModel produces a completion for a list of messages.
type ChatModel interface {
	Chat(ctx context.Context, msgs []llm.Message, opts llm.ChatOptions) (string, error)
}

// ConversationService answers free-form messages with memory.
type ConversationService struct {
	DB    *gorm.DB
	Model ChatModel
	Users *UserService

	// Window is how many past turns are sent to the model.
	Window      int
	MaxTokens   int
	Temperature float32
}

// NewConversationService returns a service with the default tuning.
func NewConversationService(db *gorm.DB, model ChatModel, users *UserService, window int) *ConversationService {
	return &ConversationService{
		DB:          db,
		Model:       model,
		Users:       users,
		Window:      window,
		MaxTokens:   250,
		Temperature: 0.9,
	}
}

// Reply answers text for identity and records both turns. Nothing is stored
// when the model fails.
func (s *ConversationService) Reply(ctx context.Context, identity, channel, text string) (string, error) {
	ctx, span := otel.Tracer("services/ConversationService").Start(ctx, "Reply",
		trace.WithAttributes(
			attribute.String("identity", identity),
			attribute.String("channel", channel),
		),
	)
	defer span.End()

	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", ErrEmptyIdentity
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}

	conv, err := repo.EnsureConversation(ctx, s.DB, identity, channel)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	history, err := repo.ListRecentTurns(ctx, s.DB, conv.ID, s.Window)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: s.systemPrompt(identity)})
	for _, t := range history {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: text})

	answer, err := s.Model.Chat(ctx, msgs, llm.ChatOptions{MaxTokens: s.MaxTokens, Temperature: s.Temperature})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	answer = strings.TrimSpace(answer)

	if _, err := repo.AppendTurn(ctx, s.DB, conv.ID, roleUser, text); err != nil {
		return answer, err
	}
	if _, err := repo.AppendTurn(ctx, s.DB, conv.ID, roleAssistant, answer); err != nil {
		return answer, err
	}
	span.SetAttributes(attribute.Int("history.turns", len(history)))
	return answer, nil
}

func (s *ConversationService) systemPrompt(identity string) string {
	if s.Users == nil {
		return conversationPrompt
	}
	if name := s.Users.DisplayName(identity); name != "" {
		return conversationPrompt + " El usuario se llama " + name + "."
	}
	return conversationPrompt
}

// History returns one page of the identity's turns in chronological order
// and the total count.
func (s *ConversationService) History(ctx context.Context, identity string, page, pageSize int) ([]domain.Turn, int64, error) {
	ctx, span := otel.Tracer("services/ConversationService").Start(ctx, "History",
		trace.WithAttributes(
			attribute.String("identity", identity),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	conv, err := repo.GetConversation(ctx, s.DB, identity)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, 0, ErrConversationNotFound
		}
		return nil, 0, err
	}
	page, pageSize = utils.Normalize(page, pageSize)
	total, err := repo.CountTurns(ctx, s.DB, conv.ID)
	if err != nil {
		return nil, 0, err
	}
	turns, err := repo.ListTurnsPage(ctx, s.DB, conv.ID, utils.Offset(page, pageSize), pageSize)
	if err != nil {
		return nil, 0, err
	}
	return turns, total, nil
}

// ConversationID returns the id of the identity's conversation.
func (s *ConversationService) ConversationID(ctx context.Context, identity string) (string, error) {
	conv, err := repo.GetConversation(ctx, s.DB, identity)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrConversationNotFound
		}
		return "", err
	}
	return conv.ID, nil
}

// Reset forgets every turn of the identity's conversation.
func (s *ConversationService) Reset(ctx context.Context, identity string) (int64, error) {
	id, err := s.ConversationID(ctx, identity)
	if err != nil {
		return 0, err
	}
	return repo.DeleteTurns(ctx, s.DB, id)
}
