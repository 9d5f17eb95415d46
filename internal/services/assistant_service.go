// Package services – AssistantService
//
// AssistantService routes one inbound user text from any channel. The model
// first classifies the text; calendar events are created in Google Calendar
// and armed with an event-triggered reminder, local reminders go to the
// registry, and everything else is answered by the conversation service.
// A collaborator failure never surfaces to the caller: it degrades to the
// next route or to a fixed fallback text.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/calendar"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/dispatch"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/llm"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/repo"
)

// Fixed replies.
const (
	FallbackReply      = "Perdón, tuve un problema para responder. ¿Probamos de nuevo?"
	LocalReminderReply = "📝 Listo, te lo guardé como recordatorio."
	voicePrompt        = "Sos un asistente breve para llamadas."
	eventDateLayout    = "02/01/2006 15:04"
)

// IntentClassifier labels an inbound text.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) (llm.Intent, error)
}

// CalendarClient creates calendar events.
type CalendarClient interface {
	CreateEvent(ctx context.Context, in calendar.EventInput) (*calendar.Event, error)
}

// EventTimer arms a one-shot reminder ahead of a calendar event.
type EventTimer interface {
	Schedule(eventID, startISO string, lead time.Duration, target dispatch.Target, text string) (*dispatch.Handle, error)
}

// Inbound is one user message entering the assistant.
type Inbound struct {
	Identity string
	Channel  string
	Text     string

	// Target receives the event-triggered reminder; nil disables it.
	Target dispatch.Target
}

// Reply is the assistant's answer.
type Reply struct {
	Text      string
	Intent    string
	Reminder  *domain.Reminder
	EventLink string
}

// AssistantService wires the routes together. Calendar and Events may be nil.
type AssistantService struct {
	Classifier    IntentClassifier
	Model         ChatModel
	Calendar      CalendarClient
	Events        EventTimer
	Reminders     *ReminderService
	Users         *UserService
	Conversations *ConversationService

	LocalReminderDelay time.Duration
	EventReminderLead  time.Duration
	Location           *time.Location
	Now                func() time.Time
}

func (s *AssistantService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AssistantService) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.Local
}

// Handle answers in. It always returns a text to send back.
func (s *AssistantService) Handle(ctx context.Context, in Inbound) Reply {
	ctx, span := otel.Tracer("services/AssistantService").Start(ctx, "Handle",
		trace.WithAttributes(
			attribute.String("identity", in.Identity),
			attribute.String("channel", in.Channel),
		),
	)
	defer span.End()

	lg := log.With().Str("component", "assistant").Str("identity", in.Identity).Str("channel", in.Channel).Logger()

	text := strings.TrimSpace(in.Text)
	if text == "" || strings.TrimSpace(in.Identity) == "" {
		return Reply{Text: FallbackReply, Intent: llm.IntentNone}
	}

	if s.Users != nil {
		if err := s.Users.Touch(ctx, in.Identity); err != nil {
			lg.Warn().Err(err).Msg("touch user")
		}
		if name, err := s.Users.CaptureName(ctx, in.Identity, text); err != nil {
			lg.Warn().Err(err).Msg("capture name")
		} else if name != "" {
			lg.Debug().Str("name", name).Msg("name captured")
		}
	}

	intent := llm.Intent{Intent: llm.IntentNone}
	if s.Classifier != nil {
		got, err := s.Classifier.Classify(ctx, text)
		if err != nil {
			lg.Warn().Err(err).Msg("classify failed, answering conversationally")
		} else {
			intent = got
		}
	}
	span.SetAttributes(attribute.String("intent", intent.Intent))

	switch intent.Intent {
	case llm.IntentCalendarEvent:
		if intent.StartISO != "" && s.Calendar != nil {
			if r, ok := s.scheduleEvent(ctx, in, intent); ok {
				return r
			}
			break
		}
		return s.saveLocal(ctx, in, text, intent)
	case llm.IntentLocalReminder:
		return s.saveLocal(ctx, in, text, intent)
	}

	return s.converse(ctx, in, text)
}

func (s *AssistantService) scheduleEvent(ctx context.Context, in Inbound, intent llm.Intent) (Reply, bool) {
	lg := log.With().Str("component", "assistant").Str("identity", in.Identity).Logger()

	ev, err := s.Calendar.CreateEvent(ctx, calendar.EventInput{
		Summary:     intent.Summary,
		Description: intent.Description,
		StartISO:    s.rfc3339(intent.StartISO),
		EndISO:      s.rfc3339(intent.EndISO),
		Attendees:   intent.Attendees,
	})
	if err != nil {
		lg.Error().Err(err).Msg("calendar create failed")
		return Reply{}, false
	}

	summary := ev.Summary
	if summary == "" {
		summary = calendar.DefaultSummary
	}
	if s.Events != nil && in.Target != nil {
		_, err := s.Events.Schedule(ev.ID, ev.Start.Format(time.RFC3339), s.EventReminderLead, in.Target, "⏰ Recordatorio: "+summary)
		switch {
		case errors.Is(err, dispatch.ErrFireTimePassed):
			lg.Info().Str("event_id", ev.ID).Msg("event too close, reminder skipped")
		case err != nil:
			lg.Warn().Err(err).Str("event_id", ev.ID).Msg("event reminder not scheduled")
		}
	}

	return Reply{
		Text:      fmt.Sprintf("✅ Agendado: *%s* el %s", summary, ev.Start.In(s.loc()).Format(eventDateLayout)),
		Intent:    llm.IntentCalendarEvent,
		EventLink: ev.HTMLLink,
	}, true
}

// rfc3339 rewrites a classifier time in any form ParseWhenString accepts,
// offset-less local times included, as RFC 3339 in the assistant's location.
// Unparseable input is passed through for the calendar to reject.
func (s *AssistantService) rfc3339(iso string) string {
	ms, err := ParseWhenString(iso, s.loc())
	if err != nil {
		return iso
	}
	return time.UnixMilli(ms).In(s.loc()).Format(time.RFC3339)
}

func (s *AssistantService) saveLocal(ctx context.Context, in Inbound, text string, intent llm.Intent) Reply {
	if s.Reminders == nil {
		return s.converse(ctx, in, text)
	}
	dueAt, err := ParseWhenString(intent.StartISO, s.loc())
	if err != nil {
		dueAt = s.now().Add(s.LocalReminderDelay).UnixMilli()
	}
	body := strings.TrimSpace(intent.Summary)
	if body == "" {
		body = text
	}
	r, err := s.Reminders.Create(ctx, in.Identity, body, dueAt)
	if err != nil && !errors.Is(err, repo.ErrPersist) {
		log.Error().Err(err).Str("component", "assistant").Msg("local reminder failed")
		return Reply{Text: FallbackReply, Intent: llm.IntentLocalReminder}
	}
	return Reply{Text: LocalReminderReply, Intent: llm.IntentLocalReminder, Reminder: &r}
}

func (s *AssistantService) converse(ctx context.Context, in Inbound, text string) Reply {
	if s.Conversations == nil {
		return Reply{Text: FallbackReply, Intent: llm.IntentNone}
	}
	answer, err := s.Conversations.Reply(ctx, in.Identity, in.Channel, text)
	if answer == "" {
		if err != nil {
			log.Error().Err(err).Str("component", "assistant").Str("identity", in.Identity).Msg("conversation failed")
		}
		return Reply{Text: FallbackReply, Intent: llm.IntentNone}
	}
	if err != nil {
		log.Warn().Err(err).Str("component", "assistant").Msg("conversation turn not stored")
	}
	return Reply{Text: answer, Intent: llm.IntentNone}
}

// VoiceReply produces a short spoken-style answer for a phone call.
func (s *AssistantService) VoiceReply(ctx context.Context, text string) (string, error) {
	if s.Model == nil {
		return "", llm.ErrDisabled
	}
	out, err := s.Model.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: voicePrompt},
		{Role: llm.RoleUser, Content: text},
	}, llm.ChatOptions{MaxTokens: 80, Temperature: 0.7})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
