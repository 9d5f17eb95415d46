package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/calendar"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/dispatch"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/llm"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/repo"
)

type fakeClassifier struct {
	intent llm.Intent
	err    error
}

func (f fakeClassifier) Classify(context.Context, string) (llm.Intent, error) {
	return f.intent, f.err
}

type fakeCalendar struct {
	got calendar.EventInput
	err error
}

func (f *fakeCalendar) CreateEvent(_ context.Context, in calendar.EventInput) (*calendar.Event, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	start, _ := time.Parse(time.RFC3339, in.StartISO)
	return &calendar.Event{ID: "ev1", Summary: in.Summary, HTMLLink: "https://cal.test/ev1", Start: start}, nil
}

type fakeTimer struct {
	eventID string
	start   string
	lead    time.Duration
	text    string
	target  dispatch.Target
	err     error
}

func (f *fakeTimer) Schedule(eventID, startISO string, lead time.Duration, target dispatch.Target, text string) (*dispatch.Handle, error) {
	f.eventID, f.start, f.lead, f.target, f.text = eventID, startISO, lead, target, text
	return nil, f.err
}

type nopTarget struct{}

func (nopTarget) Kind() string { return "test" }

func (nopTarget) Deliver(context.Context, domain.Notification) error { return nil }

type assistantFixture struct {
	svc   *AssistantService
	model *fakeModel
	cal   *fakeCalendar
	timer *fakeTimer
}

func newAssistant(t *testing.T, intent llm.Intent, classifyErr error) *assistantFixture {
	t.Helper()
	store := repo.NewMemoryStore()
	users := NewUserService(store)
	model := &fakeModel{reply: "charla"}
	f := &assistantFixture{model: model, cal: &fakeCalendar{}, timer: &fakeTimer{}}
	f.svc = &AssistantService{
		Classifier:         fakeClassifier{intent: intent, err: classifyErr},
		Model:              model,
		Calendar:           f.cal,
		Events:             f.timer,
		Reminders:          NewReminderService(store),
		Users:              users,
		Conversations:      NewConversationService(newTestDB(t), model, users, 12),
		LocalReminderDelay: 30 * time.Minute,
		EventReminderLead:  10 * time.Minute,
		Location:           time.UTC,
		Now:                func() time.Time { return time.UnixMilli(1_000_000) },
	}
	return f
}

func TestAssistant_CalendarEvent(t *testing.T) {
	f := newAssistant(t, llm.Intent{
		Intent:   llm.IntentCalendarEvent,
		Summary:  "Dentista",
		StartISO: "2030-03-04T15:30:00Z",
	}, nil)

	r := f.svc.Handle(context.Background(), Inbound{Identity: "u1", Channel: "web", Text: "dentista el martes", Target: nopTarget{}})
	if r.Text != "✅ Agendado: *Dentista* el 04/03/2030 15:30" {
		t.Fatalf("reply = %q", r.Text)
	}
	if r.Intent != llm.IntentCalendarEvent || r.EventLink == "" {
		t.Fatalf("unexpected reply: %+v", r)
	}
	if f.timer.eventID != "ev1" || f.timer.lead != 10*time.Minute || f.timer.text != "⏰ Recordatorio: Dentista" {
		t.Fatalf("event reminder not armed correctly: %+v", f.timer)
	}
}

func TestAssistant_CalendarEventLocalTimeWithoutOffset(t *testing.T) {
	f := newAssistant(t, llm.Intent{
		Intent:   llm.IntentCalendarEvent,
		Summary:  "Reunión",
		StartISO: "2030-03-04T15:30",
		EndISO:   "2030-03-04T16:00:00",
	}, nil)
	art := time.FixedZone("ART", -3*3600)
	f.svc.Location = art

	r := f.svc.Handle(context.Background(), Inbound{Identity: "u1", Text: "reunión el martes", Target: nopTarget{}})
	if r.Intent != llm.IntentCalendarEvent || r.Text != "✅ Agendado: *Reunión* el 04/03/2030 15:30" {
		t.Fatalf("offset-less start should still book the event: %+v", r)
	}
	if f.cal.got.StartISO != "2030-03-04T15:30:00-03:00" || f.cal.got.EndISO != "2030-03-04T16:00:00-03:00" {
		t.Fatalf("calendar input = %+v", f.cal.got)
	}
	if f.timer.start != "2030-03-04T15:30:00-03:00" || f.timer.eventID != "ev1" {
		t.Fatalf("event reminder start = %q (%+v)", f.timer.start, f.timer)
	}
}

func TestAssistant_CalendarEventTooCloseStillConfirms(t *testing.T) {
	f := newAssistant(t, llm.Intent{Intent: llm.IntentCalendarEvent, StartISO: "2030-03-04T15:30:00Z"}, nil)
	f.timer.err = dispatch.ErrFireTimePassed

	r := f.svc.Handle(context.Background(), Inbound{Identity: "u1", Text: "ya", Target: nopTarget{}})
	if !strings.HasPrefix(r.Text, "✅ Agendado") {
		t.Fatalf("reply = %q", r.Text)
	}
}

func TestAssistant_CalendarFailureFallsBackToChat(t *testing.T) {
	f := newAssistant(t, llm.Intent{Intent: llm.IntentCalendarEvent, StartISO: "2030-03-04T15:30:00Z"}, nil)
	f.cal.err = errors.New("google down")

	r := f.svc.Handle(context.Background(), Inbound{Identity: "u1", Text: "turno"})
	if r.Text != "charla" {
		t.Fatalf("reply = %q; want conversational fallback", r.Text)
	}
}

func TestAssistant_CalendarUnconfiguredSavesLocal(t *testing.T) {
	f := newAssistant(t, llm.Intent{Intent: llm.IntentCalendarEvent, Summary: "Reunión", StartISO: "2030-03-04T15:30:00Z"}, nil)
	f.svc.Calendar = nil

	r := f.svc.Handle(context.Background(), Inbound{Identity: "u1", Text: "reunión"})
	if r.Text != LocalReminderReply || r.Reminder == nil {
		t.Fatalf("reply = %+v", r)
	}
	want := time.Date(2030, 3, 4, 15, 30, 0, 0, time.UTC).UnixMilli()
	if r.Reminder.DueAt != want || r.Reminder.Text != "Reunión" {
		t.Fatalf("reminder = %+v", r.Reminder)
	}
}

func TestAssistant_LocalReminderDefaultDelay(t *testing.T) {
	f := newAssistant(t, llm.Intent{Intent: llm.IntentLocalReminder}, nil)

	r := f.svc.Handle(context.Background(), Inbound{Identity: "u1", Text: "acordame de regar"})
	if r.Reminder == nil {
		t.Fatalf("expected a reminder")
	}
	if r.Reminder.DueAt != 1_000_000+(30*time.Minute).Milliseconds() {
		t.Fatalf("dueAt = %d", r.Reminder.DueAt)
	}
	if r.Reminder.Text != "acordame de regar" {
		t.Fatalf("text should default to the message: %q", r.Reminder.Text)
	}
	if len(f.svc.Reminders.ListFor("u1")) != 1 {
		t.Fatalf("reminder not stored in registry")
	}
}

func TestAssistant_ClassifyFailureConverses(t *testing.T) {
	f := newAssistant(t, llm.Intent{}, errors.New("bad json"))

	r := f.svc.Handle(context.Background(), Inbound{Identity: "u1", Channel: "whatsapp", Text: "me llamo sofía"})
	if r.Text != "charla" || r.Intent != llm.IntentNone {
		t.Fatalf("reply = %+v", r)
	}
	if f.svc.Users.DisplayName("u1") != "Sofía" {
		t.Fatalf("name should be captured before routing")
	}
}

func TestAssistant_ModelDownGivesFallback(t *testing.T) {
	f := newAssistant(t, llm.Intent{Intent: llm.IntentNone}, nil)
	f.model.err = errors.New("down")

	if r := f.svc.Handle(context.Background(), Inbound{Identity: "u1", Text: "hola"}); r.Text != FallbackReply {
		t.Fatalf("reply = %q", r.Text)
	}
	if r := f.svc.Handle(context.Background(), Inbound{Identity: "", Text: "hola"}); r.Text != FallbackReply {
		t.Fatalf("blank identity reply = %q", r.Text)
	}
}

func TestAssistant_VoiceReply(t *testing.T) {
	f := newAssistant(t, llm.Intent{}, nil)
	f.model.reply = " dale "
	got, err := f.svc.VoiceReply(context.Background(), "hola")
	if err != nil || got != "dale" {
		t.Fatalf("VoiceReply = %q, %v", got, err)
	}
	msgs := f.model.last()
	if msgs[0].Content != voicePrompt || f.model.opts[0].MaxTokens != 80 {
		t.Fatalf("unexpected voice call: %+v %+v", msgs, f.model.opts)
	}
}
