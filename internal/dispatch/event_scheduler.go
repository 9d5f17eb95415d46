package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
)

var (
	// ErrFireTimePassed is returned when start minus lead is already in the
	// past; nothing is scheduled.
	ErrFireTimePassed = errors.New("dispatch: fire time already passed")

	// ErrNoTarget is returned when Schedule is called without a target.
	ErrNoTarget = errors.New("dispatch: no delivery target")

	// ErrSchedulerStopped is returned by Schedule after Stop.
	ErrSchedulerStopped = errors.New("dispatch: event scheduler stopped")
)

// Handle cancels one scheduled event reminder.
type Handle struct {
	s       *EventScheduler
	eventID string
	p       *pendingEvent
	FireAt  time.Time
}

// Cancel stops the timer if it has not fired and was not replaced. It
// reports whether a pending timer was cancelled.
func (h *Handle) Cancel() bool {
	if h == nil || h.s == nil {
		return false
	}
	return h.s.cancel(h.eventID, h.p)
}

type pendingEvent struct {
	timer *time.Timer
}

// EventScheduler runs one-shot reminders for calendar events. Each event id
// has at most one pending timer; rescheduling the same id replaces it. The
// target bound at scheduling time receives the notification without a new
// directory lookup, so a closed session only produces a logged failure.
type EventScheduler struct {
	mu      sync.Mutex
	pending map[string]*pendingEvent
	stopped bool

	// Now defaults to time.Now.
	Now func() time.Time
	// DeliverTimeout bounds one delivery; default 10s.
	DeliverTimeout time.Duration
}

// NewEventScheduler returns an idle scheduler.
func NewEventScheduler() *EventScheduler {
	return &EventScheduler{
		pending:        make(map[string]*pendingEvent),
		Now:            time.Now,
		DeliverTimeout: 10 * time.Second,
	}
}

// Schedule arranges for text to be delivered to target at start minus lead.
// startISO must be RFC 3339.
func (e *EventScheduler) Schedule(eventID, startISO string, lead time.Duration, target Target, text string) (*Handle, error) {
	if target == nil {
		return nil, ErrNoTarget
	}
	start, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(startISO))
	if err != nil {
		return nil, fmt.Errorf("dispatch: event start %q: %w", startISO, err)
	}
	fireAt := start.Add(-lead)
	delay := fireAt.Sub(e.Now())
	if delay < 0 {
		remindersFired.WithLabelValues(outcomeEventPast).Inc()
		log.Info().Str("component", "event_scheduler").Str("event_id", eventID).
			Time("fire_at", fireAt).Msg("event reminder dropped, fire time already passed")
		return nil, ErrFireTimePassed
	}

	n := domain.FireNotification(domain.Reminder{ID: eventID, Text: text, DueAt: fireAt.UnixMilli()})
	p := &pendingEvent{}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil, ErrSchedulerStopped
	}
	if prev, ok := e.pending[eventID]; ok {
		prev.timer.Stop()
	}
	p.timer = time.AfterFunc(delay, func() { e.fire(eventID, p, target, n) })
	e.pending[eventID] = p
	eventTimersPending.Set(float64(len(e.pending)))

	return &Handle{s: e, eventID: eventID, p: p, FireAt: fireAt}, nil
}

// Cancel stops the pending reminder for eventID, if any.
func (e *EventScheduler) Cancel(eventID string) bool {
	return e.cancel(eventID, nil)
}

// Pending returns the number of timers waiting to fire.
func (e *EventScheduler) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Stop cancels every pending timer; later Schedule calls fail.
func (e *EventScheduler) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, p := range e.pending {
		p.timer.Stop()
		delete(e.pending, id)
	}
	e.stopped = true
	eventTimersPending.Set(0)
}

// cancel removes eventID when it still maps to want (any entry when want is nil).
func (e *EventScheduler) cancel(eventID string, want *pendingEvent) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pending[eventID]
	if !ok || (want != nil && p != want) {
		return false
	}
	delete(e.pending, eventID)
	eventTimersPending.Set(float64(len(e.pending)))
	return p.timer.Stop()
}

func (e *EventScheduler) fire(eventID string, p *pendingEvent, target Target, n domain.Notification) {
	e.mu.Lock()
	if cur, ok := e.pending[eventID]; !ok || cur != p {
		e.mu.Unlock()
		return
	}
	delete(e.pending, eventID)
	eventTimersPending.Set(float64(len(e.pending)))
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), e.DeliverTimeout)
	defer cancel()
	if err := target.Deliver(ctx, n); err != nil {
		remindersFired.WithLabelValues(outcomeEventFailed).Inc()
		log.Warn().Err(err).Str("component", "event_scheduler").Str("event_id", eventID).
			Str("target", target.Kind()).Msg("event reminder delivery failed")
		return
	}
	remindersFired.WithLabelValues(outcomeEventFired).Inc()
}
