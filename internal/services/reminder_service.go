// Package services – ReminderService
//
// ReminderService owns the reminder lifecycle on top of the durable store:
// creation, due selection, idempotent firing and per-identity listing. Every
// mutation goes through repo.Store.Mutate, so the snapshot is rewritten before
// the call returns. The only failure mode is a snapshot write error, returned
// wrapped in repo.ErrPersist while the in-memory state keeps the change.
package services

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/repo"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/search"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/utils"
)

// ReminderService is the reminder registry.
type ReminderService struct {
	Store *repo.Store

	// NewID allocates reminder ids; defaults to a ULID.
	NewID func() string
}

// NewReminderService returns a registry over store.
func NewReminderService(store *repo.Store) *ReminderService {
	return &ReminderService{
		Store: store,
		NewID: func() string { return ulid.Make().String() },
	}
}

// Create appends a new unfired reminder and persists the snapshot. A dueAt
// in the past is legal and makes the reminder immediately due. On a write
// failure the created record is still returned together with the error.
func (s *ReminderService) Create(ctx context.Context, identity, text string, dueAt int64) (domain.Reminder, error) {
	ctx, span := otel.Tracer("services/ReminderService").Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("identity", identity),
			attribute.Int64("due_at", dueAt),
		),
	)
	defer span.End()

	identity = strings.TrimSpace(identity)
	if identity == "" {
		return domain.Reminder{}, ErrEmptyIdentity
	}

	r := domain.Reminder{
		ID:       s.NewID(),
		Identity: identity,
		Text:     text,
		DueAt:    dueAt,
	}
	err := s.Store.Mutate(ctx, func(snap *domain.Snapshot) bool {
		snap.Reminders = append(snap.Reminders, r)
		return true
	})
	if err != nil {
		span.RecordError(err)
	}
	return r, err
}

// Due returns every unfired reminder with dueAt <= now, in insertion order.
func (s *ReminderService) Due(now time.Time) []domain.Reminder {
	nowMS := now.UnixMilli()
	var out []domain.Reminder
	s.Store.View(func(snap *domain.Snapshot) {
		for _, r := range snap.Reminders {
			if r.IsDue(nowMS) {
				out = append(out, r)
			}
		}
	})
	return out
}

// MarkFired sets done on the given reminders. Already fired or unknown ids
// are ignored; when nothing changes the snapshot is not rewritten. It returns
// how many reminders transitioned.
func (s *ReminderService) MarkFired(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	fired := 0
	err := s.Store.Mutate(ctx, func(snap *domain.Snapshot) bool {
		for i := range snap.Reminders {
			r := &snap.Reminders[i]
			if _, ok := want[r.ID]; ok && !r.Done {
				r.Done = true
				fired++
			}
		}
		return fired > 0
	})
	return fired, err
}

// ListFor returns every reminder of identity, fired or not, in insertion order.
func (s *ReminderService) ListFor(identity string) []domain.Reminder {
	out := []domain.Reminder{}
	s.Store.View(func(snap *domain.Snapshot) {
		for _, r := range snap.Reminders {
			if r.Identity == identity {
				out = append(out, r)
			}
		}
	})
	return out
}

// ListPage returns one page of ListFor plus the total count.
func (s *ReminderService) ListPage(identity string, page, pageSize int) ([]domain.Reminder, int64) {
	all := s.ListFor(identity)
	start, end := utils.Bounds(len(all), page, pageSize)
	return slices.Clone(all[start:end]), int64(len(all))
}

// Search returns identity's reminders whose text matches query, best match
// first. Accents and case are ignored, as are common Spanish filler words.
func (s *ReminderService) Search(identity, query string) []domain.Reminder {
	all := s.ListFor(identity)
	docs := make([]search.Doc, len(all))
	byID := make(map[string]domain.Reminder, len(all))
	for i, r := range all {
		docs[i] = search.Doc{ID: r.ID, Text: r.Text}
		byID[r.ID] = r
	}
	hits := search.New(docs, search.WithStopwords(search.SpanishStopwords)).TopK(query, 0)
	out := make([]domain.Reminder, 0, len(hits))
	for _, h := range hits {
		out = append(out, byID[h.ID])
	}
	return out
}

// Get returns the reminder with id owned by identity.
func (s *ReminderService) Get(identity, id string) (domain.Reminder, error) {
	var (
		out   domain.Reminder
		found bool
	)
	s.Store.View(func(snap *domain.Snapshot) {
		for _, r := range snap.Reminders {
			if r.ID == id && r.Identity == identity {
				out, found = r, true
				return
			}
		}
	})
	if !found {
		return domain.Reminder{}, ErrReminderNotFound
	}
	return out, nil
}
