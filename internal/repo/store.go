package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
)

// ErrPersist wraps any failure to write the snapshot. The in-memory state is
// already updated when it is returned; the next successful mutation rewrites
// the whole snapshot.
var ErrPersist = errors.New("persist snapshot")

// SnapshotBackend loads and saves the whole snapshot. Load returns (nil, nil)
// when nothing has been stored yet.
type SnapshotBackend interface {
	Name() string
	Load(ctx context.Context) (*domain.Snapshot, error)
	Save(ctx context.Context, snap *domain.Snapshot) error
}

// Store owns the single in-memory copy of users and reminders. All access
// goes through View and Mutate, which serialize on one mutex; every
// mutation that reports a change is persisted before Mutate returns.
type Store struct {
	mu      sync.Mutex
	snap    *domain.Snapshot
	backend SnapshotBackend
}

// OpenStore loads the snapshot from backend. A missing, unreadable or
// malformed snapshot is logged and the store starts empty; it never fails.
func OpenStore(ctx context.Context, backend SnapshotBackend) *Store {
	s := &Store{snap: domain.NewSnapshot(), backend: backend}
	if backend == nil {
		return s
	}
	snap, err := backend.Load(ctx)
	switch {
	case err != nil:
		log.Error().Err(err).Str("component", "store").Str("backend", backend.Name()).
			Msg("snapshot unreadable, starting empty")
	case snap != nil:
		snap.Normalize()
		s.snap = snap
		log.Info().Str("component", "store").Str("backend", backend.Name()).
			Int("users", len(snap.Users)).Int("reminders", len(snap.Reminders)).
			Msg("snapshot loaded")
	}
	return s
}

// NewMemoryStore returns a store that never touches disk.
func NewMemoryStore() *Store {
	return &Store{snap: domain.NewSnapshot()}
}

// View runs fn with read access to the snapshot. fn must not retain or
// modify the snapshot after returning.
//
// View and Mutate are meant for the registries in package services
// (ReminderService, UserService), which copy what they return. Other
// packages go through those services rather than touching the snapshot.
func (s *Store) View(fn func(snap *domain.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.snap)
}

// Mutate runs fn with write access to the snapshot. When fn reports a change
// the full snapshot is written before Mutate returns. A write failure is
// logged and returned wrapped in ErrPersist.
func (s *Store) Mutate(ctx context.Context, fn func(snap *domain.Snapshot) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !fn(s.snap) {
		return nil
	}
	return s.persistLocked(ctx)
}

// Flush rewrites the current snapshot unconditionally.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.Save(ctx, s.snap); err != nil {
		log.Error().Err(err).Str("component", "store").Str("backend", s.backend.Name()).
			Msg("snapshot write failed")
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}
