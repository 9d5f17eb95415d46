// Package dispatch delivers reminder notifications: the recipient directory
// that maps identities to live delivery targets, the periodic sweeper that
// fires due reminders, and the one-shot scheduler for calendar events.
package dispatch

import (
	"context"
	"sync"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
)

// Target is something a fire notification can be delivered to: an open
// interactive session or an asynchronous channel address.
type Target interface {
	Kind() string
	Deliver(ctx context.Context, n domain.Notification) error
}

// Closer is implemented by targets that can go away (sessions). A closed
// target is never returned by Directory.Resolve.
type Closer interface {
	Closed() bool
}

// FallbackFunc resolves identities that have no registered session, such as
// channel addresses that are always reachable.
type FallbackFunc func(identity string) (Target, bool)

// Directory maps identities to their current delivery target. At most one
// target is bound per identity; a later Register replaces the earlier one.
type Directory struct {
	mu       sync.RWMutex
	targets  map[string]Target
	fallback FallbackFunc
}

// NewDirectory returns an empty directory. fallback may be nil.
func NewDirectory(fallback FallbackFunc) *Directory {
	return &Directory{targets: make(map[string]Target), fallback: fallback}
}

// Register binds identity to t.
func (d *Directory) Register(identity string, t Target) {
	if identity == "" || t == nil {
		return
	}
	d.mu.Lock()
	d.targets[identity] = t
	d.mu.Unlock()
}

// Unregister removes the binding only if identity still points at t, so a
// stale session closing cannot evict its replacement. It reports whether a
// binding was removed.
func (d *Directory) Unregister(identity string, t Target) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.targets[identity]; ok && cur == t {
		delete(d.targets, identity)
		return true
	}
	return false
}

// Resolve returns the live target bound to identity, or the fallback's
// answer when none is bound.
func (d *Directory) Resolve(identity string) (Target, bool) {
	d.mu.RLock()
	t, ok := d.targets[identity]
	d.mu.RUnlock()
	if ok && !isClosed(t) {
		return t, true
	}
	if d.fallback != nil {
		return d.fallback(identity)
	}
	return nil, false
}

// Len returns the number of bound identities.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.targets)
}

func isClosed(t Target) bool {
	c, ok := t.(Closer)
	return ok && c.Closed()
}
