// Package services – UserService
//
// UserService keeps the per-identity preference map inside the durable
// snapshot. Records are created lazily on first contact and patched with a
// shallow merge; a record is never replaced wholesale.
package services

import (
	"context"
	"maps"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/repo"
)

// PrefName is the preference key holding the user's display name.
const PrefName = "name"

var nameRE = regexp.MustCompile(`(?i)(?:me llamo|soy)\s+([A-Za-zÁÉÍÓÚÑÜáéíóúñü]+(?:\s+[A-Za-zÁÉÍÓÚÑÜáéíóúñü]+){0,2})`)

// nameStop ends a captured name ("soy Ana y vivo en Rosario" -> "Ana").
var nameStop = map[string]struct{}{
	"y": {}, "e": {}, "pero": {}, "que": {}, "tengo": {}, "vivo": {}, "desde": {}, "con": {}, "el": {}, "la": {},
	"de": {}, "del": {}, "un": {}, "una": {}, "muy": {}, "tu": {},
}

// UserService manages user records.
type UserService struct {
	Store *repo.Store
}

// NewUserService returns a UserService over store.
func NewUserService(store *repo.Store) *UserService {
	return &UserService{Store: store}
}

// Touch creates the identity's record if missing. Only a creation is persisted.
func (s *UserService) Touch(ctx context.Context, identity string) error {
	if strings.TrimSpace(identity) == "" {
		return ErrEmptyIdentity
	}
	return s.Store.Mutate(ctx, func(snap *domain.Snapshot) bool {
		if _, ok := snap.Users[identity]; ok {
			return false
		}
		snap.Users[identity] = &domain.UserRecord{Prefs: map[string]any{}}
		return true
	})
}

// MergePrefs shallow-merges patch into the identity's prefs, creating the
// record if needed, and returns a copy of the merged map.
func (s *UserService) MergePrefs(ctx context.Context, identity string, patch map[string]any) (map[string]any, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, ErrEmptyIdentity
	}
	if len(patch) == 0 {
		return nil, ErrInvalidPrefs
	}
	for k := range patch {
		if strings.TrimSpace(k) == "" {
			return nil, ErrInvalidPrefs
		}
	}
	var out map[string]any
	err := s.Store.Mutate(ctx, func(snap *domain.Snapshot) bool {
		u, ok := snap.Users[identity]
		if !ok || u == nil {
			u = &domain.UserRecord{}
			snap.Users[identity] = u
		}
		if u.Prefs == nil {
			u.Prefs = map[string]any{}
		}
		maps.Copy(u.Prefs, patch)
		out = maps.Clone(u.Prefs)
		return true
	})
	return out, err
}

// Prefs returns a copy of the identity's prefs (empty when unknown).
func (s *UserService) Prefs(identity string) map[string]any {
	out := map[string]any{}
	s.Store.View(func(snap *domain.Snapshot) {
		if u, ok := snap.Users[identity]; ok && u != nil {
			maps.Copy(out, u.Prefs)
		}
	})
	return out
}

// DisplayName returns prefs.name when it is a non-empty string.
func (s *UserService) DisplayName(identity string) string {
	if v, ok := s.Prefs(identity)[PrefName].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// CaptureName stores the name declared in text ("me llamo Ana", "soy Ana")
// and returns it. "estoy" phrases are not introductions.
func (s *UserService) CaptureName(ctx context.Context, identity, text string) (string, error) {
	name := s.extractName(text)
	if name == "" {
		return "", nil
	}
	_, err := s.MergePrefs(ctx, identity, map[string]any{PrefName: name})
	return name, err
}

func (s *UserService) extractName(text string) string {
	low := strings.ToLower(text)
	if !strings.Contains(low, "me llamo") && (!strings.Contains(low, "soy") || strings.Contains(low, "estoy")) {
		return ""
	}
	m := nameRE.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	words := strings.Fields(m[1])
	for i, w := range words {
		if _, stop := nameStop[strings.ToLower(w)]; stop {
			words = words[:i]
			break
		}
	}
	if len(words) == 0 {
		return ""
	}
	// Casers are stateful; one per call.
	return cases.Title(language.Spanish).String(strings.Join(words, " "))
}
