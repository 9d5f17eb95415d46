package repo

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
)

// JSONFileBackend stores the snapshot as one JSON document. Saves go to a
// sibling temp file which is then renamed over the target, so a reader never
// observes a partially written document.
type JSONFileBackend struct {
	Path string
}

// NewJSONFileBackend returns a backend writing to path.
func NewJSONFileBackend(path string) *JSONFileBackend {
	return &JSONFileBackend{Path: strings.TrimSpace(path)}
}

// Name implements SnapshotBackend.
func (b *JSONFileBackend) Name() string { return "json" }

// Load implements SnapshotBackend.
func (b *JSONFileBackend) Load(_ context.Context) (*domain.Snapshot, error) {
	if b == nil || b.Path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save implements SnapshotBackend.
func (b *JSONFileBackend) Save(_ context.Context, snap *domain.Snapshot) error {
	if b == nil || b.Path == "" || snap == nil {
		return nil
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(b.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := b.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, b.Path)
}
