// Package directory maintains the flat user registry stored under the
// "users" path: one append-only list of name/email pairs used for
// membership checks and people search.
package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"chatdb/pkg/logger"
	"chatdb/pkg/models"
	"chatdb/pkg/store"
)

// Path is the blob store location of the registry.
const Path = "users"

// ErrFetch is returned when the registry path has no value yet.
var ErrFetch = errors.New("no value at path")

// Directory reads and grows the user registry. The fetched list is
// cached per Directory instance; Invalidate drops the cache after an
// out-of-band change.
type Directory struct {
	store store.Store

	mu     sync.Mutex
	cache  []models.DirectoryEntry
	cached bool
}

func New(s store.Store) *Directory {
	return &Directory{store: s}
}

// Register appends entry to the registry, creating the list on first
// use. The whole list is rewritten; Update keeps concurrent
// registrations in this process from losing each other.
func (d *Directory) Register(entry models.DirectoryEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	err := d.store.Update(Path, func(cur []byte, ok bool) ([]byte, error) {
		var entries []models.DirectoryEntry
		if ok {
			if err := json.Unmarshal(cur, &entries); err != nil {
				return nil, fmt.Errorf("corrupt user registry: %w", err)
			}
		}
		entries = append(entries, entry)
		return json.Marshal(entries)
	})
	if err != nil {
		logger.Log.Error("register_user_failed", zap.String("email", entry.Email), zap.Error(err))
		return err
	}
	d.Invalidate()
	logger.Log.Info("user_registered", zap.String("email", entry.Email))
	return nil
}

// ListAll returns every registry entry, fetching once per cache
// lifetime. Fails with ErrFetch when no user has registered yet.
func (d *Directory) ListAll() ([]models.DirectoryEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached {
		return append([]models.DirectoryEntry(nil), d.cache...), nil
	}
	raw, ok, err := d.store.ReadOnce(Path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrFetch
	}
	var entries []models.DirectoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("corrupt user registry: %w", err)
	}
	kept := entries[:0]
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			logger.Log.Warn("directory_entry_skipped", zap.Error(err))
			continue
		}
		kept = append(kept, e)
	}
	d.cache = append([]models.DirectoryEntry(nil), kept...)
	d.cached = true
	return kept, nil
}

// FindByPrefix returns entries whose display name starts with term,
// case-insensitively, excluding the requester's own email.
func (d *Directory) FindByPrefix(term, requesterEmail string) ([]models.DirectoryEntry, error) {
	entries, err := d.ListAll()
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(term)
	var out []models.DirectoryEntry
	for _, e := range entries {
		if e.Email == requesterEmail {
			continue
		}
		if strings.HasPrefix(strings.ToLower(e.Name), term) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Invalidate drops the cached registry list.
func (d *Directory) Invalidate() {
	d.mu.Lock()
	d.cache = nil
	d.cached = false
	d.mu.Unlock()
}
