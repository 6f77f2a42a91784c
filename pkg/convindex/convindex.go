// Package convindex maintains each user's conversation list: the
// denormalized summaries stored under <formattedEmail>/conversations.
// Every conversation appears in both participants' indices; this
// package only ever touches one side at a time.
package convindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"chatdb/pkg/logger"
	"chatdb/pkg/models"
	"chatdb/pkg/store"
)

var (
	// ErrFetch is returned when the user has no conversation list yet.
	ErrFetch = errors.New("no value at path")
	// ErrNotFound is returned by RemoveEntry when no entry carries the
	// given conversation id. Distinct from a write failure: nothing was
	// modified.
	ErrNotFound = errors.New("conversation not in index")
)

// Index reads and rewrites per-user conversation lists.
type Index struct {
	store store.Store
}

func New(s store.Store) *Index {
	return &Index{store: s}
}

// IndexPath returns the conversations node for a formatted identity.
func IndexPath(formatted string) string {
	return formatted + "/conversations"
}

// ListForUser returns the user's current summaries. Records missing a
// required field are skipped, not fatal. ErrFetch when the path is empty.
func (ix *Index) ListForUser(formatted string) ([]models.ConversationSummary, error) {
	raw, ok, err := ix.store.ReadOnce(IndexPath(formatted))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrFetch
	}
	return decodeList(formatted, raw), nil
}

// Watch delivers the decoded list on subscription and again after every
// change to the user's index, until ctx is done.
func (ix *Index) Watch(ctx context.Context, formatted string) (<-chan []models.ConversationSummary, error) {
	raws, err := ix.store.Watch(ctx, IndexPath(formatted))
	if err != nil {
		return nil, err
	}
	out := make(chan []models.ConversationSummary, 1)
	go func() {
		defer close(out)
		for raw := range raws {
			list := decodeList(formatted, raw)
			select {
			case out <- list:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// UpsertEntry inserts summary into the user's list, or, when an entry
// with the same conversation id exists, replaces only its latest
// message. Insert and update are indistinguishable to the caller; both
// creation and send flows lean on that.
func (ix *Index) UpsertEntry(formatted string, summary models.ConversationSummary) error {
	if err := summary.Validate(); err != nil {
		return err
	}
	err := ix.store.Update(IndexPath(formatted), func(cur []byte, ok bool) ([]byte, error) {
		var list []models.ConversationSummary
		if ok {
			if err := json.Unmarshal(cur, &list); err != nil {
				return nil, fmt.Errorf("corrupt conversation index for %s: %w", formatted, err)
			}
		}
		found := false
		for i := range list {
			if list[i].ID == summary.ID {
				list[i].LatestMessage = summary.LatestMessage
				found = true
				break
			}
		}
		if !found {
			list = append(list, summary)
		}
		return json.Marshal(list)
	})
	if err != nil {
		logger.Log.Error("upsert_entry_failed", zap.String("user", formatted), zap.String("conversation", summary.ID), zap.Error(err))
		return err
	}
	logger.Log.Debug("entry_upserted", zap.String("user", formatted), zap.String("conversation", summary.ID))
	return nil
}

// RemoveEntry deletes the entry with the given conversation id from the
// user's list and writes the shortened list back. The shared thread and
// the counterpart's entry are left alone.
func (ix *Index) RemoveEntry(formatted, conversationID string) error {
	err := ix.store.Update(IndexPath(formatted), func(cur []byte, ok bool) ([]byte, error) {
		if !ok {
			return nil, ErrNotFound
		}
		var list []models.ConversationSummary
		if err := json.Unmarshal(cur, &list); err != nil {
			return nil, fmt.Errorf("corrupt conversation index for %s: %w", formatted, err)
		}
		pos := -1
		for i := range list {
			if list[i].ID == conversationID {
				pos = i
				break
			}
		}
		if pos < 0 {
			return nil, ErrNotFound
		}
		list = append(list[:pos], list[pos+1:]...)
		return json.Marshal(list)
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Log.Error("remove_entry_failed", zap.String("user", formatted), zap.String("conversation", conversationID), zap.Error(err))
		}
		return err
	}
	logger.Log.Info("entry_removed", zap.String("user", formatted), zap.String("conversation", conversationID))
	return nil
}

func decodeList(formatted string, raw []byte) []models.ConversationSummary {
	var list []models.ConversationSummary
	if err := json.Unmarshal(raw, &list); err != nil {
		logger.Log.Warn("conversation_index_undecodable", zap.String("user", formatted), zap.Error(err))
		return nil
	}
	kept := make([]models.ConversationSummary, 0, len(list))
	for _, c := range list {
		if err := c.Validate(); err != nil {
			logger.Log.Warn("conversation_entry_skipped", zap.String("user", formatted), zap.Error(err))
			continue
		}
		kept = append(kept, c)
	}
	return kept
}
