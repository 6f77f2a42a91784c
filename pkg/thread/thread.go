// Package thread stores the shared, append-only message sequence for a
// conversation under conversation_<firstMessageID>. The thread is
// addressed by conversation id alone, so both participants' indices
// reference one copy.
package thread

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
	// ErrFetch is returned when the conversation path has no value.
	ErrFetch = errors.New("no value at path")
	// ErrThreadNotFound is returned by Append when the thread was never
	// created. It signals a logic error upstream: a conversation id is
	// being referenced without its creation flow having run.
	ErrThreadNotFound = errors.New("thread does not exist")
)

// IDPrefix prefixes every conversation id; the remainder is the id of
// the conversation's first message.
const IDPrefix = "conversation_"

// ConversationID derives the thread id from the first message's id.
// Deterministic: the same first message id always yields the same
// conversation id.
func ConversationID(firstMessageID string) string {
	return IDPrefix + firstMessageID
}

// Store reads and appends conversation threads.
type Store struct {
	store store.Store
}

func New(s store.Store) *Store {
	return &Store{store: s}
}

// Create unconditionally writes a single-element thread, establishing
// the conversation. Must be called exactly once per conversation id: a
// second call replaces the thread and discards its history.
func (t *Store) Create(conversationID string, first models.MessageRecord) error {
	if err := first.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(models.Thread{Messages: []models.MessageRecord{first}})
	if err != nil {
		return err
	}
	if err := t.store.Write(conversationID, raw); err != nil {
		logger.Log.Error("thread_create_failed", zap.String("conversation", conversationID), zap.Error(err))
		return err
	}
	logger.Log.Info("thread_created", zap.String("conversation", conversationID), zap.String("first_msg", first.ID))
	return nil
}

// Append adds msg to the end of an existing thread. Fails with
// ErrThreadNotFound when the conversation was never created; Create
// must seed the list first.
func (t *Store) Append(conversationID string, msg models.MessageRecord) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	err := t.store.Update(conversationID, func(cur []byte, ok bool) ([]byte, error) {
		if !ok {
			return nil, ErrThreadNotFound
		}
		var th models.Thread
		if err := json.Unmarshal(cur, &th); err != nil {
			return nil, fmt.Errorf("corrupt thread %s: %w", conversationID, err)
		}
		th.Messages = append(th.Messages, msg)
		return json.Marshal(th)
	})
	if err != nil {
		if !errors.Is(err, ErrThreadNotFound) {
			logger.Log.Error("thread_append_failed", zap.String("conversation", conversationID), zap.Error(err))
		}
		return err
	}
	logger.Log.Debug("message_appended", zap.String("conversation", conversationID), zap.String("msg_id", msg.ID))
	return nil
}

// List returns the thread's messages in insertion order, skipping
// records missing a required field. ErrFetch when the path is empty.
func (t *Store) List(conversationID string) ([]models.MessageRecord, error) {
	raw, ok, err := t.store.ReadOnce(conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrFetch
	}
	return decodeThread(conversationID, raw), nil
}

// Watch delivers the decoded message list on subscription and after
// every append, until ctx is done.
func (t *Store) Watch(ctx context.Context, conversationID string) (<-chan []models.MessageRecord, error) {
	raws, err := t.store.Watch(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	out := make(chan []models.MessageRecord, 1)
	go func() {
		defer close(out)
		for raw := range raws {
			msgs := decodeThread(conversationID, raw)
			select {
			case out <- msgs:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func decodeThread(conversationID string, raw []byte) []models.MessageRecord {
	var th models.Thread
	if err := json.Unmarshal(raw, &th); err != nil {
		logger.Log.Warn("thread_undecodable", zap.String("conversation", conversationID), zap.Error(err))
		return nil
	}
	kept := make([]models.MessageRecord, 0, len(th.Messages))
	for _, m := range th.Messages {
		if err := m.Validate(); err != nil {
			logger.Log.Warn("message_record_skipped", zap.String("conversation", conversationID), zap.Error(err))
			continue
		}
		kept = append(kept, m)
	}
	return kept
}
