// Package syncer orchestrates the multi-location writes behind every
// conversation operation. A conversation lives in three places: the
// shared thread and a summary in each participant's index. The blob
// store has no multi-path transaction, so each flow runs as a linear
// saga of named steps; a failure partway through leaves earlier steps
// committed and reports them, it never rolls back.
package syncer

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"chatdb/pkg/convindex"
	"chatdb/pkg/directory"
	"chatdb/pkg/identity"
	"chatdb/pkg/logger"
	"chatdb/pkg/models"
	"chatdb/pkg/store"
	"chatdb/pkg/thread"
)

// ErrUserNotFound is returned when the requester has no user record,
// which blocks conversation creation.
var ErrUserNotFound = errors.New("user record not found")

// Step names one stage of a saga; PartialError carries them so callers
// can see which writes committed before the failure.
type Step string

const (
	StepLookupRequester   Step = "lookup_requester"
	StepUpsertCounterpart Step = "upsert_counterpart_index"
	StepUpsertRequester   Step = "upsert_requester_index"
	StepSeedThread        Step = "seed_thread"
	StepAppendThread      Step = "append_thread"
)

// PartialError reports a saga failure together with the steps that had
// already committed. A failed operation is "possibly partially
// applied", never "no side effects occurred".
type PartialError struct {
	Op        string
	Failed    Step
	Committed []Step
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%s: step %s failed after %d committed step(s): %v", e.Op, e.Failed, len(e.Committed), e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Session identifies the acting user for one sequence of operations.
// It replaces ambient global state: every operation receives the
// session explicitly.
type Session struct {
	Email     string
	Formatted string
	Name      string
}

// NewSession derives the formatted key once so call sites cannot
// accidentally build a path from the raw email.
func NewSession(email, name string) Session {
	return Session{Email: email, Formatted: identity.FormatKey(email), Name: name}
}

// Synchronizer owns the cross-location consistency of conversations.
type Synchronizer struct {
	store   store.Store
	dir     *directory.Directory
	index   *convindex.Index
	threads *thread.Store
}

func New(s store.Store, dir *directory.Directory, ix *convindex.Index, th *thread.Store) *Synchronizer {
	return &Synchronizer{store: s, dir: dir, index: ix, threads: th}
}

// RegisterUser seeds the per-user record and adds the user to the flat
// registry. Records are never mutated or deleted after this.
func (s *Synchronizer) RegisterUser(firstName, lastName, email string) error {
	rec := models.UserRecord{FirstName: firstName, LastName: lastName}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	formatted := identity.FormatKey(email)
	if err := s.store.Write(formatted, raw); err != nil {
		return err
	}
	return s.dir.Register(models.DirectoryEntry{Name: firstName + " " + lastName, Email: email})
}

// UserRecord returns the record stored under the formatted identity, or
// ErrUserNotFound.
func (s *Synchronizer) UserRecord(formatted string) (models.UserRecord, error) {
	raw, ok, err := s.store.ReadOnce(formatted)
	if err != nil {
		return models.UserRecord{}, err
	}
	if !ok {
		return models.UserRecord{}, ErrUserNotFound
	}
	var rec models.UserRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.UserRecord{}, fmt.Errorf("corrupt user record %s: %w", formatted, err)
	}
	return rec, nil
}

// CreateConversation provisions a new conversation from its first
// message: one summary in each participant's index and the shared
// thread. The conversation id derives from the first message id and is
// never regenerated. Returns the id; on error the PartialError lists
// the index writes that had already landed.
func (s *Synchronizer) CreateConversation(sess Session, otherEmail, otherName string, first models.MessageRecord) (string, error) {
	if _, err := s.UserRecord(sess.Formatted); err != nil {
		return "", &PartialError{Op: "create_conversation", Failed: StepLookupRequester, Err: err}
	}

	conversationID := thread.ConversationID(first.ID)
	otherFormatted := identity.FormatKey(otherEmail)
	latest := models.LatestMessage{Date: first.Date, Message: first.Content, IsRead: false}

	// requester's view points at the counterpart and vice versa
	requesterView := models.ConversationSummary{
		ID:             conversationID,
		OtherUserEmail: otherFormatted,
		Name:           otherName,
		LatestMessage:  latest,
	}
	counterpartView := models.ConversationSummary{
		ID:             conversationID,
		OtherUserEmail: sess.Formatted,
		Name:           sess.Name,
		LatestMessage:  latest,
	}

	var committed []Step
	committed = append(committed, StepLookupRequester)

	if err := s.index.UpsertEntry(otherFormatted, counterpartView); err != nil {
		return "", &PartialError{Op: "create_conversation", Failed: StepUpsertCounterpart, Committed: committed, Err: err}
	}
	committed = append(committed, StepUpsertCounterpart)

	if err := s.index.UpsertEntry(sess.Formatted, requesterView); err != nil {
		return "", &PartialError{Op: "create_conversation", Failed: StepUpsertRequester, Committed: committed, Err: err}
	}
	committed = append(committed, StepUpsertRequester)

	if err := s.threads.Create(conversationID, first); err != nil {
		return "", &PartialError{Op: "create_conversation", Failed: StepSeedThread, Committed: committed, Err: err}
	}

	logger.Log.Info("conversation_created",
		zap.String("conversation", conversationID),
		zap.String("requester", sess.Formatted),
		zap.String("counterpart", otherFormatted))
	return conversationID, nil
}

// SendMessage appends msg to an existing conversation, then refreshes
// the latest-message summary on both sides. The append decides overall
// success; an index failure afterwards is surfaced as a PartialError so
// the caller knows the thread already holds the message.
func (s *Synchronizer) SendMessage(sess Session, conversationID, otherEmail, otherName string, msg models.MessageRecord) error {
	if err := s.threads.Append(conversationID, msg); err != nil {
		return &PartialError{Op: "send_message", Failed: StepAppendThread, Err: err}
	}
	committed := []Step{StepAppendThread}

	otherFormatted := identity.FormatKey(otherEmail)
	latest := models.LatestMessage{Date: msg.Date, Message: msg.Content, IsRead: false}

	requesterView := models.ConversationSummary{
		ID:             conversationID,
		OtherUserEmail: otherFormatted,
		Name:           otherName,
		LatestMessage:  latest,
	}
	if err := s.index.UpsertEntry(sess.Formatted, requesterView); err != nil {
		return &PartialError{Op: "send_message", Failed: StepUpsertRequester, Committed: committed, Err: err}
	}
	committed = append(committed, StepUpsertRequester)

	counterpartView := models.ConversationSummary{
		ID:             conversationID,
		OtherUserEmail: sess.Formatted,
		Name:           sess.Name,
		LatestMessage:  latest,
	}
	if err := s.index.UpsertEntry(otherFormatted, counterpartView); err != nil {
		return &PartialError{Op: "send_message", Failed: StepUpsertCounterpart, Committed: committed, Err: err}
	}

	logger.Log.Info("message_sent",
		zap.String("conversation", conversationID),
		zap.String("sender", sess.Formatted),
		zap.String("msg_id", msg.ID))
	return nil
}

// DeleteConversation removes the conversation from the requester's own
// index only. The shared thread and the counterpart's entry stay: each
// participant leaves independently, and history survives for the other
// side.
func (s *Synchronizer) DeleteConversation(sess Session, conversationID string) error {
	if err := s.index.RemoveEntry(sess.Formatted, conversationID); err != nil {
		return err
	}
	logger.Log.Info("conversation_left", zap.String("conversation", conversationID), zap.String("user", sess.Formatted))
	return nil
}
