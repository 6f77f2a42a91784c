package syncer

import (
	"errors"
	"fmt"
	"testing"

	"chatdb/pkg/convindex"
	"chatdb/pkg/directory"
	"chatdb/pkg/models"
	"chatdb/pkg/store"
	"chatdb/pkg/thread"
)

type fixture struct {
	sync   *Synchronizer
	index  *convindex.Index
	thread *thread.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return fixtureOn(p)
}

func fixtureOn(s store.Store) *fixture {
	dir := directory.New(s)
	ix := convindex.New(s)
	th := thread.New(s)
	return &fixture{sync: New(s, dir, ix, th), index: ix, thread: th}
}

func mustRegister(t *testing.T, f *fixture, first, last, email string) {
	t.Helper()
	if err := f.sync.RegisterUser(first, last, email); err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
}

func record(id, content, senderFormatted, counterpartName string) models.MessageRecord {
	return models.MessageRecord{
		ID:          id,
		Type:        models.MessageTypeText,
		Content:     content,
		Date:        "Jan 1, 2026 at 12:00:00 UTC",
		SenderEmail: senderFormatted,
		Name:        counterpartName,
	}
}

func TestCreateConversationRequiresRegistration(t *testing.T) {
	f := newFixture(t)
	sess := NewSession("ghost@x.com", "Ghost")
	_, err := f.sync.CreateConversation(sess, "b@y.com", "Bea", record("m1", "hi", sess.Formatted, "Bea"))
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	var pe *PartialError
	if !errors.As(err, &pe) || pe.Failed != StepLookupRequester {
		t.Fatalf("expected lookup step failure, got %+v", err)
	}
}

// The concrete first-contact scenario: a@x.com messages b@y.com with
// "hi" and message id m1.
func TestCreateConversationFirstContact(t *testing.T) {
	f := newFixture(t)
	mustRegister(t, f, "Ann", "Archer", "a@x.com")
	mustRegister(t, f, "Bea", "Bell", "b@y.com")

	sess := NewSession("a@x.com", "Ann Archer")
	id, err := f.sync.CreateConversation(sess, "b@y.com", "Bea Bell", record("m1", "hi", sess.Formatted, "Bea Bell"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "conversation_m1" {
		t.Fatalf("conversation id = %q, want conversation_m1", id)
	}

	msgs, err := f.thread.List(id)
	if err != nil {
		t.Fatalf("thread list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hi" || msgs[0].SenderEmail != "a-x-com" {
		t.Fatalf("thread contents: %+v", msgs)
	}

	for _, user := range []string{"a-x-com", "b-y-com"} {
		list, err := f.index.ListForUser(user)
		if err != nil {
			t.Fatalf("index %s: %v", user, err)
		}
		if len(list) != 1 || list[0].ID != id {
			t.Fatalf("index %s missing conversation: %+v", user, list)
		}
		if list[0].LatestMessage.Message != "hi" {
			t.Fatalf("index %s latest message: %+v", user, list[0].LatestMessage)
		}
	}
}

// The reply scenario: b answers on the same conversation; thread order
// and both latest-message summaries move together.
func TestSendMessageUpdatesThreadAndBothIndices(t *testing.T) {
	f := newFixture(t)
	mustRegister(t, f, "Ann", "Archer", "a@x.com")
	mustRegister(t, f, "Bea", "Bell", "b@y.com")

	ann := NewSession("a@x.com", "Ann Archer")
	id, err := f.sync.CreateConversation(ann, "b@y.com", "Bea Bell", record("m1", "hi", ann.Formatted, "Bea Bell"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	bea := NewSession("b@y.com", "Bea Bell")
	if err := f.sync.SendMessage(bea, id, "a@x.com", "Ann Archer", record("m2", "how are you", bea.Formatted, "Ann Archer")); err != nil {
		t.Fatalf("send: %v", err)
	}

	msgs, _ := f.thread.List(id)
	if len(msgs) != 2 || msgs[0].Content != "hi" || msgs[1].Content != "how are you" {
		t.Fatalf("thread order wrong: %+v", msgs)
	}
	for _, user := range []string{"a-x-com", "b-y-com"} {
		list, _ := f.index.ListForUser(user)
		if len(list) != 1 || list[0].LatestMessage.Message != "how are you" {
			t.Fatalf("index %s latest not refreshed: %+v", user, list)
		}
	}
}

func TestSendMessageToMissingThread(t *testing.T) {
	f := newFixture(t)
	mustRegister(t, f, "Ann", "Archer", "a@x.com")
	sess := NewSession("a@x.com", "Ann Archer")
	err := f.sync.SendMessage(sess, "conversation_nope", "b@y.com", "Bea", record("m1", "hi", sess.Formatted, "Bea"))
	if !errors.Is(err, thread.ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}
	var pe *PartialError
	if !errors.As(err, &pe) || len(pe.Committed) != 0 {
		t.Fatalf("append failure must report zero committed steps: %+v", err)
	}
}

func TestDeleteConversationIsAsymmetric(t *testing.T) {
	f := newFixture(t)
	mustRegister(t, f, "Ann", "Archer", "a@x.com")
	mustRegister(t, f, "Bea", "Bell", "b@y.com")

	ann := NewSession("a@x.com", "Ann Archer")
	id, err := f.sync.CreateConversation(ann, "b@y.com", "Bea Bell", record("m1", "hi", ann.Formatted, "Bea Bell"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.sync.DeleteConversation(ann, id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	annList, _ := f.index.ListForUser("a-x-com")
	if len(annList) != 0 {
		t.Fatalf("requester index should be empty: %+v", annList)
	}
	beaList, _ := f.index.ListForUser("b-y-com")
	if len(beaList) != 1 || beaList[0].ID != id {
		t.Fatalf("counterpart index must keep the conversation: %+v", beaList)
	}
	if _, err := f.thread.List(id); err != nil {
		t.Fatalf("thread must survive deletion: %v", err)
	}
}

func TestDeleteUnknownConversation(t *testing.T) {
	f := newFixture(t)
	mustRegister(t, f, "Ann", "Archer", "a@x.com")
	sess := NewSession("a@x.com", "Ann Archer")
	if err := f.sync.DeleteConversation(sess, "conversation_zzz"); !errors.Is(err, convindex.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// failingStore injects a write failure on one path to exercise
// partial-failure reporting.
type failingStore struct {
	store.Store
	failPath string
}

func (f *failingStore) Update(path string, fn func([]byte, bool) ([]byte, error)) error {
	if path == f.failPath {
		return fmt.Errorf("injected failure on %s", path)
	}
	return f.Store.Update(path, fn)
}

func TestCreateConversationPartialFailure(t *testing.T) {
	p, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	// requester's own index write fails after the counterpart's landed
	fs := &failingStore{Store: p, failPath: convindex.IndexPath("a-x-com")}
	f := fixtureOn(fs)
	mustRegister(t, f, "Ann", "Archer", "a@x.com")
	mustRegister(t, f, "Bea", "Bell", "b@y.com")

	sess := NewSession("a@x.com", "Ann Archer")
	_, err = f.sync.CreateConversation(sess, "b@y.com", "Bea Bell", record("m1", "hi", sess.Formatted, "Bea Bell"))
	if err == nil {
		t.Fatal("expected failure")
	}
	var pe *PartialError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PartialError, got %v", err)
	}
	if pe.Failed != StepUpsertRequester {
		t.Fatalf("failed step = %s", pe.Failed)
	}
	committed := map[Step]bool{}
	for _, s := range pe.Committed {
		committed[s] = true
	}
	if !committed[StepUpsertCounterpart] {
		t.Fatalf("counterpart upsert should be reported as committed: %+v", pe.Committed)
	}

	// the partial state persists: counterpart already sees the conversation
	beaList, err := convindex.New(p).ListForUser("b-y-com")
	if err != nil {
		t.Fatalf("counterpart index: %v", err)
	}
	if len(beaList) != 1 || beaList[0].ID != "conversation_m1" {
		t.Fatalf("counterpart index should hold the entry: %+v", beaList)
	}
}
