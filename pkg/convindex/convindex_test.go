package convindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatdb/pkg/models"
	"chatdb/pkg/store"
)

func openIndex(t *testing.T) *Index {
	t.Helper()
	p, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return New(p)
}

func summary(id, other, name, text string) models.ConversationSummary {
	return models.ConversationSummary{
		ID:             id,
		OtherUserEmail: other,
		Name:           name,
		LatestMessage:  models.LatestMessage{Date: "Jan 1, 2026 at 12:00:00 UTC", Message: text},
	}
}

func TestListForUserEmpty(t *testing.T) {
	ix := openIndex(t)
	if _, err := ix.ListForUser("a-x-com"); !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestUpsertInsertsThenUpdatesInPlace(t *testing.T) {
	ix := openIndex(t)
	if err := ix.UpsertEntry("a-x-com", summary("conversation_m1", "b-y-com", "Bea", "hi")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := ix.UpsertEntry("a-x-com", summary("conversation_m1", "b-y-com", "Bea", "how are you")); err != nil {
		t.Fatalf("update: %v", err)
	}
	list, err := ix.ListForUser("a-x-com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("upsert duplicated the entry: %+v", list)
	}
	if list[0].LatestMessage.Message != "how are you" {
		t.Fatalf("latest message not replaced: %+v", list[0].LatestMessage)
	}
}

func TestUpsertKeepsOtherEntries(t *testing.T) {
	ix := openIndex(t)
	if err := ix.UpsertEntry("a-x-com", summary("conversation_m1", "b-y-com", "Bea", "hi")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := ix.UpsertEntry("a-x-com", summary("conversation_m2", "c-z-com", "Cam", "yo")); err != nil {
		t.Fatalf("insert second: %v", err)
	}
	list, _ := ix.ListForUser("a-x-com")
	if len(list) != 2 {
		t.Fatalf("got %d entries, want 2", len(list))
	}
}

func TestRemoveEntry(t *testing.T) {
	ix := openIndex(t)
	if err := ix.UpsertEntry("a-x-com", summary("conversation_m1", "b-y-com", "Bea", "hi")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := ix.RemoveEntry("a-x-com", "conversation_m1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	list, err := ix.ListForUser("a-x-com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("entry still present: %+v", list)
	}
}

func TestRemoveEntryNotFound(t *testing.T) {
	ix := openIndex(t)
	if err := ix.RemoveEntry("a-x-com", "conversation_zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty index, got %v", err)
	}
	if err := ix.UpsertEntry("a-x-com", summary("conversation_m1", "b-y-com", "Bea", "hi")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := ix.RemoveEntry("a-x-com", "conversation_zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
	// not-found must leave the list untouched
	list, _ := ix.ListForUser("a-x-com")
	if len(list) != 1 {
		t.Fatalf("not-found removal modified the list: %+v", list)
	}
}

func TestListSkipsMalformedRecords(t *testing.T) {
	p, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	raw := `[{"id":"conversation_m1","other_user_email":"b-y-com","name":"Bea","latest_message":{"date":"d","message":"hi","is_read":false}},{"id":"conversation_broken"}]`
	if err := p.Write(IndexPath("a-x-com"), []byte(raw)); err != nil {
		t.Fatalf("raw write: %v", err)
	}
	list, err := New(p).ListForUser("a-x-com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "conversation_m1" {
		t.Fatalf("malformed record should be skipped: %+v", list)
	}
}

func TestWatchRedeliversOnChange(t *testing.T) {
	p, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	ix := New(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := ix.Watch(ctx, "a-x-com")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := ix.UpsertEntry("a-x-com", summary("conversation_m1", "b-y-com", "Bea", "hi")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	select {
	case list := <-ch:
		if len(list) != 1 || list[0].LatestMessage.Message != "hi" {
			t.Fatalf("unexpected snapshot: %+v", list)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after upsert")
	}
}
