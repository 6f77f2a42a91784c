package janitor

import (
	"testing"

	"chatdb/pkg/convindex"
	"chatdb/pkg/directory"
	"chatdb/pkg/models"
	"chatdb/pkg/store"
	"chatdb/pkg/syncer"
	"chatdb/pkg/thread"
)

func TestScanFindsOrphanedThreads(t *testing.T) {
	p, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	dir := directory.New(p)
	ix := convindex.New(p)
	th := thread.New(p)
	sy := syncer.New(p, dir, ix, th)

	if err := sy.RegisterUser("Ann", "Archer", "a@x.com"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := sy.RegisterUser("Bea", "Bell", "b@y.com"); err != nil {
		t.Fatalf("register: %v", err)
	}

	ann := syncer.NewSession("a@x.com", "Ann Archer")
	first := models.MessageRecord{
		ID: "m1", Type: models.MessageTypeText, Content: "hi",
		Date: "d", SenderEmail: ann.Formatted, Name: "Bea Bell",
	}
	id, err := sy.CreateConversation(ann, "b@y.com", "Bea Bell", first)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	orphans, err := Scan(p)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(orphans) != 0 {
		t.Fatalf("referenced thread flagged as orphan: %v", orphans)
	}

	// both participants leave; the thread stays behind and becomes an orphan
	bea := syncer.NewSession("b@y.com", "Bea Bell")
	if err := sy.DeleteConversation(ann, id); err != nil {
		t.Fatalf("ann delete: %v", err)
	}
	if err := sy.DeleteConversation(bea, id); err != nil {
		t.Fatalf("bea delete: %v", err)
	}

	orphans, err = Scan(p)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(orphans) != 1 || orphans[0] != id {
		t.Fatalf("expected orphan %s, got %v", id, orphans)
	}

	// observation only: the thread itself must still be readable
	if _, err := th.List(id); err != nil {
		t.Fatalf("orphaned thread must survive the scan: %v", err)
	}
}
