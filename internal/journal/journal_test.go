package journal

import (
	"errors"
	"testing"
	"time"

	"github.com/franz/scma/internal/ident"
	"github.com/franz/scma/internal/store"
	"github.com/franz/scma/internal/util"
)

func newJournal(t *testing.T) *Journal {
	t.Helper()
	s, err := store.Open(store.OpenOptions{Layout: store.DefaultLayout(t.TempDir())})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	j := New(s, ident.New())
	j.SetClock(func() time.Time { return time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local) })
	return j
}

func TestRecordAppendsEntry(t *testing.T) {
	j := newJournal(t)

	if err := j.Record("1234", "5678", ViewArtifact); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entries, err := j.Entries("")
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.UserID != "1234" || e.ArtifactID != "5678" || e.AccessType != "View Artifact" {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Timestamp != "2025-03-14 09:26:53" {
		t.Errorf("unexpected timestamp %q", e.Timestamp)
	}
	if e.LogID == "" {
		t.Error("expected a log id")
	}
}

func TestRecordSuppressesEmptyArtifactID(t *testing.T) {
	j := newJournal(t)

	for _, access := range []AccessType{AddArtifact, ViewArtifact, ModifyArtifact, DeleteArtifact} {
		if err := j.Record("1234", "", access); err != nil {
			t.Fatalf("Record(%s) failed: %v", access, err)
		}
	}

	entries, err := j.Entries("")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestEntriesFilterAndUniqueIDs(t *testing.T) {
	j := newJournal(t)

	for i := 0; i < 20; i++ {
		artifact := "1111"
		if i%2 == 1 {
			artifact = "2222"
		}
		if err := j.Record("9", artifact, ModifyArtifact); err != nil {
			t.Fatal(err)
		}
	}

	only, err := j.Entries("2222")
	if err != nil {
		t.Fatal(err)
	}
	if len(only) != 10 {
		t.Errorf("expected 10 entries for 2222, got %d", len(only))
	}

	all, _ := j.Entries("")
	seen := make(map[string]bool)
	for _, e := range all {
		if seen[e.LogID] {
			t.Errorf("duplicate log id %s", e.LogID)
		}
		seen[e.LogID] = true
	}
}

func TestRecordReportsFullLog(t *testing.T) {
	s, err := store.Open(store.OpenOptions{Layout: store.DefaultLayout(t.TempDir())})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	next := 0
	j := New(s, ident.NewWithSource(1000, 1001, func(n int) (int, error) {
		next++
		return next % n, nil
	}))

	for i := 0; i < 2; i++ {
		if err := j.Record("1234", "5678", ViewArtifact); err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}
	if err := j.Record("1234", "5678", ViewArtifact); !errors.Is(err, util.ErrIDSpaceExhausted) {
		t.Fatalf("expected ErrIDSpaceExhausted, got %v", err)
	}
	if entries, _ := j.Entries(""); len(entries) != 2 {
		t.Errorf("expected 2 entries after the failed record, got %d", len(entries))
	}
}
