package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/franz/scma/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(store.OpenOptions{Driver: store.DriverSQLite, SQLitePath: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// setupTestData writes two users, two artifacts with dependents, one orphan
// lyrics row and a short journal
func setupTestData(t *testing.T, db *store.Store) {
	t.Helper()
	users := []*store.User{
		{UserID: "1000", Username: "ada", Role: store.RoleAdmin},
		{UserID: "1001", Username: "cleo", Role: store.RoleCreator},
		{UserID: "1002", Username: "bob", Role: "superuser"},
	}
	artifacts := []*store.Artifact{
		{ArtifactID: "2000", OwnerID: "1001"},
		{ArtifactID: "2001", OwnerID: "1001"},
	}
	lyrics := []*store.Lyrics{
		{LyricsID: "3000", ArtifactID: "2000"},
		{LyricsID: "3001", ArtifactID: "2999"},
	}
	scores := []*store.MusicScore{{ScoreID: "4000", ArtifactID: "2000"}}
	recordings := []*store.AudioRecording{
		{RecordingID: "5000", ArtifactID: "2000"},
		{RecordingID: "5001", ArtifactID: "2001"},
	}
	journal := []*store.AccessLogEntry{
		{LogID: "6000", UserID: "1001", ArtifactID: "2000", AccessType: "Add Artifact", Timestamp: "2024-01-01 10:00:00"},
		{LogID: "6001", UserID: "1001", ArtifactID: "2001", AccessType: "Add Artifact", Timestamp: "2024-01-01 10:05:00"},
		{LogID: "6002", UserID: "1000", ArtifactID: "2000", AccessType: "View Artifact", Timestamp: "2024-01-02 09:00:00"},
		{LogID: "6003", UserID: "1000", ArtifactID: "2999", AccessType: "Delete Artifact", Timestamp: "2024-01-03 12:00:00"},
	}

	b := store.NewBatch()
	b.Put(store.UsersTable, store.Encode(users))
	b.Put(store.ArtifactsTable, store.Encode(artifacts))
	b.Put(store.LyricsTable, store.Encode(lyrics))
	b.Put(store.ScoresTable, store.Encode(scores))
	b.Put(store.RecordingsTable, store.Encode(recordings))
	b.Put(store.AccessLogTable, store.Encode(journal))
	if err := db.Commit(b); err != nil {
		t.Fatalf("Failed to write test data: %v", err)
	}
}

func TestGenerateAuditReport(t *testing.T) {
	db := openTestStore(t)
	setupTestData(t, db)

	report, err := GenerateAuditReport(db, 10, 2)
	if err != nil {
		t.Fatalf("GenerateAuditReport failed: %v", err)
	}

	if report.Users != 3 || report.ByRole[store.RoleAdmin] != 1 || report.ByRole[store.RoleCreator] != 1 || report.Unknown != 1 {
		t.Errorf("unexpected account counts: %d users, %v, unknown %d", report.Users, report.ByRole, report.Unknown)
	}
	if report.Artifacts != 2 || report.WithLyrics != 1 || report.WithScores != 1 || report.WithRecordings != 2 {
		t.Errorf("unexpected artifact counts %+v", report)
	}
	if len(report.Orphans) != 1 || report.Orphans[0].RowID != "3001" || report.Orphans[0].Table != "lyrics" {
		t.Errorf("unexpected orphans %+v", report.Orphans)
	}
	if report.JournalEntries != 4 {
		t.Errorf("expected 4 journal entries, got %d", report.JournalEntries)
	}
	if report.AccessCounts[0].AccessType != "Add Artifact" || report.AccessCounts[0].Count != 2 {
		t.Errorf("unexpected access counts %+v", report.AccessCounts)
	}

	top := report.TopArtifacts[0]
	if top.ArtifactID != "2000" || top.Count != 2 || top.LastAccess != "2024-01-02 09:00:00" || !top.Exists {
		t.Errorf("unexpected top artifact %+v", top)
	}
	for _, a := range report.TopArtifacts {
		if a.ArtifactID == "2999" && a.Exists {
			t.Error("deleted artifact reported as present")
		}
	}

	if len(report.Recent) != 2 || report.Recent[1].LogID != "6003" {
		t.Errorf("expected the 2 latest entries, got %+v", report.Recent)
	}
}

func TestGatherTopArtifactsLimit(t *testing.T) {
	var entries []*store.AccessLogEntry
	for i, id := range []string{"1", "2", "2", "3", "3", "3"} {
		entries = append(entries, &store.AccessLogEntry{ArtifactID: id, Timestamp: time.Unix(int64(i), 0).Format(store.TimeLayout)})
	}

	top := gatherTopArtifacts(entries, map[string]bool{"3": true}, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 results, got %d", len(top))
	}
	if top[0].ArtifactID != "3" || top[0].Count != 3 || !top[0].Exists {
		t.Errorf("unexpected first %+v", top[0])
	}
	if top[1].ArtifactID != "2" || top[1].Exists {
		t.Errorf("unexpected second %+v", top[1])
	}
}

func TestWriteMarkdownReport(t *testing.T) {
	db := openTestStore(t)
	setupTestData(t, db)
	report, err := GenerateAuditReport(db, 10, 10)
	if err != nil {
		t.Fatal(err)
	}

	outputPath := filepath.Join(t.TempDir(), "reports", "audit.md")
	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	md := string(content)

	for _, want := range []string{
		"# Archive Audit Report",
		"**Backend:** sqlite",
		"| creator | 1 |",
		"| (invalid role) | 1 |",
		"### Orphaned rows",
		"| lyrics | 3001 | 2999 |",
		"| Add Artifact | 2 |",
		"deleted or never existed",
		"| 2024-01-03 12:00:00 | 1000 | 2999 | Delete Artifact |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestReportWithEmptyData(t *testing.T) {
	db := openTestStore(t)

	report, err := GenerateAuditReport(db, 10, 10)
	if err != nil {
		t.Fatalf("GenerateAuditReport failed on empty store: %v", err)
	}
	if report.Artifacts != 0 || report.JournalEntries != 0 || len(report.Recent) != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}

	outputPath := filepath.Join(t.TempDir(), "empty.md")
	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}
	content, _ := os.ReadFile(outputPath)
	if strings.Contains(string(content), "### Recent entries") {
		t.Error("empty report should not list recent entries")
	}
}

func TestRelative(t *testing.T) {
	if got := relative("not a time"); got != "not a time" {
		t.Errorf("unparsable timestamp should pass through, got %q", got)
	}
	past := store.FormatTime(time.Now().Add(-3 * time.Hour))
	if got := relative(past); !strings.Contains(got, "ago") {
		t.Errorf("expected relative time, got %q", got)
	}
}
