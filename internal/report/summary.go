package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/franz/scma/internal/store"
)

// AuditReport summarizes the tables and the access journal
type AuditReport struct {
	GeneratedAt time.Time
	Backend     string

	// Accounts by role
	Users   int
	ByRole  map[store.Role]int
	Unknown int // users with a role outside the known set

	// Artifact statistics
	Artifacts      int
	WithLyrics     int
	WithScores     int
	WithRecordings int
	Orphans        []OrphanRow

	// Journal statistics
	JournalEntries int
	AccessCounts   []AccessCount
	TopArtifacts   []ArtifactActivity
	Recent         []*store.AccessLogEntry
}

// AccessCount is the number of journal entries of one access type
type AccessCount struct {
	AccessType string
	Count      int
}

// ArtifactActivity aggregates journal entries for one artifact ID
type ArtifactActivity struct {
	ArtifactID string
	Count      int
	LastAccess string
	Exists     bool
}

// OrphanRow is a dependent row whose artifact no longer exists
type OrphanRow struct {
	Table      string
	RowID      string
	ArtifactID string
}

// GenerateAuditReport reads every table and builds an audit report
func GenerateAuditReport(db *store.Store, topN, recentN int) (*AuditReport, error) {
	report := &AuditReport{
		GeneratedAt: time.Now(),
		Backend:     db.Driver(),
		ByRole:      make(map[store.Role]int),
	}

	users, err := store.Load(db, store.UsersTable, store.UserFromRow)
	if err != nil {
		return nil, err
	}
	report.Users = len(users)
	for _, u := range users {
		if _, ok := store.ParseRole(string(u.Role)); ok {
			report.ByRole[u.Role]++
		} else {
			report.Unknown++
		}
	}

	artifacts, err := store.Load(db, store.ArtifactsTable, store.ArtifactFromRow)
	if err != nil {
		return nil, err
	}
	report.Artifacts = len(artifacts)
	existing := make(map[string]bool, len(artifacts))
	for _, a := range artifacts {
		existing[a.ArtifactID] = true
	}

	dependents := []struct {
		table store.Table
		count *int
	}{
		{store.LyricsTable, &report.WithLyrics},
		{store.ScoresTable, &report.WithScores},
		{store.RecordingsTable, &report.WithRecordings},
	}
	for _, d := range dependents {
		rows, err := db.Rows(d.table)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if existing[r[1]] {
				*d.count++
			} else {
				report.Orphans = append(report.Orphans, OrphanRow{Table: d.table.Name, RowID: r[0], ArtifactID: r[1]})
			}
		}
	}

	entries, err := store.Load(db, store.AccessLogTable, store.AccessLogEntryFromRow)
	if err != nil {
		return nil, err
	}
	report.JournalEntries = len(entries)
	report.AccessCounts = gatherAccessCounts(entries)
	report.TopArtifacts = gatherTopArtifacts(entries, existing, topN)

	start := len(entries) - recentN
	if start < 0 {
		start = 0
	}
	report.Recent = entries[start:]

	return report, nil
}

func gatherAccessCounts(entries []*store.AccessLogEntry) []AccessCount {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.AccessType]++
	}

	out := make([]AccessCount, 0, len(counts))
	for accessType, count := range counts {
		out = append(out, AccessCount{AccessType: accessType, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].AccessType < out[j].AccessType
	})
	return out
}

// gatherTopArtifacts returns the most accessed artifact IDs. Entries are in
// append order, so the last one seen is the latest access.
func gatherTopArtifacts(entries []*store.AccessLogEntry, existing map[string]bool, limit int) []ArtifactActivity {
	byID := make(map[string]*ArtifactActivity)
	for _, e := range entries {
		a, ok := byID[e.ArtifactID]
		if !ok {
			a = &ArtifactActivity{ArtifactID: e.ArtifactID, Exists: existing[e.ArtifactID]}
			byID[e.ArtifactID] = a
		}
		a.Count++
		a.LastAccess = e.Timestamp
	}

	out := make([]ArtifactActivity, 0, len(byID))
	for _, a := range byID {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ArtifactID < out[j].ArtifactID
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// WriteMarkdownReport writes the audit report as Markdown
func WriteMarkdownReport(report *AuditReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder

	md.WriteString("# Archive Audit Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", store.FormatTime(report.GeneratedAt)))
	md.WriteString(fmt.Sprintf("**Backend:** %s\n\n", report.Backend))
	md.WriteString("---\n\n")

	md.WriteString("## Accounts\n\n")
	md.WriteString("| Role | Users |\n")
	md.WriteString("|------|-------|\n")
	for _, role := range []store.Role{store.RoleAdmin, store.RoleCreator, store.RoleViewer} {
		md.WriteString(fmt.Sprintf("| %s | %d |\n", role, report.ByRole[role]))
	}
	if report.Unknown > 0 {
		md.WriteString(fmt.Sprintf("| (invalid role) | %d |\n", report.Unknown))
	}
	md.WriteString(fmt.Sprintf("| **total** | %d |\n\n", report.Users))

	md.WriteString("## Artifacts\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Artifacts | %d |\n", report.Artifacts))
	md.WriteString(fmt.Sprintf("| With lyrics | %d |\n", report.WithLyrics))
	md.WriteString(fmt.Sprintf("| With score | %d |\n", report.WithScores))
	md.WriteString(fmt.Sprintf("| With recording | %d |\n", report.WithRecordings))
	md.WriteString("\n")

	if len(report.Orphans) > 0 {
		md.WriteString("### Orphaned rows\n\n")
		md.WriteString("| Table | Row | Missing artifact |\n")
		md.WriteString("|-------|-----|------------------|\n")
		for _, o := range report.Orphans {
			md.WriteString(fmt.Sprintf("| %s | %s | %s |\n", o.Table, o.RowID, o.ArtifactID))
		}
		md.WriteString("\n")
	}

	md.WriteString("## Access Journal\n\n")
	md.WriteString(fmt.Sprintf("%s entries.\n\n", humanize.Comma(int64(report.JournalEntries))))

	if len(report.AccessCounts) > 0 {
		md.WriteString("| Access type | Count |\n")
		md.WriteString("|-------------|-------|\n")
		for _, c := range report.AccessCounts {
			md.WriteString(fmt.Sprintf("| %s | %d |\n", c.AccessType, c.Count))
		}
		md.WriteString("\n")
	}

	if len(report.TopArtifacts) > 0 {
		md.WriteString("### Most accessed artifacts\n\n")
		md.WriteString("| Artifact | Entries | Last access | Status |\n")
		md.WriteString("|----------|---------|-------------|--------|\n")
		for _, a := range report.TopArtifacts {
			status := "present"
			if !a.Exists {
				status = "deleted or never existed"
			}
			md.WriteString(fmt.Sprintf("| %s | %d | %s | %s |\n", a.ArtifactID, a.Count, relative(a.LastAccess), status))
		}
		md.WriteString("\n")
	}

	if len(report.Recent) > 0 {
		md.WriteString("### Recent entries\n\n")
		md.WriteString("| Time | User | Artifact | Access |\n")
		md.WriteString("|------|------|----------|--------|\n")
		for _, e := range report.Recent {
			md.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", e.Timestamp, e.UserID, e.ArtifactID, e.AccessType))
		}
		md.WriteString("\n")
	}

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// relative renders a table timestamp as "3 days ago", or as stored when it
// does not parse
func relative(ts string) string {
	t, err := store.ParseTime(ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}
