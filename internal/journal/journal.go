// Package journal appends one immutable access-log row per user operation
// on an artifact.
package journal

import (
	"fmt"
	"time"

	"github.com/franz/scma/internal/ident"
	"github.com/franz/scma/internal/store"
)

// AccessType names the operation being journaled
type AccessType string

const (
	AddArtifact    AccessType = "Add Artifact"
	ViewArtifact   AccessType = "View Artifact"
	ModifyArtifact AccessType = "Modify Artifact"
	DeleteArtifact AccessType = "Delete Artifact"
)

// Journal writes access-log entries
type Journal struct {
	store *store.Store
	ids   *ident.Allocator
	now   func() time.Time
}

// New creates a journal over the access_logs table
func New(s *store.Store, ids *ident.Allocator) *Journal {
	return &Journal{store: s, ids: ids, now: time.Now}
}

// SetClock replaces the time source
func (j *Journal) SetClock(now func() time.Time) {
	j.now = now
}

// Record appends an entry. Calls without an artifact ID write nothing.
func (j *Journal) Record(userID, artifactID string, access AccessType) error {
	if artifactID == "" {
		return nil
	}

	existing, err := j.store.IDs(store.AccessLogTable)
	if err != nil {
		return err
	}
	logID, err := j.ids.Next(existing)
	if err != nil {
		return fmt.Errorf("failed to allocate log id: %w", err)
	}

	entry := &store.AccessLogEntry{
		LogID:      logID,
		UserID:     userID,
		ArtifactID: artifactID,
		AccessType: string(access),
		Timestamp:  store.FormatTime(j.now()),
	}
	return j.store.Append(store.AccessLogTable, entry.Row())
}

// Entries returns journal rows in append order, optionally limited to one
// artifact
func (j *Journal) Entries(artifactID string) ([]*store.AccessLogEntry, error) {
	all, err := store.Load(j.store, store.AccessLogTable, store.AccessLogEntryFromRow)
	if err != nil {
		return nil, err
	}
	if artifactID == "" {
		return all, nil
	}
	var out []*store.AccessLogEntry
	for _, e := range all {
		if e.ArtifactID == artifactID {
			out = append(out, e)
		}
	}
	return out, nil
}
