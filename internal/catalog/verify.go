package catalog

import "github.com/franz/scma/internal/store"

// Check is the integrity state of one artifact
type Check struct {
	ArtifactID string
	OwnerID    string
	// Failures names the fields that did not decrypt
	Failures []string
	// Missing names dependent tables without a row for the artifact
	Missing    []string
	ChecksumOK bool
}

// OK reports whether every field decrypted and the checksum matched
func (c Check) OK() bool {
	return len(c.Failures) == 0 && c.ChecksumOK
}

// Verify decrypts every artifact in memory and reports which ones fail.
// Decrypted values are discarded and nothing is journaled. progress, if
// set, is called after each artifact.
func (c *Catalog) Verify(progress func(done, total int)) ([]Check, error) {
	t, err := c.load()
	if err != nil {
		return nil, err
	}

	out := make([]Check, 0, len(t.artifacts))
	for i, a := range t.artifacts {
		e := t.entry(a.ArtifactID)
		v := decryptEntry(e)

		check := Check{
			ArtifactID: a.ArtifactID,
			OwnerID:    a.OwnerID,
			Failures:   v.Failures(),
			ChecksumOK: v.ChecksumOK,
		}
		if e.Lyrics == nil {
			check.Missing = append(check.Missing, store.LyricsTable.Name)
		}
		if e.Score == nil {
			check.Missing = append(check.Missing, store.ScoresTable.Name)
		}
		if e.Recording == nil {
			check.Missing = append(check.Missing, store.RecordingsTable.Name)
		}
		out = append(out, check)

		if progress != nil {
			progress(i+1, len(t.artifacts))
		}
	}
	return out, nil
}
