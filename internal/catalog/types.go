package catalog

import (
	"fmt"
	"strings"

	"github.com/franz/scma/internal/fieldcrypt"
	"github.com/franz/scma/internal/meta"
	"github.com/franz/scma/internal/store"
)

// Extractor derives stored content from the files an artifact references
type Extractor interface {
	Lyrics(path string) (string, error)
	Audio(path string) (meta.Audio, error)
}

// Requester identifies who is calling. It comes from an authenticated
// session and is trusted as given.
type Requester struct {
	UserID string
	Role   store.Role
}

// NewArtifact holds the plaintext fields supplied when adding an artifact
type NewArtifact struct {
	Title      string
	Type       string
	LyricsPath string
	Language   string
	Score      string
	AudioPath  string
}

// Value is an optional field in an Update
type Value struct {
	text    string
	present bool
}

// Some returns a present value, which may be the empty string
func Some(s string) Value {
	return Value{text: s, present: true}
}

// FromInput treats blank input as "keep the current value"
func FromInput(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Value{}
	}
	return Some(strings.TrimSpace(s))
}

// Get returns the value and whether it is present
func (v Value) Get() (string, bool) {
	return v.text, v.present
}

// Update lists the fields to change in Modify. Absent fields keep their
// stored ciphertext unchanged.
type Update struct {
	Title      Value
	Type       Value
	LyricsPath Value
	Language   Value
	Score      Value
	AudioPath  Value
}

// Entry is the raw, still encrypted, state of one artifact. A nil
// dependent means the table has no row for the artifact.
type Entry struct {
	Artifact  *store.Artifact
	Lyrics    *store.Lyrics
	Score     *store.MusicScore
	Recording *store.AudioRecording
}

// View is the decrypted form of an artifact and its dependents
type View struct {
	ArtifactID       string
	OwnerID          string
	CreationDate     string
	ModificationDate string

	Title      fieldcrypt.Result
	Type       fieldcrypt.Result
	LyricsPath fieldcrypt.Result
	AudioPath  fieldcrypt.Result

	HasLyrics    bool
	Lyrics       fieldcrypt.Result
	Language     fieldcrypt.Result
	HasScore     bool
	Score        fieldcrypt.Result
	HasRecording bool
	Format       fieldcrypt.Result
	Duration     fieldcrypt.Result

	// ChecksumOK reports whether the decrypted title and type still hash
	// to the checksum taken at creation
	ChecksumOK bool
}

// Failures lists the names of fields that could not be decrypted
func (v *View) Failures() []string {
	fields := []struct {
		name string
		r    fieldcrypt.Result
		use  bool
	}{
		{"title", v.Title, true},
		{"type", v.Type, true},
		{"lyrics file", v.LyricsPath, true},
		{"audio file", v.AudioPath, true},
		{"lyrics", v.Lyrics, v.HasLyrics},
		{"language", v.Language, v.HasLyrics},
		{"score", v.Score, v.HasScore},
		{"format", v.Format, v.HasRecording},
		{"duration", v.Duration, v.HasRecording},
	}
	var out []string
	for _, f := range fields {
		if f.use && !f.r.OK() {
			out = append(out, f.name)
		}
	}
	return out
}

// Summary is one line of an artifact listing
type Summary struct {
	ArtifactID       string
	Title            fieldcrypt.Result
	OwnerID          string
	OwnerName        string
	ModificationDate string
}

// ExtractError reports a referenced file that could not be read. Callers
// may ask for a corrected path and retry.
type ExtractError struct {
	Field string // "lyrics" or "audio"
	Path  string
	Err   error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("invalid %s file: %v", e.Field, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}
