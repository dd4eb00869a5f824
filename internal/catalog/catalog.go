// Package catalog stores artifacts and their lyrics, score and recording
// rows, each field encrypted under a per-artifact key.
package catalog

import (
	"fmt"
	"time"

	"github.com/franz/scma/internal/fieldcrypt"
	"github.com/franz/scma/internal/ident"
	"github.com/franz/scma/internal/journal"
	"github.com/franz/scma/internal/meta"
	"github.com/franz/scma/internal/store"
	"github.com/franz/scma/internal/util"
)

// UnknownOwner is shown in listings for owners missing from the users table
const UnknownOwner = "Unknown"

// Catalog is the record store for artifacts
type Catalog struct {
	store   *store.Store
	journal *journal.Journal
	ids     *ident.Allocator
	extract Extractor
	now     func() time.Time
}

// New creates a catalog over an opened store
func New(s *store.Store, j *journal.Journal, ids *ident.Allocator, x Extractor) *Catalog {
	return &Catalog{store: s, journal: j, ids: ids, extract: x, now: time.Now}
}

// SetClock replaces the time source used for creation and modification dates
func (c *Catalog) SetClock(now func() time.Time) {
	c.now = now
}

// tables holds every row of the four artifact tables
type tables struct {
	artifacts  []*store.Artifact
	lyrics     []*store.Lyrics
	scores     []*store.MusicScore
	recordings []*store.AudioRecording
}

func (c *Catalog) load() (*tables, error) {
	var t tables
	var err error
	if t.artifacts, err = store.Load(c.store, store.ArtifactsTable, store.ArtifactFromRow); err != nil {
		return nil, err
	}
	if t.lyrics, err = store.Load(c.store, store.LyricsTable, store.LyricsFromRow); err != nil {
		return nil, err
	}
	if t.scores, err = store.Load(c.store, store.ScoresTable, store.MusicScoreFromRow); err != nil {
		return nil, err
	}
	if t.recordings, err = store.Load(c.store, store.RecordingsTable, store.AudioRecordingFromRow); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *tables) entry(artifactID string) *Entry {
	e := &Entry{}
	if i := find(t.artifacts, func(a *store.Artifact) bool { return a.ArtifactID == artifactID }); i >= 0 {
		e.Artifact = t.artifacts[i]
	}
	if i := find(t.lyrics, func(l *store.Lyrics) bool { return l.ArtifactID == artifactID }); i >= 0 {
		e.Lyrics = t.lyrics[i]
	}
	if i := find(t.scores, func(s *store.MusicScore) bool { return s.ArtifactID == artifactID }); i >= 0 {
		e.Score = t.scores[i]
	}
	if i := find(t.recordings, func(r *store.AudioRecording) bool { return r.ArtifactID == artifactID }); i >= 0 {
		e.Recording = t.recordings[i]
	}
	return e
}

func find[T any](records []T, match func(T) bool) int {
	for i, r := range records {
		if match(r) {
			return i
		}
	}
	return -1
}

func keep[T any](records []T, drop func(T) bool) ([]T, bool) {
	out := make([]T, 0, len(records))
	removed := false
	for _, r := range records {
		if drop(r) {
			removed = true
			continue
		}
		out = append(out, r)
	}
	return out, removed
}

// Get returns the stored rows for an artifact without decrypting them
func (c *Catalog) Get(artifactID string) (*Entry, error) {
	if artifactID == "" {
		return &Entry{}, nil
	}
	t, err := c.load()
	if err != nil {
		return nil, err
	}
	return t.entry(artifactID), nil
}

// Add encrypts and stores a new artifact with one lyrics, score and
// recording row. Referenced files are read before anything is written.
func (c *Catalog) Add(ownerID string, in NewArtifact) (*store.Artifact, error) {
	lyricsText, err := c.extract.Lyrics(in.LyricsPath)
	if err != nil {
		return nil, &ExtractError{Field: "lyrics", Path: in.LyricsPath, Err: err}
	}
	audio, err := c.extract.Audio(in.AudioPath)
	if err != nil {
		return nil, &ExtractError{Field: "audio", Path: in.AudioPath, Err: err}
	}

	key, err := fieldcrypt.GenerateKey()
	if err != nil {
		return nil, err
	}
	t, err := c.load()
	if err != nil {
		return nil, err
	}

	artifactID, err := c.ids.Next(artifactIDs(t.artifacts))
	if err != nil {
		return nil, fmt.Errorf("artifacts: %w", err)
	}
	lyricsID, err := c.ids.Next(idsOf(t.lyrics, func(l *store.Lyrics) string { return l.LyricsID }))
	if err != nil {
		return nil, fmt.Errorf("lyrics: %w", err)
	}
	scoreID, err := c.ids.Next(idsOf(t.scores, func(s *store.MusicScore) string { return s.ScoreID }))
	if err != nil {
		return nil, fmt.Errorf("music scores: %w", err)
	}
	recordingID, err := c.ids.Next(idsOf(t.recordings, func(r *store.AudioRecording) string { return r.RecordingID }))
	if err != nil {
		return nil, fmt.Errorf("audio recordings: %w", err)
	}

	enc := newSealer(key)
	now := store.FormatTime(c.now())
	artifact := &store.Artifact{
		ArtifactID:       artifactID,
		Title:            enc.seal(in.Title),
		Type:             enc.seal(in.Type),
		OwnerID:          ownerID,
		CreationDate:     now,
		ModificationDate: now,
		Checksum:         util.Checksum(in.Title, in.Type),
		EncryptionKey:    string(key),
		FileLocLyrics:    enc.seal(in.LyricsPath),
		FileLocAudio:     enc.seal(in.AudioPath),
	}
	lyrics := &store.Lyrics{
		LyricsID:   lyricsID,
		ArtifactID: artifactID,
		Lyrics:     enc.seal(lyricsText),
		Language:   enc.seal(in.Language),
	}
	score := &store.MusicScore{ScoreID: scoreID, ArtifactID: artifactID, Score: enc.seal(in.Score)}
	recording := &store.AudioRecording{
		RecordingID: recordingID,
		ArtifactID:  artifactID,
		Format:      enc.seal(audio.Format),
		Duration:    enc.seal(audio.Duration),
	}
	if enc.err != nil {
		return nil, enc.err
	}

	batch := store.NewBatch()
	batch.Put(store.ArtifactsTable, store.Encode(append(t.artifacts, artifact)))
	batch.Put(store.LyricsTable, store.Encode(append(t.lyrics, lyrics)))
	batch.Put(store.ScoresTable, store.Encode(append(t.scores, score)))
	batch.Put(store.RecordingsTable, store.Encode(append(t.recordings, recording)))
	if err := c.store.Commit(batch); err != nil {
		return nil, fmt.Errorf("failed to add artifact: %w", err)
	}
	util.DebugLog("Added artifact %s for owner %s", artifactID, ownerID)

	if err := c.journal.Record(ownerID, artifactID, journal.AddArtifact); err != nil {
		return artifact, fmt.Errorf("artifact %s added but not journaled: %w", artifactID, err)
	}
	return artifact, nil
}

// View journals the attempt, then decrypts the artifact for the requester.
// Requesters limited to their own artifacts get ErrPermission for anyone
// else's, and nothing is decrypted.
func (c *Catalog) View(artifactID string, who Requester) (*View, error) {
	if artifactID == "" {
		return nil, fmt.Errorf("no artifact id given: %w", util.ErrNotFound)
	}
	if err := c.journal.Record(who.UserID, artifactID, journal.ViewArtifact); err != nil {
		return nil, err
	}

	e, err := c.Get(artifactID)
	if err != nil {
		return nil, err
	}
	if e.Artifact == nil {
		return nil, fmt.Errorf("artifact %s: %w", artifactID, util.ErrNotFound)
	}
	if err := checkOwner(e.Artifact, who); err != nil {
		return nil, err
	}
	return decryptEntry(e), nil
}

func checkOwner(a *store.Artifact, who Requester) error {
	if who.Role.OwnArtifactsOnly() && a.OwnerID != who.UserID {
		return fmt.Errorf("artifact %s belongs to another user: %w", a.ArtifactID, util.ErrPermission)
	}
	return nil
}

func decryptEntry(e *Entry) *View {
	a := e.Artifact
	key := fieldcrypt.Key(a.EncryptionKey)
	v := &View{
		ArtifactID:       a.ArtifactID,
		OwnerID:          a.OwnerID,
		CreationDate:     a.CreationDate,
		ModificationDate: a.ModificationDate,
		Title:            fieldcrypt.Decrypt(key, a.Title),
		Type:             fieldcrypt.Decrypt(key, a.Type),
		LyricsPath:       fieldcrypt.Decrypt(key, a.FileLocLyrics),
		AudioPath:        fieldcrypt.Decrypt(key, a.FileLocAudio),
	}
	if e.Lyrics != nil {
		v.HasLyrics = true
		v.Lyrics = fieldcrypt.Decrypt(key, e.Lyrics.Lyrics)
		v.Language = fieldcrypt.Decrypt(key, e.Lyrics.Language)
	}
	if e.Score != nil {
		v.HasScore = true
		v.Score = fieldcrypt.Decrypt(key, e.Score.Score)
	}
	if e.Recording != nil {
		v.HasRecording = true
		v.Format = fieldcrypt.Decrypt(key, e.Recording.Format)
		v.Duration = fieldcrypt.Decrypt(key, e.Recording.Duration)
	}

	title, okTitle := v.Title.Text()
	typ, okType := v.Type.Text()
	v.ChecksumOK = okTitle && okType && util.Checksum(title, typ) == a.Checksum
	return v
}

// Modify applies the present fields of u under the artifact's existing key.
// Only dependents that already exist are rewritten. Nothing is journaled
// when the artifact is missing or the requester may not change it.
func (c *Catalog) Modify(artifactID string, u Update, who Requester) (*store.Artifact, error) {
	if artifactID == "" {
		return nil, fmt.Errorf("no artifact id given: %w", util.ErrNotFound)
	}
	t, err := c.load()
	if err != nil {
		return nil, err
	}
	e := t.entry(artifactID)
	if e.Artifact == nil {
		return nil, fmt.Errorf("artifact %s: %w", artifactID, util.ErrNotFound)
	}
	if err := checkOwner(e.Artifact, who); err != nil {
		return nil, err
	}

	var lyricsText string
	lyricsPath, newLyrics := u.LyricsPath.Get()
	if newLyrics {
		if lyricsText, err = c.extract.Lyrics(lyricsPath); err != nil {
			return nil, &ExtractError{Field: "lyrics", Path: lyricsPath, Err: err}
		}
	}
	var audio meta.Audio
	audioPath, newAudio := u.AudioPath.Get()
	if newAudio {
		if audio, err = c.extract.Audio(audioPath); err != nil {
			return nil, &ExtractError{Field: "audio", Path: audioPath, Err: err}
		}
	}

	enc := newSealer(fieldcrypt.Key(e.Artifact.EncryptionKey))
	a := e.Artifact
	if sum, ok := newChecksum(a, u); ok {
		a.Checksum = sum
	}
	enc.update(&a.Title, u.Title)
	enc.update(&a.Type, u.Type)
	enc.update(&a.FileLocLyrics, u.LyricsPath)
	enc.update(&a.FileLocAudio, u.AudioPath)
	a.ModificationDate = store.FormatTime(c.now())

	batch := store.NewBatch()
	batch.Put(store.ArtifactsTable, store.Encode(t.artifacts))
	if e.Lyrics != nil {
		if newLyrics {
			e.Lyrics.Lyrics = enc.seal(lyricsText)
		}
		enc.update(&e.Lyrics.Language, u.Language)
		batch.Put(store.LyricsTable, store.Encode(t.lyrics))
	}
	if e.Score != nil {
		enc.update(&e.Score.Score, u.Score)
		batch.Put(store.ScoresTable, store.Encode(t.scores))
	}
	if e.Recording != nil {
		if newAudio {
			e.Recording.Format = enc.seal(audio.Format)
			e.Recording.Duration = enc.seal(audio.Duration)
		}
		batch.Put(store.RecordingsTable, store.Encode(t.recordings))
	}
	if enc.err != nil {
		return nil, enc.err
	}

	if err := c.store.Commit(batch); err != nil {
		return nil, fmt.Errorf("failed to modify artifact %s: %w", artifactID, err)
	}
	util.DebugLog("Modified artifact %s (%v)", artifactID, batch.Names())

	if err := c.journal.Record(who.UserID, artifactID, journal.ModifyArtifact); err != nil {
		return a, fmt.Errorf("artifact %s modified but not journaled: %w", artifactID, err)
	}
	return a, nil
}

// newChecksum recomputes the checksum when the title or type changes. The
// stored checksum is kept if the unchanged field cannot be decrypted.
func newChecksum(a *store.Artifact, u Update) (string, bool) {
	title, newTitle := u.Title.Get()
	typ, newType := u.Type.Get()
	if !newTitle && !newType {
		return "", false
	}
	key := fieldcrypt.Key(a.EncryptionKey)
	var ok bool
	if !newTitle {
		if title, ok = fieldcrypt.Decrypt(key, a.Title).Text(); !ok {
			return "", false
		}
	}
	if !newType {
		if typ, ok = fieldcrypt.Decrypt(key, a.Type).Text(); !ok {
			return "", false
		}
	}
	return util.Checksum(title, typ), true
}

// Delete removes the artifact's rows from each table independently and
// reports whether any table held one. The access journal is kept.
func (c *Catalog) Delete(artifactID, userID string) (bool, error) {
	if artifactID == "" {
		return false, nil
	}
	t, err := c.load()
	if err != nil {
		return false, err
	}

	batch := store.NewBatch()
	if rest, removed := keep(t.artifacts, func(a *store.Artifact) bool { return a.ArtifactID == artifactID }); removed {
		batch.Put(store.ArtifactsTable, store.Encode(rest))
	}
	if rest, removed := keep(t.lyrics, func(l *store.Lyrics) bool { return l.ArtifactID == artifactID }); removed {
		batch.Put(store.LyricsTable, store.Encode(rest))
	}
	if rest, removed := keep(t.scores, func(s *store.MusicScore) bool { return s.ArtifactID == artifactID }); removed {
		batch.Put(store.ScoresTable, store.Encode(rest))
	}
	if rest, removed := keep(t.recordings, func(r *store.AudioRecording) bool { return r.ArtifactID == artifactID }); removed {
		batch.Put(store.RecordingsTable, store.Encode(rest))
	}

	found := !batch.Empty()
	if found {
		if err := c.store.Commit(batch); err != nil {
			return false, fmt.Errorf("failed to delete artifact %s: %w", artifactID, err)
		}
		util.DebugLog("Deleted artifact %s from %v", artifactID, batch.Names())
	}

	if err := c.journal.Record(userID, artifactID, journal.DeleteArtifact); err != nil {
		return found, err
	}
	return found, nil
}

// List summarizes the artifacts visible to the requester in stored order
func (c *Catalog) List(who Requester) ([]Summary, error) {
	artifacts, err := store.Load(c.store, store.ArtifactsTable, store.ArtifactFromRow)
	if err != nil {
		return nil, err
	}
	users, err := store.Load(c.store, store.UsersTable, store.UserFromRow)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.UserID] = u.Username
	}

	var out []Summary
	for _, a := range artifacts {
		if who.Role.OwnArtifactsOnly() && a.OwnerID != who.UserID {
			continue
		}
		owner, ok := names[a.OwnerID]
		if !ok {
			owner = UnknownOwner
		}
		out = append(out, Summary{
			ArtifactID:       a.ArtifactID,
			Title:            fieldcrypt.Decrypt(fieldcrypt.Key(a.EncryptionKey), a.Title),
			OwnerID:          a.OwnerID,
			OwnerName:        owner,
			ModificationDate: a.ModificationDate,
		})
	}
	return out, nil
}

func artifactIDs(artifacts []*store.Artifact) []string {
	return idsOf(artifacts, func(a *store.Artifact) string { return a.ArtifactID })
}

func idsOf[T any](records []T, id func(T) string) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = id(r)
	}
	return out
}

// sealer encrypts fields under one key and keeps the first error
type sealer struct {
	key fieldcrypt.Key
	err error
}

func newSealer(key fieldcrypt.Key) *sealer {
	return &sealer{key: key}
}

func (s *sealer) seal(plaintext string) string {
	if s.err != nil {
		return ""
	}
	token, err := fieldcrypt.Encrypt(s.key, plaintext)
	if err != nil {
		s.err = err
		return ""
	}
	return token
}

func (s *sealer) update(field *string, v Value) {
	if text, ok := v.Get(); ok {
		*field = s.seal(text)
	}
}
