package store

import (
	"strings"
	"time"
)

// TimeLayout is the timestamp format used in every table
const TimeLayout = "2006-01-02 15:04:05"

// FormatTime renders t in the table timestamp format
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// ParseTime parses a table timestamp in local time
func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, s, time.Local)
}

// Role is a user's authorization level
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCreator Role = "creator"
	RoleViewer  Role = "viewer"
)

// ParseRole normalizes user input into a Role
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleCreator, RoleViewer:
		return r, true
	default:
		return "", false
	}
}

// OwnArtifactsOnly reports whether the role may only read and change
// artifacts it owns
func (r Role) OwnArtifactsOnly() bool {
	return r == RoleCreator
}

// User is a registered account
type User struct {
	UserID       string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
}

func (u *User) Row() Row {
	return Row{u.UserID, u.Username, u.Email, u.PasswordHash, string(u.Role)}
}

func UserFromRow(r Row) *User {
	return &User{UserID: r[0], Username: r[1], Email: r[2], PasswordHash: r[3], Role: Role(r[4])}
}

// Artifact is a catalogued work. Title, Type and the file locations hold
// ciphertext under EncryptionKey.
type Artifact struct {
	ArtifactID       string
	Title            string
	Type             string
	OwnerID          string
	CreationDate     string
	ModificationDate string
	Checksum         string
	EncryptionKey    string
	FileLocLyrics    string
	FileLocAudio     string
}

func (a *Artifact) Row() Row {
	return Row{a.ArtifactID, a.Title, a.Type, a.OwnerID, a.CreationDate, a.ModificationDate,
		a.Checksum, a.EncryptionKey, a.FileLocLyrics, a.FileLocAudio}
}

func ArtifactFromRow(r Row) *Artifact {
	return &Artifact{
		ArtifactID:       r[0],
		Title:            r[1],
		Type:             r[2],
		OwnerID:          r[3],
		CreationDate:     r[4],
		ModificationDate: r[5],
		Checksum:         r[6],
		EncryptionKey:    r[7],
		FileLocLyrics:    r[8],
		FileLocAudio:     r[9],
	}
}

// Lyrics holds an artifact's encrypted lyrics text and language
type Lyrics struct {
	LyricsID   string
	ArtifactID string
	Lyrics     string
	Language   string
}

func (l *Lyrics) Row() Row {
	return Row{l.LyricsID, l.ArtifactID, l.Lyrics, l.Language}
}

func LyricsFromRow(r Row) *Lyrics {
	return &Lyrics{LyricsID: r[0], ArtifactID: r[1], Lyrics: r[2], Language: r[3]}
}

// MusicScore holds an artifact's encrypted score
type MusicScore struct {
	ScoreID    string
	ArtifactID string
	Score      string
}

func (m *MusicScore) Row() Row {
	return Row{m.ScoreID, m.ArtifactID, m.Score}
}

func MusicScoreFromRow(r Row) *MusicScore {
	return &MusicScore{ScoreID: r[0], ArtifactID: r[1], Score: r[2]}
}

// AudioRecording holds an artifact's encrypted audio format and duration
type AudioRecording struct {
	RecordingID string
	ArtifactID  string
	Format      string
	Duration    string
}

func (a *AudioRecording) Row() Row {
	return Row{a.RecordingID, a.ArtifactID, a.Format, a.Duration}
}

func AudioRecordingFromRow(r Row) *AudioRecording {
	return &AudioRecording{RecordingID: r[0], ArtifactID: r[1], Format: r[2], Duration: r[3]}
}

// AccessLogEntry is one immutable journal row
type AccessLogEntry struct {
	LogID      string
	UserID     string
	ArtifactID string
	AccessType string
	Timestamp  string
}

func (e *AccessLogEntry) Row() Row {
	return Row{e.LogID, e.UserID, e.ArtifactID, e.AccessType, e.Timestamp}
}

func AccessLogEntryFromRow(r Row) *AccessLogEntry {
	return &AccessLogEntry{LogID: r[0], UserID: r[1], ArtifactID: r[2], AccessType: r[3], Timestamp: r[4]}
}

// Load decodes every row of a table
func Load[T any](s *Store, t Table, decode func(Row) T) ([]T, error) {
	rows, err := s.Rows(t)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, decode(r))
	}
	return out, nil
}

// Encode converts records back into rows
func Encode[T interface{ Row() Row }](records []T) []Row {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = rec.Row()
	}
	return rows
}
