package store

// Table describes one persisted entity table. The first column is the
// table's identifier; dependents carry an "artifactID" reference column.
type Table struct {
	Name    string
	Columns []string
}

// IDColumn returns the name of the identifier column
func (t Table) IDColumn() string {
	return t.Columns[0]
}

var (
	UsersTable = Table{
		Name:    "users",
		Columns: []string{"userID", "username", "email", "passwordHash", "role"},
	}
	ArtifactsTable = Table{
		Name: "artifacts",
		Columns: []string{"artifactID", "title", "type", "ownerID", "creationDate", "modificationDate",
			"checksum", "encryptionKey", "fileLocLyrics", "fileLocAudio"},
	}
	AccessLogTable = Table{
		Name:    "access_logs",
		Columns: []string{"logID", "userID", "artifactID", "accessType", "timeStamp"},
	}
	LyricsTable = Table{
		Name:    "lyrics",
		Columns: []string{"lyricsID", "artifactID", "lyrics", "language"},
	}
	ScoresTable = Table{
		Name:    "music_scores",
		Columns: []string{"scoreID", "artifactID", "score"},
	}
	RecordingsTable = Table{
		Name:    "audio_recordings",
		Columns: []string{"recordingID", "artifactID", "format", "duration"},
	}
)

// Tables lists every table in bootstrap order
var Tables = []Table{UsersTable, ArtifactsTable, AccessLogTable, LyricsTable, ScoresTable, RecordingsTable}

// Schema v1 for the SQLite backend: schema_version bookkeeping only.
// Entity tables are generated from the descriptors above so both backends
// share one column order.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// Schema v2 - lookups by artifact reference
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_lyrics_artifact ON "lyrics"("artifactID");
CREATE INDEX IF NOT EXISTS idx_music_scores_artifact ON "music_scores"("artifactID");
CREATE INDEX IF NOT EXISTS idx_audio_recordings_artifact ON "audio_recordings"("artifactID");
CREATE INDEX IF NOT EXISTS idx_access_logs_artifact ON "access_logs"("artifactID");
`
