package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

const (
	currentSchemaVersion = 2
)

// sqliteBackend keeps the same six tables in one SQLite file. Every column
// is TEXT so rows round-trip unchanged; insertion order is kept via rowid.
type sqliteBackend struct {
	db *sql.DB
}

func openSQLite(path string) (*sqliteBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store needs a database path")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer, matching the one-session model
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	b := &sqliteBackend{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return b, nil
}

// Init is a no-op beyond migration: tables exist once the store is open
func (b *sqliteBackend) Init() error {
	return nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}

func (b *sqliteBackend) Load(t Table) ([]Row, error) {
	rows, err := b.db.Query(fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", columnList(t), quote(t.Name)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row := make(Row, len(t.Columns))
		dest := make([]interface{}, len(row))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t.Name, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (b *sqliteBackend) Append(t Table, rows ...Row) error {
	return b.transaction(func(tx *sql.Tx) error {
		return insertRows(tx, t, rows)
	})
}

// Commit rewrites every table of the batch inside one transaction
func (b *sqliteBackend) Commit(batch *Batch) error {
	return b.transaction(func(tx *sql.Tx) error {
		for _, t := range batch.Tables() {
			if _, err := tx.Exec("DELETE FROM " + quote(t.Name)); err != nil {
				return fmt.Errorf("failed to clear %s: %w", t.Name, err)
			}
			if err := insertRows(tx, t, batch.RowsFor(t)); err != nil {
				return err
			}
		}
		return nil
	})
}

// CheckIntegrity runs PRAGMA integrity_check on the database
func (b *sqliteBackend) CheckIntegrity() error {
	var result string
	err := b.db.QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// migrate applies database migrations
func (b *sqliteBackend) migrate() error {
	version, err := b.getSchemaVersion()
	if err != nil {
		return err
	}

	if version >= currentSchemaVersion {
		return nil
	}

	return b.transaction(func(tx *sql.Tx) error {
		if version < 1 {
			if _, err := tx.Exec(schemaV1); err != nil {
				return fmt.Errorf("failed to apply schema v1: %w", err)
			}
			for _, t := range Tables {
				if _, err := tx.Exec(createTableSQL(t)); err != nil {
					return fmt.Errorf("failed to create %s: %w", t.Name, err)
				}
			}
			if err := setSchemaVersion(tx, 1); err != nil {
				return fmt.Errorf("failed to set schema version: %w", err)
			}
		}

		if version < 2 {
			if _, err := tx.Exec(schemaV2); err != nil {
				return fmt.Errorf("failed to apply schema v2: %w", err)
			}
			if err := setSchemaVersion(tx, 2); err != nil {
				return fmt.Errorf("failed to set schema version: %w", err)
			}
		}
		return nil
	})
}

// getSchemaVersion returns the current schema version
func (b *sqliteBackend) getSchemaVersion() (int, error) {
	var exists int
	err := b.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&exists)
	if err != nil {
		return 0, err
	}

	if exists == 0 {
		return 0, nil
	}

	var version int
	err = b.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, err
	}

	return version, nil
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// transaction executes a function within a transaction
func (b *sqliteBackend) transaction(fn func(*sql.Tx) error) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func insertRows(tx *sql.Tx, t Table, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(t.Name), columnList(t), placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", t.Name, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]interface{}, len(t.Columns))
		for i := range args {
			if i < len(row) {
				args[i] = row[i]
			} else {
				args[i] = ""
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", t.Name, err)
		}
	}
	return nil
}

func createTableSQL(t Table) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = quote(c) + " TEXT NOT NULL DEFAULT ''"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", quote(t.Name), strings.Join(cols, ",\n  "))
}

func columnList(t Table) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = quote(c)
	}
	return strings.Join(cols, ", ")
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// SQLiteVersion returns the SQLite version string
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	if err := db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		return ""
	}
	return version
}

// CheckIntegrity verifies the backing database when the store is SQLite
func (s *Store) CheckIntegrity() error {
	if b, ok := s.backend.(*sqliteBackend); ok {
		return b.CheckIntegrity()
	}
	return nil
}
