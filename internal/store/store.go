package store

import (
	"fmt"
	"path/filepath"
)

// Row is one record in a table's canonical column order
type Row []string

// Backend persists whole tables. Load and Append touch a single table;
// Commit replaces every table in a batch as one unit.
type Backend interface {
	Init() error
	Load(t Table) ([]Row, error)
	Append(t Table, rows ...Row) error
	Commit(b *Batch) error
	Close() error
}

// Backend drivers
const (
	DriverCSV    = "csv"
	DriverSQLite = "sqlite"
)

// Layout holds the on-disk location of every table for the CSV backend
type Layout struct {
	Dir   string
	Files map[string]string // table name -> file path
}

// DefaultLayout places each table in dir as <table>.csv
func DefaultLayout(dir string) Layout {
	files := make(map[string]string, len(Tables))
	for _, t := range Tables {
		files[t.Name] = filepath.Join(dir, t.Name+".csv")
	}
	return Layout{Dir: dir, Files: files}
}

// Path returns the file backing a table
func (l Layout) Path(t Table) string {
	if p, ok := l.Files[t.Name]; ok {
		return p
	}
	return filepath.Join(l.Dir, t.Name+".csv")
}

// OpenOptions holds options for opening a store
type OpenOptions struct {
	Driver     string // csv (default) or sqlite
	Layout     Layout // table files for the csv driver
	SQLitePath string // database file for the sqlite driver
}

// Store represents the application's persistent tables
type Store struct {
	backend Backend
	driver  string
}

// Open opens the backend selected by opts
func Open(opts OpenOptions) (*Store, error) {
	switch opts.Driver {
	case "", DriverCSV:
		if opts.Layout.Dir == "" && len(opts.Layout.Files) == 0 {
			return nil, fmt.Errorf("csv store needs a data directory")
		}
		return &Store{backend: newCSVBackend(opts.Layout), driver: DriverCSV}, nil
	case DriverSQLite:
		b, err := openSQLite(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Store{backend: b, driver: DriverSQLite}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

// NewWithBackend wraps an existing backend
func NewWithBackend(b Backend, driver string) *Store {
	return &Store{backend: b, driver: driver}
}

// Driver returns the backend driver name
func (s *Store) Driver() string {
	return s.driver
}

// Init creates any missing table (header only)
func (s *Store) Init() error {
	return s.backend.Init()
}

// Close releases backend resources
func (s *Store) Close() error {
	return s.backend.Close()
}

// Rows loads every row of a table
func (s *Store) Rows(t Table) ([]Row, error) {
	rows, err := s.backend.Load(t)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", t.Name, err)
	}
	return rows, nil
}

// Append adds rows to the end of a table
func (s *Store) Append(t Table, rows ...Row) error {
	if err := s.backend.Append(t, rows...); err != nil {
		return fmt.Errorf("failed to append to %s: %w", t.Name, err)
	}
	return nil
}

// IDs returns the identifier column of every row in a table
func (s *Store) IDs(t Table) ([]string, error) {
	rows, err := s.Rows(t)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if r[0] != "" {
			ids = append(ids, r[0])
		}
	}
	return ids, nil
}

// Commit writes every table in the batch as one unit
func (s *Store) Commit(b *Batch) error {
	if b.Empty() {
		return nil
	}
	if err := s.backend.Commit(b); err != nil {
		return fmt.Errorf("failed to commit %v: %w", b.Names(), err)
	}
	return nil
}

// Batch collects whole-table replacements committed together
type Batch struct {
	tables []Table
	rows   map[string][]Row
}

// NewBatch creates an empty batch
func NewBatch() *Batch {
	return &Batch{rows: make(map[string][]Row)}
}

// Put stages the full contents of a table, replacing any earlier Put
func (b *Batch) Put(t Table, rows []Row) {
	if _, ok := b.rows[t.Name]; !ok {
		b.tables = append(b.tables, t)
	}
	b.rows[t.Name] = rows
}

// Tables returns staged tables in the order they were first put
func (b *Batch) Tables() []Table {
	return b.tables
}

// RowsFor returns the staged rows of a table
func (b *Batch) RowsFor(t Table) []Row {
	return b.rows[t.Name]
}

// Names returns the staged table names
func (b *Batch) Names() []string {
	names := make([]string, len(b.tables))
	for i, t := range b.tables {
		names[i] = t.Name
	}
	return names
}

// Empty reports whether nothing was staged
func (b *Batch) Empty() bool {
	return len(b.tables) == 0
}
