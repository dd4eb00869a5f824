package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/franz/scma/internal/util"
)

// csvBackend keeps one CSV file per table: a header row, then one row per
// record. Columns are matched by header name on read.
type csvBackend struct {
	layout Layout
	retry  *util.RetryConfig
}

func newCSVBackend(layout Layout) *csvBackend {
	return &csvBackend{layout: layout, retry: util.DefaultRetryConfig()}
}

// Init creates the data directory and any missing table file
func (b *csvBackend) Init() error {
	for _, t := range Tables {
		path := b.layout.Path(t)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := writeTableFile(path, t, nil); err != nil {
			return err
		}
		util.InfoLog("Created %s", path)
	}
	return nil
}

// Load reads a table. A missing file is an empty table.
func (b *csvBackend) Load(t Table) ([]Row, error) {
	f, err := os.Open(b.layout.Path(t))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	positions := columnPositions(t, header)

	var rows []Row
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if len(rec) == 0 || (len(rec) == 1 && rec[0] == "") {
			continue
		}
		row := make(Row, len(t.Columns))
		for i, p := range positions {
			if p >= 0 && p < len(rec) {
				row[i] = rec[p]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Append adds rows at the end of the file, writing the header first when
// the file is new or empty. Rows are written in the column order of the
// existing header.
func (b *csvBackend) Append(t Table, rows ...Row) error {
	path := b.layout.Path(t)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header := t.Columns
	needHeader := true
	if info.Size() > 0 {
		existing, err := csv.NewReader(f).Read()
		switch {
		case err == io.EOF:
			// blank lines only, start over with a header
		case err != nil:
			return fmt.Errorf("failed to read header: %w", err)
		default:
			header = existing
			needHeader = false
		}
	}
	positions := columnPositions(t, header)
	for i, p := range positions {
		if p < 0 {
			return fmt.Errorf("%s has no %s column: %w", path, t.Columns[i], util.ErrCorrupt)
		}
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	if info.Size() > 0 {
		// a hand-edited file may lack the final newline
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err != nil {
			return err
		}
		if last[0] != '\n' {
			if _, err := f.Write([]byte{'\n'}); err != nil {
				return err
			}
		}
	}

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(t.Columns); err != nil {
			return err
		}
	}
	for _, row := range rows {
		rec := make([]string, len(header))
		for i, p := range positions {
			if i < len(row) {
				rec[p] = row[i]
			}
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// columnPositions returns, for each canonical column of t, its index in
// header or -1 when the header lacks it
func columnPositions(t Table, header []string) []int {
	positions := make([]int, len(t.Columns))
	for i, col := range t.Columns {
		positions[i] = -1
		for j, h := range header {
			if strings.TrimSpace(h) == col {
				positions[i] = j
				break
			}
		}
	}
	return positions
}

// Commit stages every table of the batch in a temp file next to its
// target, then swaps them in. Originals are parked as .bak until all swaps
// succeed; a failed swap restores them.
func (b *csvBackend) Commit(batch *Batch) error {
	type staged struct {
		path   string
		tmp    string
		bak    string
		hadOld bool
	}

	var stage []*staged
	cleanup := func() {
		for _, s := range stage {
			if s.tmp != "" {
				os.Remove(s.tmp)
			}
		}
	}

	for _, t := range batch.Tables() {
		path := b.layout.Path(t)
		tmp, err := stageTableFile(path, t, batch.RowsFor(t))
		if err != nil {
			cleanup()
			return fmt.Errorf("failed to stage %s: %w", t.Name, err)
		}
		_, statErr := os.Stat(path)
		stage = append(stage, &staged{path: path, tmp: tmp, bak: path + ".bak", hadOld: statErr == nil})
	}

	var swapped []*staged
	rollback := func(cause error) error {
		for i := len(swapped) - 1; i >= 0; i-- {
			s := swapped[i]
			if s.hadOld {
				if err := util.RetryableRename(s.bak, s.path, b.retry); err != nil {
					util.ErrorLog("Rollback of %s failed, original kept at %s: %v", s.path, s.bak, err)
				}
			} else {
				os.Remove(s.path)
			}
		}
		cleanup()
		return cause
	}

	for _, s := range stage {
		if s.hadOld {
			if err := util.RetryableRename(s.path, s.bak, b.retry); err != nil {
				return rollback(err)
			}
		}
		if err := util.RetryableRename(s.tmp, s.path, b.retry); err != nil {
			if s.hadOld {
				util.RetryableRename(s.bak, s.path, b.retry)
			}
			return rollback(err)
		}
		s.tmp = ""
		swapped = append(swapped, s)
	}

	for _, s := range swapped {
		if s.hadOld {
			if err := util.RetryableRemove(s.bak, b.retry); err != nil {
				util.WarnLog("Could not remove backup %s: %v", s.bak, err)
			}
		}
	}
	return nil
}

func (b *csvBackend) Close() error {
	return nil
}

// stageTableFile writes a full table into a synced temp file in the same
// directory as path and returns the temp file name
func stageTableFile(path string, t Table, rows []Row) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", err
	}
	tmp := f.Name()

	if err := writeRows(f, t, rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}

func writeTableFile(path string, t Table, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeRows(f, t, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeRows(w io.Writer, t Table, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(toRecords(rows)); err != nil {
		return err
	}
	return cw.Error()
}

func toRecords(rows []Row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}
