package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/scma/internal/report"
	"github.com/franz/scma/internal/store"
	"github.com/franz/scma/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and the archive",
	Long: `Run diagnostic checks to ensure scma can operate correctly.

This command checks:
- Optional tools (ffprobe for audio durations)
- SQLite version
- Data directory permissions and free disk space
- Every table is readable
- Leftovers of an interrupted write (.bak files)
- Rows that reference a deleted artifact
- Database integrity (sqlite backend)`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== scma doctor ===")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	results := []checkResult{
		checkFFprobe(),
		checkSQLite(),
		checkDataDirectory(cfg.DataDir),
	}
	if _, err := os.Stat(cfg.DataDir); err == nil {
		results = append(results, checkDiskSpace(cfg.DataDir))
	}

	if cfg.Backend == store.DriverCSV {
		results = append(results, checkLeftovers(cfg.layout()))
	}

	results = append(results, checkStore(cfg)...)

	util.InfoLog("")
	hasErrors := false
	hasWarnings := false
	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("Some checks failed. Resolve the errors above before using the archive.")
		return fmt.Errorf("diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings.")
	} else {
		util.SuccessLog("All checks passed.")
	}
	return nil
}

// checkFFprobe reports the ffprobe version. Without it durations are read
// only from FLAC and tagged MP3 files.
func checkFFprobe() checkResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "ffprobe", "-version").CombinedOutput()
	if err != nil {
		return checkResult{
			name:    "ffprobe (optional)",
			warning: true,
			message: "not found (durations limited to FLAC and tagged MP3)",
		}
	}

	version := "unknown"
	if lines := strings.Split(string(output), "\n"); len(lines) > 0 {
		if parts := strings.Fields(lines[0]); len(parts) >= 3 {
			version = parts[2]
		}
	}
	return checkResult{name: "ffprobe (optional)", message: fmt.Sprintf("version %s", version)}
}

func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{name: "SQLite", error: true, message: "unable to determine version"}
	}
	return checkResult{name: "SQLite", message: fmt.Sprintf("version %s (built-in)", version)}
}

// checkDataDirectory verifies the data directory is writable
func checkDataDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return checkResult{name: "Data directory", warning: true, message: fmt.Sprintf("%s does not exist (run scma init)", path)}
	}
	if err != nil {
		return checkResult{name: "Data directory", error: true, message: fmt.Sprintf("cannot access %s: %v", path, err)}
	}
	if !info.IsDir() {
		return checkResult{name: "Data directory", error: true, message: fmt.Sprintf("%s is not a directory", path)}
	}

	f, err := os.CreateTemp(path, ".scma_write_test-*")
	if err != nil {
		return checkResult{name: "Data directory", error: true, message: fmt.Sprintf("cannot write to %s: %v", path, err)}
	}
	f.Close()
	os.Remove(f.Name())

	return checkResult{name: "Data directory", message: fmt.Sprintf("%s (writable)", path)}
}

func checkDiskSpace(path string) checkResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{name: "Disk space", warning: true, message: fmt.Sprintf("cannot determine disk space: %v", err)}
	}

	avail := stat.Bavail * uint64(stat.Bsize)
	r := checkResult{name: "Disk space", message: fmt.Sprintf("%s available", humanize.Bytes(avail))}
	if avail < 100*humanize.MByte {
		r.warning = true
		r.message += " (low space)"
	}
	return r
}

// checkLeftovers looks for .bak files a crashed commit may have left next
// to the tables
func checkLeftovers(l store.Layout) checkResult {
	var found []string
	for _, t := range store.Tables {
		bak := l.Path(t) + ".bak"
		if _, err := os.Stat(bak); err == nil {
			found = append(found, filepath.Base(bak))
		}
	}
	if len(found) > 0 {
		return checkResult{
			name:    "Interrupted writes",
			warning: true,
			message: fmt.Sprintf("found %s; compare with the table and remove once resolved", strings.Join(found, ", ")),
		}
	}
	return checkResult{name: "Interrupted writes", message: "none"}
}

// checkStore opens the configured backend and checks its contents
func checkStore(cfg *appConfig) []checkResult {
	if cfg.Backend == store.DriverSQLite {
		if _, err := os.Stat(cfg.SQLitePath); os.IsNotExist(err) {
			return []checkResult{{name: "Database", warning: true, message: fmt.Sprintf("%s does not exist (run scma init)", cfg.SQLitePath)}}
		}
	}

	s, err := store.Open(cfg.openOptions())
	if err != nil {
		return []checkResult{{name: "Store", error: true, message: err.Error()}}
	}
	defer s.Close()

	results := checkTables(s)
	results = append(results, checkOrphans(s))
	if cfg.Backend == store.DriverSQLite {
		results = append(results, checkDatabase(s, cfg.SQLitePath))
	}
	return results
}

func checkTables(s *store.Store) []checkResult {
	var results []checkResult
	for _, t := range store.Tables {
		rows, err := s.Rows(t)
		if err != nil {
			results = append(results, checkResult{name: "Table " + t.Name, error: true, message: err.Error()})
			continue
		}
		results = append(results, checkResult{name: "Table " + t.Name, message: fmt.Sprintf("%s rows", humanize.Comma(int64(len(rows))))})
	}
	return results
}

func checkOrphans(s *store.Store) checkResult {
	audit, err := report.GenerateAuditReport(s, 0, 0)
	if err != nil {
		return checkResult{name: "Orphaned rows", error: true, message: err.Error()}
	}
	if n := len(audit.Orphans); n > 0 {
		return checkResult{
			name:    "Orphaned rows",
			warning: true,
			message: fmt.Sprintf("%d dependent rows reference missing artifacts (see scma audit)", n),
		}
	}
	return checkResult{name: "Orphaned rows", message: "none"}
}

func checkDatabase(s *store.Store, path string) checkResult {
	if err := s.CheckIntegrity(); err != nil {
		return checkResult{name: "Database", error: true, message: fmt.Sprintf("integrity check failed: %v", err)}
	}
	size := "unknown size"
	if info, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	return checkResult{name: "Database", message: fmt.Sprintf("%s (%s, integrity ok)", path, size)}
}
