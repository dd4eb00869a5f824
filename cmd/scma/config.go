package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/franz/scma/internal/access"
	"github.com/franz/scma/internal/catalog"
	"github.com/franz/scma/internal/ident"
	"github.com/franz/scma/internal/journal"
	"github.com/franz/scma/internal/meta"
	"github.com/franz/scma/internal/report"
	"github.com/franz/scma/internal/store"
	"github.com/franz/scma/internal/users"
	"github.com/franz/scma/internal/util"
)

var envKeyReplacer = strings.NewReplacer("-", "_")

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (SCMA_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := strings.TrimSpace(viper.GetString(key))
	if val == "" {
		return defaultValue
	}
	return val
}

func applyLogging() {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
	if viper.GetBool("no-color") {
		util.SetColors(false)
	}
}

// appConfig is the resolved configuration of one invocation
type appConfig struct {
	DataDir    string
	Backend    string
	SQLitePath string
	Tables     map[string]string // table name -> csv file, from the config file
	EventsDir  string
	EventLevel report.EventLevel
	NoFFprobe  bool
}

func loadConfig() (*appConfig, error) {
	cfg := &appConfig{
		DataDir:    GetConfigString("data-dir", "database"),
		Backend:    strings.ToLower(GetConfigString("backend", store.DriverCSV)),
		Tables:     viper.GetStringMapString("tables"),
		EventsDir:  strings.TrimSpace(viper.GetString("events-dir")),
		EventLevel: report.ParseLevel(viper.GetString("events-level")),
		NoFFprobe:  viper.GetBool("no-ffprobe"),
	}
	cfg.SQLitePath = GetConfigString("sqlite-path", filepath.Join(cfg.DataDir, "scma.db"))

	if cfg.Backend != store.DriverCSV && cfg.Backend != store.DriverSQLite {
		return nil, fmt.Errorf("backend %q (use csv or sqlite): %w", cfg.Backend, util.ErrInvalidConfig)
	}
	for name := range cfg.Tables {
		if !knownTable(name) {
			return nil, fmt.Errorf("tables.%s is not a table: %w", name, util.ErrInvalidConfig)
		}
	}
	return cfg, nil
}

func knownTable(name string) bool {
	for _, t := range store.Tables {
		if t.Name == name {
			return true
		}
	}
	return false
}

// layout places every table in the data directory unless the config file
// names a different file for it
func (c *appConfig) layout() store.Layout {
	l := store.DefaultLayout(c.DataDir)
	for name, path := range c.Tables {
		l.Files[name] = path
	}
	return l
}

func (c *appConfig) openOptions() store.OpenOptions {
	return store.OpenOptions{
		Driver:     c.Backend,
		Layout:     c.layout(),
		SQLitePath: c.SQLitePath,
	}
}

// app wires the archive components for one command
type app struct {
	cfg     *appConfig
	store   *store.Store
	users   *users.Directory
	journal *journal.Journal
	catalog *catalog.Catalog
	events  *report.EventLogger
}

func openApp(cfg *appConfig) (*app, error) {
	s, err := store.Open(cfg.openOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Backend, err)
	}
	if err := s.Init(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	events := report.NullLogger()
	if cfg.EventsDir != "" {
		events, err = report.NewEventLogger(cfg.EventsDir, cfg.EventLevel)
		if err != nil {
			util.WarnLog("Session events disabled: %v", err)
			events = report.NullLogger()
		} else {
			util.DebugLog("Session events: %s", events.Path())
		}
	}

	ids := ident.New()
	j := journal.New(s, ids)
	extractor := meta.New(&meta.Config{DisableFFprobe: cfg.NoFFprobe})
	return &app{
		cfg:     cfg,
		store:   s,
		users:   users.New(s, ids),
		journal: j,
		catalog: catalog.New(s, j, ids, extractor),
		events:  events,
	}, nil
}

func openAppFromFlags() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openApp(cfg)
}

func (a *app) guard(u *store.User) *access.Guard {
	s := access.Session{UserID: u.UserID, Username: u.Username, Role: u.Role}
	return access.NewGuard(s, a.catalog, a.users, a.events)
}

func (a *app) Close() error {
	a.events.Close()
	return a.store.Close()
}
