package main

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/franz/scma/internal/catalog"
	"github.com/franz/scma/internal/store"
	"github.com/franz/scma/internal/util"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	util.SetQuiet(true)
	t.Cleanup(func() { util.SetLogLevel(util.LevelInfo) })

	dir := t.TempDir()
	cfg := &appConfig{
		DataDir:   filepath.Join(dir, "database"),
		Backend:   store.DriverCSV,
		EventsDir: filepath.Join(dir, "logs"),
		NoFFprobe: true,
	}
	a, err := openApp(cfg)
	if err != nil {
		t.Fatalf("openApp failed: %v", err)
	}
	a.users.SetCost(bcrypt.MinCost)
	t.Cleanup(func() { a.Close() })
	return a
}

func testPrompter(input string) (*prompter, *bytes.Buffer) {
	var out bytes.Buffer
	r := strings.NewReader(input)
	return &prompter{raw: r, in: bufio.NewReader(r), out: &out}, &out
}

func register(t *testing.T, a *app, name string, role store.Role) *store.User {
	t.Helper()
	u, err := a.users.Register(name, name+"@example.com", "pw", string(role))
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestDashboardMenuFollowsRole(t *testing.T) {
	a := newTestApp(t)
	tests := []struct {
		role store.Role
		keys []string
	}{
		{store.RoleViewer, []string{"va"}},
		{store.RoleCreator, []string{"va", "aa", "ma"}},
		{store.RoleAdmin, []string{"va", "aa", "da", "mu"}},
	}
	for _, tt := range tests {
		u := register(t, a, "user-"+string(tt.role), tt.role)
		p, _ := testPrompter("")
		items := newDashboard(a.guard(u), p).items()

		var keys []string
		for _, m := range items {
			keys = append(keys, m.key)
		}
		if strings.Join(keys, ",") != strings.Join(tt.keys, ",") {
			t.Errorf("%s menu = %v, want %v", tt.role, keys, tt.keys)
		}
	}
}

func TestDashboardAddAndView(t *testing.T) {
	a := newTestApp(t)
	u := register(t, a, "cleo", store.RoleCreator)

	lyrics := filepath.Join(t.TempDir(), "ode.txt")
	os.WriteFile(lyrics, []byte("O wild West Wind\n"), 0644)
	missing := filepath.Join(t.TempDir(), "missing.txt")

	input := strings.Join([]string{
		"aa", "Ode", "Poem", missing, "English", "", "",
		lyrics, // corrected lyrics path after the failed extraction
		"lo",
	}, "\n") + "\n"
	p, _ := testPrompter(input)
	if err := newDashboard(a.guard(u), p).run(); err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}

	list, err := a.catalog.List(catalog.Requester{UserID: u.UserID, Role: u.Role})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(list))
	}
	id := list[0].ArtifactID

	p, out := testPrompter("va\n" + id + "\nlo\n")
	if err := newDashboard(a.guard(u), p).run(); err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	for _, want := range []string{"Ode", "Poem", "O wild West Wind", "English"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("view output missing %q:\n%s", want, out.String())
		}
	}

	entries, _ := a.journal.Entries(id)
	if len(entries) != 2 {
		t.Errorf("expected add and view journal entries, got %d", len(entries))
	}
}

func TestDashboardModifyKeepsBlankFields(t *testing.T) {
	a := newTestApp(t)
	u := register(t, a, "cleo", store.RoleCreator)
	added, err := a.catalog.Add(u.UserID, catalog.NewArtifact{Title: "Ode", Type: "Poem", Language: "English"})
	if err != nil {
		t.Fatal(err)
	}

	p, _ := testPrompter("ma\n" + added.ArtifactID + "\nOde to Joy\n\n\n\n\n\nlo\n")
	if err := newDashboard(a.guard(u), p).run(); err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}

	v, err := a.catalog.View(added.ArtifactID, catalog.Requester{UserID: u.UserID, Role: u.Role})
	if err != nil {
		t.Fatal(err)
	}
	if title, _ := v.Title.Text(); title != "Ode to Joy" {
		t.Errorf("title not updated: %q", title)
	}
	if typ, _ := v.Type.Text(); typ != "Poem" {
		t.Errorf("blank type changed the value: %q", typ)
	}
	if lang, _ := v.Language.Text(); lang != "English" {
		t.Errorf("blank language changed the value: %q", lang)
	}
}

func TestDashboardDeleteAndDenial(t *testing.T) {
	a := newTestApp(t)
	cleo := register(t, a, "cleo", store.RoleCreator)
	ada := register(t, a, "ada", store.RoleAdmin)
	added, _ := a.catalog.Add(cleo.UserID, catalog.NewArtifact{Title: "Ode", Type: "Poem"})

	// creators have no delete entry; the choice is rejected as unknown
	p, _ := testPrompter("da\nlo\n")
	if err := newDashboard(a.guard(cleo), p).run(); err != nil {
		t.Fatal(err)
	}
	if e, _ := a.catalog.Get(added.ArtifactID); e.Artifact == nil {
		t.Fatal("creator deleted an artifact")
	}

	// a declined confirmation cancels without a journal entry
	p, _ = testPrompter("da\n" + added.ArtifactID + "\nn\nlo\n")
	if err := newDashboard(a.guard(ada), p).run(); err != nil {
		t.Fatal(err)
	}
	entries, _ := a.journal.Entries(added.ArtifactID)
	if len(entries) != 1 {
		t.Errorf("cancelled delete was journaled: %d entries", len(entries))
	}

	p, _ = testPrompter("da\n" + added.ArtifactID + "\ny\nlo\n")
	if err := newDashboard(a.guard(ada), p).run(); err != nil {
		t.Fatal(err)
	}
	if e, _ := a.catalog.Get(added.ArtifactID); e.Artifact != nil {
		t.Error("artifact survived delete")
	}
}

func TestDashboardEndsOnClosedInput(t *testing.T) {
	a := newTestApp(t)
	u := register(t, a, "vera", store.RoleViewer)

	p, _ := testPrompter("va\n")
	if err := newDashboard(a.guard(u), p).run(); err != nil {
		t.Errorf("closed input should end the session quietly, got %v", err)
	}
}

func TestHandleErrors(t *testing.T) {
	d := &dashboard{}
	recoverable := []error{
		util.ErrNotFound,
		util.ErrPermission,
		&catalog.ExtractError{Field: "audio", Path: "x.ogg", Err: util.ErrUnsupported},
		errors.New("cannot remove the account you are logged in with"),
	}
	for _, err := range recoverable {
		if got := d.handle(err); got != nil {
			t.Errorf("handle(%v) = %v, want nil", err, got)
		}
	}

	fatal := []error{
		errInputClosed,
		util.ErrIDSpaceExhausted,
		&os.PathError{Op: "open", Path: "users.csv", Err: os.ErrPermission},
	}
	for _, err := range fatal {
		if got := d.handle(err); got == nil {
			t.Errorf("handle(%v) should return the error", err)
		}
	}
}

func TestAuthenticateAttempts(t *testing.T) {
	a := newTestApp(t)
	register(t, a, "ada", store.RoleAdmin)

	p, _ := testPrompter("ada\nwrong\nada\npw\n")
	u, err := authenticate(a, p, "")
	if err != nil || u.Username != "ada" {
		t.Fatalf("expected login on second attempt, got %v", err)
	}

	p, _ = testPrompter("x\nx\nx\n")
	if _, err := authenticate(a, p, "ada"); !errors.Is(err, util.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials after 3 attempts, got %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("backend", "SQLite")
	viper.Set("data-dir", "/srv/archive")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Backend != store.DriverSQLite || cfg.SQLitePath != filepath.Join("/srv/archive", "scma.db") {
		t.Errorf("unexpected config %+v", cfg)
	}

	viper.Set("tables", map[string]string{"users": "/etc/scma/users.csv"})
	cfg, err = loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.layout().Path(store.UsersTable); got != "/etc/scma/users.csv" {
		t.Errorf("users table at %s", got)
	}
	if got := cfg.layout().Path(store.LyricsTable); got != filepath.Join("/srv/archive", "lyrics.csv") {
		t.Errorf("lyrics table at %s", got)
	}

	viper.Set("tables", map[string]string{"songs": "songs.csv"})
	if _, err := loadConfig(); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for unknown table, got %v", err)
	}

	viper.Set("tables", nil)
	viper.Set("backend", "tape")
	if _, err := loadConfig(); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
