package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/franz/scma/internal/catalog"
	"github.com/franz/scma/internal/store"
	"github.com/franz/scma/internal/util"
)

func TestRequireAdmin(t *testing.T) {
	a := newTestApp(t)
	register(t, a, "ada", store.RoleAdmin)
	register(t, a, "cleo", store.RoleCreator)

	p, _ := testPrompter("pw\n")
	if u, err := requireAdmin(a, p, "ada", "verify"); err != nil || u.Username != "ada" {
		t.Errorf("expected admin to pass, got %v", err)
	}

	p, _ = testPrompter("pw\n")
	if _, err := requireAdmin(a, p, "cleo", "verify"); !errors.Is(err, util.ErrPermission) {
		t.Errorf("expected ErrPermission for creator, got %v", err)
	}
}

func TestPrintChecks(t *testing.T) {
	checks := []catalog.Check{
		{ArtifactID: "2000", OwnerID: "1000", ChecksumOK: true},
		{ArtifactID: "2001", OwnerID: "1000", Failures: []string{"title", "type"}},
		{ArtifactID: "2002", OwnerID: "1001"},
		{ArtifactID: "2003", OwnerID: "1001", ChecksumOK: true, Missing: []string{"music_scores"}},
	}
	util.SetQuiet(true)
	t.Cleanup(func() { util.SetLogLevel(util.LevelInfo) })

	p, out := testPrompter("")
	if n := printChecks(p, checks); n != 2 {
		t.Errorf("expected 2 failures, got %d", n)
	}
	got := out.String()
	if !strings.Contains(got, "undecryptable: title, type") || !strings.Contains(got, "checksum mismatch") {
		t.Errorf("unexpected output:\n%s", got)
	}
	if strings.Contains(got, "2000") || strings.Contains(got, "2003") {
		t.Errorf("passing artifacts should not be listed:\n%s", got)
	}
}

func TestVerifyCatalog(t *testing.T) {
	a := newTestApp(t)
	ada := register(t, a, "ada", store.RoleAdmin)
	if _, err := a.guard(ada).Add(catalog.NewArtifact{Title: "Ode", Type: "Poem"}); err != nil {
		t.Fatal(err)
	}

	checks, err := a.catalog.Verify(newVerifyProgress())
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	p, _ := testPrompter("")
	if len(checks) != 1 || printChecks(p, checks) != 0 {
		t.Errorf("expected one passing artifact, got %+v", checks)
	}
}
