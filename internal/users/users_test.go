package users

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/franz/scma/internal/ident"
	"github.com/franz/scma/internal/store"
	"github.com/franz/scma/internal/util"
)

func newDirectory(t *testing.T) (*Directory, *store.Store) {
	t.Helper()
	s, err := store.Open(store.OpenOptions{Driver: store.DriverCSV, Layout: store.DefaultLayout(t.TempDir())})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	d := New(s, ident.New())
	d.SetCost(bcrypt.MinCost)
	return d, s
}

func TestRegisterAndAuthenticate(t *testing.T) {
	d, _ := newDirectory(t)

	u, err := d.Register("  Alice ", "alice@example.com", "s3cret", "Creator")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if u.Username != "Alice" || u.Role != store.RoleCreator {
		t.Errorf("unexpected user %+v", u)
	}
	if u.PasswordHash == "s3cret" || !strings.HasPrefix(u.PasswordHash, "$2") {
		t.Errorf("password not bcrypt hashed: %q", u.PasswordHash)
	}

	got, err := d.Authenticate("Alice", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if got.UserID != u.UserID {
		t.Errorf("expected user %s, got %s", u.UserID, got.UserID)
	}

	tests := []struct {
		name, username, password string
	}{
		{"wrong password", "Alice", "guess"},
		{"username is case sensitive", "alice", "s3cret"},
		{"unknown user", "mallory", "s3cret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.Authenticate(tt.username, tt.password); !errors.Is(err, util.ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestRegisterValidation(t *testing.T) {
	d, _ := newDirectory(t)
	if _, err := d.Register("alice", "", "pw", "viewer"); err != nil {
		t.Fatal(err)
	}

	if _, err := d.Register("ALICE", "", "pw", "viewer"); !errors.Is(err, util.ErrDuplicateUsername) {
		t.Errorf("expected ErrDuplicateUsername, got %v", err)
	}
	if _, err := d.Register("bob", "", "pw", "owner"); !errors.Is(err, util.ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := d.Register(" ", "", "pw", "viewer"); err == nil {
		t.Error("expected error for blank username")
	}
	if _, err := d.Register("bob", "", "", "viewer"); err == nil {
		t.Error("expected error for empty password")
	}

	all, _ := d.List()
	if len(all) != 1 {
		t.Errorf("failed registrations wrote rows: %d users", len(all))
	}
}

func TestLegacyHashLogin(t *testing.T) {
	d, s := newDirectory(t)
	sum := sha256.Sum256([]byte("hunter2"))
	legacy := &store.User{UserID: "1234", Username: "old", PasswordHash: hex.EncodeToString(sum[:]), Role: store.RoleAdmin}
	if err := s.Append(store.UsersTable, legacy.Row()); err != nil {
		t.Fatal(err)
	}

	u, err := d.Authenticate("old", "hunter2")
	if err != nil {
		t.Fatalf("legacy login failed: %v", err)
	}
	if !NeedsRehash(u) {
		t.Error("expected legacy hash to need rehash")
	}
	if _, err := d.Authenticate("old", "hunter3"); !errors.Is(err, util.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}

	if err := d.Rehash("1234", "hunter2"); err != nil {
		t.Fatalf("Rehash failed: %v", err)
	}
	u, err = d.Authenticate("old", "hunter2")
	if err != nil {
		t.Fatalf("login after rehash failed: %v", err)
	}
	if NeedsRehash(u) {
		t.Error("hash still legacy after rehash")
	}
}

func TestAuthenticateRejectsInvalidStoredRole(t *testing.T) {
	d, s := newDirectory(t)
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	odd := &store.User{UserID: "1234", Username: "odd", PasswordHash: string(hash), Role: "root"}
	s.Append(store.UsersTable, odd.Row())

	if _, err := d.Authenticate("odd", "pw"); !errors.Is(err, util.ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}

func TestGetAndRemove(t *testing.T) {
	d, _ := newDirectory(t)
	a, _ := d.Register("alice", "", "pw", "admin")
	b, _ := d.Register("bob", "", "pw", "viewer")

	got, err := d.Get(b.UserID)
	if err != nil || got.Username != "bob" {
		t.Fatalf("Get failed: %v, %+v", err, got)
	}

	if err := d.Remove(""); err != nil {
		t.Errorf("empty id should cancel, got %v", err)
	}
	if err := d.Remove(b.UserID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := d.Get(b.UserID); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}
	if err := d.Remove(b.UserID); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected ErrNotFound for second remove, got %v", err)
	}

	all, _ := d.List()
	if len(all) != 1 || all[0].UserID != a.UserID {
		t.Errorf("unexpected users after remove: %+v", all)
	}
}
