// Package users registers and authenticates accounts stored in the users
// table.
package users

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/franz/scma/internal/ident"
	"github.com/franz/scma/internal/store"
	"github.com/franz/scma/internal/util"
)

// Directory is the user account table
type Directory struct {
	store *store.Store
	ids   *ident.Allocator
	cost  int
}

// New creates a directory over an opened store
func New(s *store.Store, ids *ident.Allocator) *Directory {
	return &Directory{store: s, ids: ids, cost: bcrypt.DefaultCost}
}

// SetCost changes the bcrypt cost used for new hashes
func (d *Directory) SetCost(cost int) {
	d.cost = cost
}

// Register creates an account. Usernames are unique ignoring case.
func (d *Directory) Register(username, email, password, role string) (*store.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username must not be empty")
	}
	if password == "" {
		return nil, errors.New("password must not be empty")
	}
	r, ok := store.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("%q (choose admin, creator or viewer): %w", role, util.ErrInvalidRole)
	}

	all, err := d.List()
	if err != nil {
		return nil, err
	}
	existing := make([]string, 0, len(all))
	for _, u := range all {
		if strings.EqualFold(u.Username, username) {
			return nil, fmt.Errorf("%s: %w", username, util.ErrDuplicateUsername)
		}
		existing = append(existing, u.UserID)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	id, err := d.ids.Next(existing)
	if err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}

	u := &store.User{
		UserID:       id,
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hash),
		Role:         r,
	}
	if err := d.store.Append(store.UsersTable, u.Row()); err != nil {
		return nil, err
	}
	util.DebugLog("Registered user %s (%s) as %s", username, id, r)
	return u, nil
}

// Authenticate returns the account whose username matches exactly and
// whose stored hash accepts password
func (d *Directory) Authenticate(username, password string) (*store.User, error) {
	all, err := d.List()
	if err != nil {
		return nil, err
	}
	for _, u := range all {
		if u.Username != username {
			continue
		}
		if !checkPassword(u.PasswordHash, password) {
			break
		}
		if _, ok := store.ParseRole(string(u.Role)); !ok {
			return nil, fmt.Errorf("account %s has role %q: %w", u.Username, u.Role, util.ErrInvalidRole)
		}
		return u, nil
	}
	return nil, util.ErrInvalidCredentials
}

// checkPassword accepts bcrypt hashes and the unsalted hex SHA-256 hashes
// written by earlier versions of the archive
func checkPassword(stored, password string) bool {
	if isLegacyHash(stored) {
		sum := sha256.Sum256([]byte(password))
		return subtle.ConstantTimeCompare([]byte(strings.ToLower(stored)), []byte(hex.EncodeToString(sum[:]))) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

func isLegacyHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// NeedsRehash reports whether an account still carries a legacy hash
func NeedsRehash(u *store.User) bool {
	return isLegacyHash(u.PasswordHash)
}

// Rehash replaces a legacy password hash with a bcrypt hash of password
func (d *Directory) Rehash(userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return d.rewrite(userID, func(all []*store.User, i int) []*store.User {
		all[i].PasswordHash = string(hash)
		return all
	})
}

// List returns every account in stored order
func (d *Directory) List() ([]*store.User, error) {
	return store.Load(d.store, store.UsersTable, store.UserFromRow)
}

// Get returns one account by ID
func (d *Directory) Get(userID string) (*store.User, error) {
	all, err := d.List()
	if err != nil {
		return nil, err
	}
	for _, u := range all {
		if u.UserID == userID {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", userID, util.ErrNotFound)
}

// Remove deletes an account. An empty ID is a cancelled request and does
// nothing. Artifacts owned by the account are kept.
func (d *Directory) Remove(userID string) error {
	if userID == "" {
		return nil
	}
	return d.rewrite(userID, func(all []*store.User, i int) []*store.User {
		return append(all[:i], all[i+1:]...)
	})
}

func (d *Directory) rewrite(userID string, change func([]*store.User, int) []*store.User) error {
	all, err := d.List()
	if err != nil {
		return err
	}
	for i, u := range all {
		if u.UserID == userID {
			b := store.NewBatch()
			b.Put(store.UsersTable, store.Encode(change(all, i)))
			return d.store.Commit(b)
		}
	}
	return fmt.Errorf("user %s: %w", userID, util.ErrNotFound)
}
