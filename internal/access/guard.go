package access

import (
	"errors"
	"fmt"

	"github.com/franz/scma/internal/catalog"
	"github.com/franz/scma/internal/report"
	"github.com/franz/scma/internal/store"
	"github.com/franz/scma/internal/users"
	"github.com/franz/scma/internal/util"
)

// Session is the authenticated caller
type Session struct {
	UserID   string
	Username string
	Role     store.Role
}

func (s Session) requester() catalog.Requester {
	return catalog.Requester{UserID: s.UserID, Role: s.Role}
}

// Guard checks the session's role before each call and records the
// outcome in the session event log
type Guard struct {
	session Session
	catalog *catalog.Catalog
	users   *users.Directory
	events  *report.EventLogger
}

// NewGuard binds a session to the catalog and user directory. events may
// be nil.
func NewGuard(s Session, c *catalog.Catalog, u *users.Directory, events *report.EventLogger) *Guard {
	return &Guard{session: s, catalog: c, users: u, events: events}
}

// Session returns the bound session
func (g *Guard) Session() Session {
	return g.session
}

// Can reports whether the session may perform op
func (g *Guard) Can(op Operation) bool {
	return Allowed(g.session.Role, op)
}

func (g *Guard) require(op Operation) error {
	if g.Can(op) {
		return nil
	}
	reason := fmt.Sprintf("role %s may not %s", g.session.Role, op)
	g.events.LogDenied(g.session.UserID, string(op), reason)
	return fmt.Errorf("%s: %w", reason, util.ErrPermission)
}

// logOutcome records an artifact operation, marking ownership denials as
// denied events
func (g *Guard) logOutcome(event report.EventType, op Operation, artifactID string, err error) {
	if errors.Is(err, util.ErrPermission) {
		g.events.LogDenied(g.session.UserID, string(op), err.Error())
		return
	}
	g.events.LogAccess(event, g.session.UserID, artifactID, err)
}

// Add stores a new artifact owned by the session user
func (g *Guard) Add(in catalog.NewArtifact) (*store.Artifact, error) {
	if err := g.require(OpAdd); err != nil {
		return nil, err
	}
	a, err := g.catalog.Add(g.session.UserID, in)
	id := ""
	if a != nil {
		id = a.ArtifactID
	}
	g.logOutcome(report.EventAdd, OpAdd, id, err)
	return a, err
}

// View decrypts one artifact
func (g *Guard) View(artifactID string) (*catalog.View, error) {
	if err := g.require(OpView); err != nil {
		return nil, err
	}
	v, err := g.catalog.View(artifactID, g.session.requester())
	g.logOutcome(report.EventView, OpView, artifactID, err)
	if v != nil {
		if failed := v.Failures(); len(failed) > 0 {
			g.events.LogDecryptFailure(g.session.UserID, artifactID, failed)
		}
	}
	return v, err
}

// List summarizes the artifacts the session may see
func (g *Guard) List() ([]catalog.Summary, error) {
	if err := g.require(OpView); err != nil {
		return nil, err
	}
	return g.catalog.List(g.session.requester())
}

// Modify changes an artifact
func (g *Guard) Modify(artifactID string, u catalog.Update) (*store.Artifact, error) {
	if err := g.require(OpModify); err != nil {
		return nil, err
	}
	a, err := g.catalog.Modify(artifactID, u, g.session.requester())
	g.logOutcome(report.EventModify, OpModify, artifactID, err)
	return a, err
}

// Delete removes an artifact and reports whether it existed
func (g *Guard) Delete(artifactID string) (bool, error) {
	if err := g.require(OpDelete); err != nil {
		return false, err
	}
	found, err := g.catalog.Delete(artifactID, g.session.UserID)
	if artifactID != "" {
		outcome := err
		if err == nil && !found {
			outcome = fmt.Errorf("artifact %s: %w", artifactID, util.ErrNotFound)
		}
		g.logOutcome(report.EventDelete, OpDelete, artifactID, outcome)
	}
	return found, err
}

// Users lists every account
func (g *Guard) Users() ([]*store.User, error) {
	if err := g.require(OpManageUsers); err != nil {
		return nil, err
	}
	return g.users.List()
}

// RemoveUser deletes another account. The session's own account cannot be
// removed.
func (g *Guard) RemoveUser(userID string) error {
	if err := g.require(OpManageUsers); err != nil {
		return err
	}
	if userID == g.session.UserID {
		return errors.New("cannot remove the account you are logged in with")
	}
	if err := g.users.Remove(userID); err != nil {
		return err
	}
	if userID != "" {
		g.events.LogSession(report.EventUserRemoved, g.session.UserID, "removed "+userID)
	}
	return nil
}
