package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/franz/scma/internal/access"
	"github.com/franz/scma/internal/catalog"
	"github.com/franz/scma/internal/fieldcrypt"
	"github.com/franz/scma/internal/store"
	"github.com/franz/scma/internal/util"
)

// dashboard is the interactive menu of a logged-in session
type dashboard struct {
	g *access.Guard
	p *prompter
}

type menuItem struct {
	key   string
	label string
	op    access.Operation
	run   func(*dashboard) error
}

var menu = []menuItem{
	{"va", "View Artifact", access.OpView, (*dashboard).viewArtifact},
	{"aa", "Add Artifact", access.OpAdd, (*dashboard).addArtifact},
	{"ma", "Modify Artifact", access.OpModify, (*dashboard).modifyArtifact},
	{"da", "Delete Artifact", access.OpDelete, (*dashboard).deleteArtifact},
	{"mu", "Manage Users", access.OpManageUsers, (*dashboard).manageUsers},
}

const logoutKey = "lo"

func newDashboard(g *access.Guard, p *prompter) *dashboard {
	return &dashboard{g: g, p: p}
}

// items returns the menu entries the session's role allows
func (d *dashboard) items() []menuItem {
	var out []menuItem
	for _, op := range access.Operations(d.g.Session().Role) {
		for _, m := range menu {
			if m.op == op {
				out = append(out, m)
			}
		}
	}
	return out
}

// run shows the menu until the user logs out or input ends
func (d *dashboard) run() error {
	for {
		s := d.g.Session()
		d.p.printf("\n%s\n%s (%s)\n", rule(), s.Username, s.Role)
		items := d.items()
		for _, m := range items {
			d.p.printf("  %s  %s\n", m.key, m.label)
		}
		d.p.printf("  %s  Logout\n", logoutKey)

		choice, err := d.p.ask("> ")
		if errors.Is(err, errInputClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		choice = strings.ToLower(choice)
		if choice == logoutKey {
			util.InfoLog("Logged out")
			return nil
		}

		item, ok := find(items, choice)
		if !ok {
			util.WarnLog("Unknown option %q", choice)
			continue
		}
		if err := d.handle(item.run(d)); err != nil {
			return err
		}
	}
}

func find(items []menuItem, key string) (menuItem, bool) {
	for _, m := range items {
		if m.key == key {
			return m, true
		}
	}
	return menuItem{}, false
}

// handle prints errors the user can act on and returns the rest, which end
// the session
func (d *dashboard) handle(err error) error {
	if err == nil {
		return nil
	}
	var xerr *catalog.ExtractError
	var perr *fs.PathError
	switch {
	case errors.Is(err, errInputClosed):
		return err
	case errors.As(err, &xerr):
		util.ErrorLog("%v", err)
	case errors.Is(err, util.ErrIDSpaceExhausted), errors.As(err, &perr):
		return err
	case errors.Is(err, util.ErrPermission):
		util.ErrorLog("Permission denied: %v", err)
	case errors.Is(err, util.ErrNotFound):
		util.ErrorLog("Not found: %v", err)
	default:
		util.ErrorLog("%v", err)
	}
	return nil
}

func rule() string {
	width := util.GetTerminalWidth()
	if width > 60 {
		width = 60
	}
	return strings.Repeat("-", width)
}

// listArtifacts prints the artifacts the session can see and reports
// whether there were any
func (d *dashboard) listArtifacts() (bool, error) {
	list, err := d.g.List()
	if err != nil {
		return false, err
	}
	if len(list) == 0 {
		d.p.printf("No artifacts.\n")
		return false, nil
	}
	d.p.printf("%-6s %-32s %-16s %s\n", "ID", "Title", "Owner", "Modified")
	for _, s := range list {
		d.p.printf("%-6s %-32s %-16s %s\n", s.ArtifactID, truncate(s.Title.String(), 32), truncate(s.OwnerName, 16), since(s.ModificationDate))
	}
	return true, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func since(ts string) string {
	t, err := store.ParseTime(ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}

func (d *dashboard) viewArtifact() error {
	listed, err := d.listArtifacts()
	if err != nil || !listed {
		return err
	}
	id, err := d.p.ask("Artifact ID (blank to cancel): ")
	if err != nil || id == "" {
		return err
	}

	v, err := d.g.View(id)
	if err != nil {
		return err
	}
	d.printView(v)
	return nil
}

func (d *dashboard) printView(v *catalog.View) {
	field := func(label string, r fieldcrypt.Result) {
		d.p.printf("  %-12s %s\n", label+":", orNone(r))
	}

	d.p.printf("\nArtifact %s\n", v.ArtifactID)
	field("Title", v.Title)
	field("Type", v.Type)
	d.p.printf("  %-12s %s\n", "Owner:", v.OwnerID)
	d.p.printf("  %-12s %s (%s)\n", "Created:", v.CreationDate, since(v.CreationDate))
	d.p.printf("  %-12s %s (%s)\n", "Modified:", v.ModificationDate, since(v.ModificationDate))
	field("Lyrics file", v.LyricsPath)
	field("Audio file", v.AudioPath)

	if v.HasLyrics {
		field("Language", v.Language)
		d.p.printf("  Lyrics:\n")
		for _, line := range strings.Split(orNone(v.Lyrics), "\n") {
			d.p.printf("    %s\n", line)
		}
	} else {
		d.p.printf("  %-12s (no lyrics record)\n", "Lyrics:")
	}
	if v.HasScore {
		field("Score", v.Score)
	} else {
		d.p.printf("  %-12s (no score record)\n", "Score:")
	}
	if v.HasRecording {
		field("Format", v.Format)
		if secs, ok := v.Duration.Text(); ok && secs != "" {
			d.p.printf("  %-12s %s s\n", "Duration:", secs)
		} else {
			field("Duration", v.Duration)
		}
	} else {
		d.p.printf("  %-12s (no recording record)\n", "Recording:")
	}

	if failed := v.Failures(); len(failed) > 0 {
		util.WarnLog("Could not decrypt: %s", strings.Join(failed, ", "))
	} else if !v.ChecksumOK {
		util.WarnLog("Title and type do not match the stored checksum")
	}
}

func orNone(r fieldcrypt.Result) string {
	if s, ok := r.Text(); ok && s == "" {
		return "-"
	}
	return r.String()
}

func (d *dashboard) addArtifact() error {
	var in catalog.NewArtifact
	var err error

	for in.Title == "" {
		if in.Title, err = d.p.ask("Title: "); err != nil {
			return err
		}
	}
	if in.Type, err = d.p.ask("Type (song, poem, ...): "); err != nil {
		return err
	}
	if in.LyricsPath, err = d.p.ask("Lyrics file, .pdf or .txt (blank for none): "); err != nil {
		return err
	}
	if in.Language, err = d.p.ask("Language: "); err != nil {
		return err
	}
	if in.Score, err = d.p.ask("Score: "); err != nil {
		return err
	}
	if in.AudioPath, err = d.p.ask("Audio file (blank for none): "); err != nil {
		return err
	}

	for {
		a, err := d.g.Add(in)
		var xerr *catalog.ExtractError
		if !errors.As(err, &xerr) {
			if err != nil {
				return err
			}
			util.SuccessLog("Artifact %s added", a.ArtifactID)
			return nil
		}

		util.ErrorLog("%v", xerr)
		path, err := d.p.ask(fmt.Sprintf("Corrected %s file (blank for none): ", xerr.Field))
		if err != nil {
			return err
		}
		if xerr.Field == "lyrics" {
			in.LyricsPath = path
		} else {
			in.AudioPath = path
		}
	}
}

func (d *dashboard) modifyArtifact() error {
	listed, err := d.listArtifacts()
	if err != nil || !listed {
		return err
	}
	id, err := d.p.ask("Artifact ID (blank to cancel): ")
	if err != nil || id == "" {
		return err
	}

	d.p.printf("Leave a field blank to keep its current value.\n")
	var u catalog.Update
	fields := []struct {
		label string
		dst   *catalog.Value
	}{
		{"New title: ", &u.Title},
		{"New type: ", &u.Type},
		{"New lyrics file: ", &u.LyricsPath},
		{"New language: ", &u.Language},
		{"New score: ", &u.Score},
		{"New audio file: ", &u.AudioPath},
	}
	for _, f := range fields {
		s, err := d.p.ask(f.label)
		if err != nil {
			return err
		}
		*f.dst = catalog.FromInput(s)
	}

	for {
		_, err := d.g.Modify(id, u)
		var xerr *catalog.ExtractError
		if !errors.As(err, &xerr) {
			if err != nil {
				return err
			}
			util.SuccessLog("Artifact %s updated", id)
			return nil
		}

		util.ErrorLog("%v", xerr)
		s, err := d.p.ask(fmt.Sprintf("Corrected %s file (blank keeps current): ", xerr.Field))
		if err != nil {
			return err
		}
		if xerr.Field == "lyrics" {
			u.LyricsPath = catalog.FromInput(s)
		} else {
			u.AudioPath = catalog.FromInput(s)
		}
	}
}

func (d *dashboard) deleteArtifact() error {
	listed, err := d.listArtifacts()
	if err != nil || !listed {
		return err
	}
	id, err := d.p.ask("Artifact ID (blank to cancel): ")
	if err != nil {
		return err
	}
	if id != "" {
		ok, err := d.p.ask(fmt.Sprintf("Delete artifact %s and its records? [y/N]: ", id))
		if err != nil {
			return err
		}
		if !strings.EqualFold(ok, "y") {
			id = ""
		}
	}

	found, err := d.g.Delete(id)
	switch {
	case err != nil:
		return err
	case id == "":
		d.p.printf("Cancelled.\n")
	case found:
		util.SuccessLog("Artifact %s removed", id)
	default:
		util.ErrorLog("Artifact %s not found", id)
	}
	return nil
}

func (d *dashboard) manageUsers() error {
	all, err := d.g.Users()
	if err != nil {
		return err
	}
	d.p.printf("%-6s %-20s %-28s %s\n", "ID", "Username", "Email", "Role")
	for _, u := range all {
		d.p.printf("%-6s %-20s %-28s %s\n", u.UserID, truncate(u.Username, 20), truncate(u.Email, 28), u.Role)
	}

	id, err := d.p.ask("User ID to remove (blank to go back): ")
	if err != nil || id == "" {
		return err
	}
	ok, err := d.p.ask(fmt.Sprintf("Remove user %s? Their artifacts are kept. [y/N]: ", id))
	if err != nil || !strings.EqualFold(ok, "y") {
		return err
	}
	if err := d.g.RemoveUser(id); err != nil {
		return err
	}
	util.SuccessLog("User %s removed", id)
	return nil
}
