package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franz/scma/internal/report"
	"github.com/franz/scma/internal/store"
	"github.com/franz/scma/internal/users"
	"github.com/franz/scma/internal/util"
)

const maxLoginAttempts = 3

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and open the dashboard",
	Long: `Log in with a username and password and open the interactive dashboard.

The dashboard only offers the operations your role allows. Every view,
addition, change and deletion of an artifact is written to the access
journal.`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().String("username", "", "account name (asked for when omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := openAppFromFlags()
	if err != nil {
		return err
	}
	defer a.Close()

	p := newPrompter(cmd)
	username, _ := cmd.Flags().GetString("username")

	u, err := authenticate(a, p, username)
	if err != nil {
		return err
	}
	a.events.LogSession(report.EventLogin, u.UserID, "")
	util.SuccessLog("Welcome, %s (%s)", u.Username, u.Role)

	d := newDashboard(a.guard(u), p)
	err = d.run()
	a.events.LogSession(report.EventLogout, u.UserID, "")
	return err
}

// authenticate asks for credentials until they match or attempts run out.
// Accounts with legacy password hashes are upgraded on success.
func authenticate(a *app, p *prompter, username string) (*store.User, error) {
	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		name := username
		if name == "" {
			var err error
			if name, err = p.ask("Username: "); err != nil {
				return nil, err
			}
		}
		password, err := p.secret("Password: ")
		if err != nil {
			return nil, err
		}

		u, err := a.users.Authenticate(name, password)
		if errors.Is(err, util.ErrInvalidCredentials) {
			util.ErrorLog("Invalid username or password")
			a.events.LogSession(report.EventLogin, "", "failed attempt for "+name)
			continue
		}
		if err != nil {
			return nil, err
		}

		if users.NeedsRehash(u) {
			if err := a.users.Rehash(u.UserID, password); err != nil {
				util.WarnLog("Could not upgrade password hash: %v", err)
			} else {
				util.DebugLog("Upgraded password hash for %s", u.Username)
			}
		}
		return u, nil
	}
	return nil, fmt.Errorf("too many failed attempts: %w", util.ErrInvalidCredentials)
}
