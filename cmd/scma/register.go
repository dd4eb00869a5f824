package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/franz/scma/internal/report"
	"github.com/franz/scma/internal/util"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a user account",
	Long: `Create a user account. Missing details are asked for interactively.

Roles:
- viewer: view artifacts
- creator: view, add and modify their own artifacts
- admin: view, add and delete any artifact, manage users`,
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().String("username", "", "account name")
	registerCmd.Flags().String("email", "", "email address")
	registerCmd.Flags().String("role", "", "admin, creator or viewer")
}

func runRegister(cmd *cobra.Command, args []string) error {
	a, err := openAppFromFlags()
	if err != nil {
		return err
	}
	defer a.Close()

	p := newPrompter(cmd)
	username, _ := cmd.Flags().GetString("username")
	email, _ := cmd.Flags().GetString("email")
	role, _ := cmd.Flags().GetString("role")

	if username == "" {
		if username, err = p.ask("Username: "); err != nil {
			return err
		}
	}
	if email == "" && !cmd.Flags().Changed("email") {
		if email, err = p.ask("Email: "); err != nil {
			return err
		}
	}
	password, err := p.secret("Password: ")
	if err != nil {
		return err
	}

	for {
		if role == "" {
			if role, err = p.askDefault("Role (admin/creator/viewer)", "viewer"); err != nil {
				return err
			}
		}
		u, err := a.users.Register(username, email, password, role)
		if errors.Is(err, util.ErrInvalidRole) {
			util.ErrorLog("Invalid role: %s", role)
			role = ""
			continue
		}
		if err != nil {
			return err
		}
		a.events.LogSession(report.EventRegister, u.UserID, string(u.Role))
		util.SuccessLog("Registered %s as %s (id %s)", u.Username, u.Role, u.UserID)
		return nil
	}
}
