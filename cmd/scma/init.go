package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franz/scma/internal/report"
	"github.com/franz/scma/internal/store"
	"github.com/franz/scma/internal/util"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the archive tables",
	Long: `Create every table of the archive if it does not exist yet.

With the csv backend each table is a file in the data directory with a
header row. With the sqlite backend the schema is migrated to the latest
version. Existing data is never touched.

Use --admin to create the first administrator account.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().String("admin", "", "create an administrator with this username")
	initCmd.Flags().String("email", "", "email address of the administrator")
}

func runInit(cmd *cobra.Command, args []string) error {
	a, err := openAppFromFlags()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Backend == store.DriverSQLite {
		util.SuccessLog("Archive ready: %s", a.cfg.SQLitePath)
	} else {
		util.SuccessLog("Archive ready: %s", a.cfg.DataDir)
	}

	username, _ := cmd.Flags().GetString("admin")
	if username == "" {
		return nil
	}
	email, _ := cmd.Flags().GetString("email")

	p := newPrompter(cmd)
	password, err := p.secret("Password for " + username + ": ")
	if err != nil {
		return err
	}
	u, err := a.users.Register(username, email, password, string(store.RoleAdmin))
	if err != nil {
		return fmt.Errorf("failed to create administrator: %w", err)
	}
	a.events.LogSession(report.EventRegister, u.UserID, "init")
	util.SuccessLog("Administrator %s created (id %s)", u.Username, u.UserID)
	return nil
}
