package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/scma/internal/access"
	"github.com/franz/scma/internal/report"
	"github.com/franz/scma/internal/store"
	"github.com/franz/scma/internal/util"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the access journal (administrators only)",
	Long: `Show access journal entries, newest last, optionally for one artifact.

With --report a Markdown audit report is written as well. It includes
account and artifact counts, dependent rows whose artifact is gone,
journal totals per access type and the most accessed artifacts.

Requires an administrator login.`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().String("username", "", "administrator account (asked for when omitted)")
	auditCmd.Flags().String("artifact", "", "only entries for this artifact ID")
	auditCmd.Flags().IntP("limit", "n", 50, "show at most this many entries (0 = all)")
	auditCmd.Flags().String("report", "", "also write a Markdown report to this file or directory")
}

func runAudit(cmd *cobra.Command, args []string) error {
	a, err := openAppFromFlags()
	if err != nil {
		return err
	}
	defer a.Close()

	p := newPrompter(cmd)
	username, _ := cmd.Flags().GetString("username")
	if _, err := requireAdmin(a, p, username, "audit"); err != nil {
		return err
	}

	artifactID, _ := cmd.Flags().GetString("artifact")
	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := a.journal.Entries(artifactID)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	names := make(map[string]string)
	if all, err := a.users.List(); err == nil {
		for _, acct := range all {
			names[acct.UserID] = acct.Username
		}
	}

	p.printf("%-6s %-19s %-16s %-8s %s\n", "Log", "Time", "User", "Artifact", "Access")
	for _, e := range entries {
		user := names[e.UserID]
		if user == "" {
			user = e.UserID
		}
		p.printf("%-6s %-19s %-16s %-8s %s\n", e.LogID, e.Timestamp, truncate(user, 16), e.ArtifactID, e.AccessType)
	}
	util.InfoLog("%d entries", len(entries))

	out, _ := cmd.Flags().GetString("report")
	if out == "" {
		return nil
	}
	if filepath.Ext(out) != ".md" {
		out = filepath.Join(out, fmt.Sprintf("audit-%s.md", time.Now().Format("20060102-150405")))
	}
	audit, err := report.GenerateAuditReport(a.store, 20, 25)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	if err := report.WriteMarkdownReport(audit, out); err != nil {
		return err
	}
	util.SuccessLog("Report written to %s", out)
	return nil
}

// requireAdmin logs in and refuses accounts that may not manage users
func requireAdmin(a *app, p *prompter, username, action string) (*store.User, error) {
	u, err := authenticate(a, p, username)
	if err != nil {
		return nil, err
	}
	if !access.Allowed(u.Role, access.OpManageUsers) {
		a.events.LogDenied(u.UserID, action, "role "+string(u.Role))
		return nil, fmt.Errorf("%s requires an administrator: %w", action, util.ErrPermission)
	}
	return u, nil
}
