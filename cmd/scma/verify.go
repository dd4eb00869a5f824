package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/franz/scma/internal/catalog"
	"github.com/franz/scma/internal/util"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that every artifact still decrypts (administrators only)",
	Long: `Decrypt every stored artifact in memory and compare its checksum.

Reports artifacts whose fields no longer decrypt, whose title or type no
longer match the stored checksum, or which lack a lyrics, score or
recording row. Nothing is written and nothing is journaled.

Exits non-zero when any artifact fails.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("username", "", "administrator account (asked for when omitted)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := openAppFromFlags()
	if err != nil {
		return err
	}
	defer a.Close()

	p := newPrompter(cmd)
	username, _ := cmd.Flags().GetString("username")
	if _, err := requireAdmin(a, p, username, "verify"); err != nil {
		return err
	}

	checks, err := a.catalog.Verify(newVerifyProgress())
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}

	failed := printChecks(p, checks)
	if failed > 0 {
		a.events.LogError("verify", fmt.Errorf("%d of %d artifacts failed", failed, len(checks)))
		return fmt.Errorf("%d of %d artifacts failed verification: %w", failed, len(checks), util.ErrCorrupt)
	}
	util.SuccessLog("All %d artifacts verified", len(checks))
	return nil
}

// newVerifyProgress returns nil when stdout is not a terminal
func newVerifyProgress() func(done, total int) {
	if !util.IsTerminal(os.Stdout.Fd()) || util.IsQuiet() {
		return nil
	}

	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Verifying"),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionClearOnFinish(),
			)
		}
		bar.Set(done)
		if done == total {
			bar.Finish()
		}
	}
}

// printChecks lists failing artifacts and returns how many failed
func printChecks(p *prompter, checks []catalog.Check) int {
	failed := 0
	for _, c := range checks {
		var problems []string
		if len(c.Failures) > 0 {
			problems = append(problems, "undecryptable: "+strings.Join(c.Failures, ", "))
		} else if !c.ChecksumOK {
			problems = append(problems, "checksum mismatch")
		}
		if len(c.Missing) > 0 {
			util.WarnLog("Artifact %s has no row in %s", c.ArtifactID, strings.Join(c.Missing, ", "))
		}
		if len(problems) == 0 {
			continue
		}
		failed++
		p.printf("%-8s owner %-6s %s\n", c.ArtifactID, c.OwnerID, strings.Join(problems, "; "))
	}
	return failed
}
