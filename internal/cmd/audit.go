package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cgordon-dev/codon-kg/internal/audit"
	"github.com/cgordon-dev/codon-kg/internal/logging"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent tool invocations from the audit trail",
	Args:  cobra.NoArgs,
	RunE:  runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "Maximum number of entries to show")
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Audit.Enabled {
		return fmt.Errorf("audit trail is disabled in configuration")
	}

	trail, err := audit.Open(cfg.Audit.Dir, logging.New(cfg.Logging))
	if err != nil {
		return fmt.Errorf("open audit trail: %w", err)
	}
	defer trail.Close()

	entries, err := trail.Recent(auditLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no recorded invocations")
		return nil
	}

	for _, e := range entries {
		line := fmt.Sprintf("%s  %-16s %-8s attempts=%d", e.StartedAt, e.Action, e.Status, e.Attempts)
		if e.Error != "" {
			line += "  error=" + e.Error
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
