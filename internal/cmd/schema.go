package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cgordon-dev/codon-kg/internal/logging"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the database schema snapshot",
	Long: `Introspect the configured database and print its schema as JSON:
labels, relationship types, property keys, constraints, and indexes.

On a partial introspection failure the surviving sections are still
printed, the failed sections are named in the snapshot, and the command
exits non-zero.`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging)
	ctx := cmd.Context()

	st, err := openStack(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer st.close(context.Background())

	snapshot, schemaErr := st.engine.Schema(ctx)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return err
	}
	return schemaErr
}
