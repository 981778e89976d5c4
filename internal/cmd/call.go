package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cgordon-dev/codon-kg/internal/aggregator"
	"github.com/cgordon-dev/codon-kg/internal/logging"
	"github.com/cgordon-dev/codon-kg/internal/mcp"
)

var callCmd = &cobra.Command{
	Use:   "call <tool> [json-args]",
	Short: "Invoke a single tool with JSON arguments",
	Long: `Call one tool by name and print its JSON result.

The call is routed through the aggregator: tools owned by a configured
backend go to that backend, everything else runs in-process against the
configured database. Arguments are a single JSON object; omit them for
tools that take none.

Examples:
  ckg call neo4j_check_connection
  ckg call neo4j_get_schema
  ckg call neo4j_search_nodes '{"label":"Gene","properties":{"symbol":"TP53"}}'
  ckg call neo4j_execute_cypher '{"query":"MATCH (n) RETURN count(n) AS total"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	toolName := args[0]
	toolArgs := map[string]any{}
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
			return fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}

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

	manager := aggregator.New(cfg.Backends, mcp.New(st.engine, logger),
		aggregator.WithLogger(logger))
	defer manager.Close()

	payload, err := manager.Call(ctx, toolName, toolArgs)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), payload)
	return nil
}
