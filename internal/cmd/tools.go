package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cgordon-dev/codon-kg/internal/aggregator"
	"github.com/cgordon-dev/codon-kg/internal/logging"
	"github.com/cgordon-dev/codon-kg/internal/mcp"
)

var (
	toolsNamespace string
	toolsJSON      bool
	toolsRemote    bool
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List available tools and their parameters",
	Long: `List the tools this server exposes.

By default only the in-process tools are shown, without touching the
network. With --remote, configured backends are also discovered and
their tools included.

Examples:
  ckg tools
  ckg tools --json
  ckg tools --remote --namespace neo4j`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().StringVar(&toolsNamespace, "namespace", "", "Only list tools whose name starts with this prefix")
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "Output full schemas as JSON")
	toolsCmd.Flags().BoolVar(&toolsRemote, "remote", false, "Discover configured backends as well")
}

func runTools(cmd *cobra.Command, args []string) error {
	if toolsJSON && !toolsRemote {
		return printLocalSchemas(cmd)
	}
	if !toolsRemote {
		for _, schema := range mcp.ToolSchemas() {
			if !hasNamespace(schema.Name, toolsNamespace) {
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-32s %s\n", schema.Name, schema.Description)
		}
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging)

	manager := aggregator.New(cfg.Backends, nil, aggregator.WithLogger(logger))
	defer manager.Close()

	tools, err := manager.Tools(cmd.Context(), toolsNamespace)
	if err != nil {
		return err
	}
	if toolsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tools)
	}
	for _, tool := range tools {
		fmt.Fprintf(cmd.OutOrStdout(), "%-32s [%s] %s\n", tool.Name, tool.Server, tool.Description)
	}
	return nil
}

func printLocalSchemas(cmd *cobra.Command) error {
	schemas := mcp.ToolSchemas()
	filtered := schemas[:0:0]
	for _, schema := range schemas {
		if hasNamespace(schema.Name, toolsNamespace) {
			filtered = append(filtered, schema)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Name < filtered[j].Name })

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(filtered)
}

func hasNamespace(name, namespace string) bool {
	return namespace == "" || len(name) >= len(namespace) && name[:len(namespace)] == namespace
}
