// Package cmd contains all CLI commands for ckg.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cgordon-dev/codon-kg/internal/config"
)

var (
	// Version is the current version of ckg.
	Version = "1.0.0"

	// Global flags
	configPath string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ckg",
	Short: "Knowledge-graph tool server for Neo4j",
	Long: `ckg serves a Neo4j knowledge graph as a set of structured tools.

It exposes parameterized Cypher execution, schema introspection, node
search, and shortest-path queries over the tool protocol, with a safety
gate that blocks destructive statements and an audit trail of every
invocation. Additional tool servers can be aggregated behind one
endpoint, with graceful fallback to the in-process tools when a backend
is unreachable.

Configuration comes from config.yaml in the working directory (override
with --config) plus NEO4J_URI / NEO4J_USERNAME / NEO4J_PASSWORD
environment variables, which take precedence over the file.

Examples:
  ckg serve                                   # stdio transport
  ckg serve --transport http --addr :8001     # streamable HTTP
  ckg tools                                   # list available tools
  ckg call neo4j_search_nodes '{"label":"Person","properties":{"name":"Ada"}}'
  ckg schema                                  # schema snapshot
  ckg health                                  # connectivity check

See 'ckg <command> --help' for command-specific options.`,
	Version: Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	applyFlagEnvDefaults()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// applyFlagEnvDefaults lets CKG_CONFIG and friends set global flag
// defaults. Explicit command-line flags still win.
func applyFlagEnvDefaults() {
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		env := "CKG_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if v := os.Getenv(env); v != "" {
			f.DefValue = v
			if err := f.Value.Set(v); err != nil {
				fmt.Fprintf(os.Stderr, "invalid %s: %v\n", env, err)
			}
		}
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug|info|warn|error)")
}

// loadConfig reads the configuration honoring the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}
