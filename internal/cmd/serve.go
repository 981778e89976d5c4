package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cgordon-dev/codon-kg/internal/logging"
	"github.com/cgordon-dev/codon-kg/internal/mcp"
)

var (
	serveTransport string
	serveAddr      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the knowledge-graph tools over stdio or HTTP",
	Long: `Start the tool protocol server.

The stdio transport serves a single client over stdin/stdout; all logging
goes to stderr. The http transport serves the streamable HTTP protocol on
the configured address and supports multiple concurrent clients.

Examples:
  ckg serve
  ckg serve --transport http --addr :8001`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "Transport: stdio or http (default from config)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address for the http transport (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveTransport != "" {
		cfg.Server.Transport = serveTransport
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger := logging.New(cfg.Logging)
	ctx := cmd.Context()

	st, err := openStack(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer st.close(context.Background())

	srv := mcp.New(st.engine, logger)

	switch cfg.Server.Transport {
	case "stdio":
		logger.Info("serving tools on stdio", "database", st.engine.Database())
		return srv.ServeStdio()
	case "http":
		logger.Info("serving tools over http",
			"addr", cfg.Server.Addr, "database", st.engine.Database())
		return srv.ServeHTTP(cfg.Server.Addr)
	default:
		return fmt.Errorf("unknown transport %q (want stdio or http)", cfg.Server.Transport)
	}
}
