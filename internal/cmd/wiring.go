package cmd

import (
	"context"
	"log/slog"

	"github.com/cgordon-dev/codon-kg/internal/audit"
	"github.com/cgordon-dev/codon-kg/internal/config"
	"github.com/cgordon-dev/codon-kg/internal/graph"
)

// stack holds the wired service components a command needs.
type stack struct {
	cfg    *config.Config
	logger *slog.Logger
	engine *graph.Engine
	trail  *audit.Trail
}

// openStack connects the engine and, when enabled, the audit trail.
func openStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stack, error) {
	opts := []graph.Option{graph.WithLogger(logger)}

	var trail *audit.Trail
	if cfg.Audit.Enabled {
		t, err := audit.Open(cfg.Audit.Dir, logger)
		if err != nil {
			return nil, err
		}
		trail = t
		opts = append(opts, graph.WithSink(trail))
	}

	engine, err := graph.Open(ctx, engineConfig(cfg), opts...)
	if err != nil {
		if trail != nil {
			trail.Close()
		}
		return nil, err
	}

	return &stack{cfg: cfg, logger: logger, engine: engine, trail: trail}, nil
}

func (s *stack) close(ctx context.Context) {
	if err := s.engine.Close(ctx); err != nil {
		s.logger.Warn("engine close failed", "error", err)
	}
	if s.trail != nil {
		if err := s.trail.Close(); err != nil {
			s.logger.Warn("audit trail close failed", "error", err)
		}
	}
}

func engineConfig(cfg *config.Config) graph.Config {
	return graph.Config{
		URI:                   cfg.Neo4j.URI,
		Username:              cfg.Neo4j.Username,
		Password:              cfg.Neo4j.Password,
		Database:              cfg.Neo4j.Database,
		MaxConnectionPoolSize: cfg.Neo4j.MaxConnectionPoolSize,
		MaxConnectionLifetime: cfg.Neo4j.MaxConnectionLifetimeDuration(),
		ConnectionTimeout:     cfg.Neo4j.ConnectionTimeoutDuration(),
		MaxRetryAttempts:      cfg.Neo4j.MaxRetryAttempts,
	}
}
