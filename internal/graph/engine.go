// Package graph is the execution engine for the knowledge-graph database.
// It owns the connection pool for one connection profile, routes queries
// through read or write transactions, enforces the safety gate before any
// transaction opens, retries transient failures with bounded exponential
// backoff, and normalizes results and errors for callers.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/cgordon-dev/codon-kg/internal/cypher"
	"github.com/cgordon-dev/codon-kg/internal/safety"
)

// Config is the connection profile for one engine. One live connection pool
// exists per profile, shared across all queries against it.
type Config struct {
	URI                   string
	Username              string
	Password              string
	Database              string
	MaxConnectionPoolSize int
	MaxConnectionLifetime time.Duration
	ConnectionTimeout     time.Duration
	MaxRetryAttempts      int
	RetryMinWait          time.Duration
	RetryMaxWait          time.Duration
}

func (c Config) withDefaults() Config {
	if c.Database == "" {
		c.Database = "neo4j"
	}
	if c.MaxConnectionPoolSize <= 0 {
		c.MaxConnectionPoolSize = 50
	}
	if c.MaxConnectionLifetime <= 0 {
		c.MaxConnectionLifetime = time.Hour
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = 30 * time.Second
	}
	if c.MaxRetryAttempts <= 0 {
		c.MaxRetryAttempts = 3
	}
	if c.RetryMinWait <= 0 {
		c.RetryMinWait = 500 * time.Millisecond
	}
	if c.RetryMaxWait <= 0 {
		c.RetryMaxWait = 5 * time.Second
	}
	return c
}

// Sink receives audit events around query execution: one Begin per call,
// one Attempt per executor attempt, one End per call. Implementations must
// be safe for concurrent use and hold no global state.
type Sink interface {
	Begin(action, queryText string) string
	Attempt(id string, attempt int, err error)
	End(id, status string, err error)
}

// NopSink discards all audit events.
type NopSink struct{}

func (NopSink) Begin(string, string) string { return "" }
func (NopSink) Attempt(string, int, error)  {}
func (NopSink) End(string, string, error)   {}

// Engine executes queries against one database profile.
type Engine struct {
	cfg    Config
	runner Runner
	gate   *safety.Gate
	sink   Sink
	logger *slog.Logger
	closed atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink installs an audit sink. The default sink discards events.
func WithSink(sink Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithLogger installs a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine wraps a Runner with the gate, retry policy, and audit hooks.
// Open is the production entry point; NewEngine exists for composition
// with alternative runners.
func NewEngine(runner Runner, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg.withDefaults(),
		runner: runner,
		gate:   safety.NewGate(),
		sink:   NopSink{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open connects to the database described by cfg, retrying with exponential
// backoff, and returns a ready engine. The caller owns the engine and must
// Close it to release the pool.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.withDefaults()

	auth := neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	driverConfig := func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
		c.MaxConnectionLifetime = cfg.MaxConnectionLifetime
		c.ConnectionAcquisitionTimeout = cfg.ConnectionTimeout
		// Retry is handled by the engine, not the driver.
		c.MaxTransactionRetryTime = 0
	}

	var driver neo4j.DriverWithContext
	var lastErr error
	const maxConnectRetries = 5
	delay := 100 * time.Millisecond

	for attempt := 0; attempt < maxConnectRetries; attempt++ {
		var err error
		driver, err = neo4j.NewDriverWithContext(cfg.URI, auth, driverConfig)
		if err == nil {
			if err = driver.VerifyConnectivity(ctx); err == nil {
				runner := &neo4jRunner{driver: driver, database: cfg.Database}
				return NewEngine(runner, cfg, opts...), nil
			}
			_ = driver.Close(ctx)
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, fmt.Errorf("connect to %s: %w", cfg.URI, ctx.Err())
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to %s: %w", cfg.URI, ctx.Err())
		}
		if delay *= 2; delay > cfg.ConnectionTimeout {
			delay = cfg.ConnectionTimeout
		}
	}

	return nil, fmt.Errorf("connect to %s after %d attempts: %w", cfg.URI, maxConnectRetries, lastErr)
}

// Database returns the configured database name.
func (e *Engine) Database() string {
	return e.cfg.Database
}

// Close releases the connection pool. Executing after Close is a terminal
// ENGINE_CLOSED error.
func (e *Engine) Close(ctx context.Context) error {
	if e.closed.Swap(true) {
		return nil
	}
	return e.runner.Close(ctx)
}

// Execute runs a query through the full chain: audit-begin, safety gate,
// retrying executor, audit-end. Transient failures are retried up to the
// attempt budget; syntax errors and policy blocks never retry. A blocked
// query never opens a transaction.
func (e *Engine) Execute(ctx context.Context, q cypher.Query) (*Result, error) {
	if e.closed.Load() {
		return nil, QueryError(KindEngineClosed, "engine is closed", q.Text)
	}

	id := e.sink.Begin("execute", q.Text)

	if pattern := e.gate.BlockedPattern(q.Text); pattern != "" {
		err := QueryError(KindPolicyBlocked,
			fmt.Sprintf("query blocked by security policy (matched %q)", pattern), q.Text)
		e.logger.Warn("query blocked", "pattern", pattern)
		e.sink.End(id, "blocked", err)
		return nil, err
	}
	if pattern, ok := e.gate.CheckMode(q); !ok {
		err := QueryError(KindPolicyBlocked,
			fmt.Sprintf("query declared READ but contains write syntax %q", pattern), q.Text)
		e.logger.Warn("query blocked", "pattern", pattern, "reason", "mode mismatch")
		e.sink.End(id, "blocked", err)
		return nil, err
	}

	result, err := e.executeWithRetry(ctx, id, q)
	if err != nil {
		e.sink.End(id, "error", err)
		return nil, err
	}
	e.sink.End(id, "success", nil)
	return result, nil
}

func (e *Engine) executeWithRetry(ctx context.Context, id string, q cypher.Query) (*Result, error) {
	wait := e.cfg.RetryMinWait
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxRetryAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, QueryError(KindTimeout, ctx.Err().Error(), q.Text)
		}

		columns, records, err := e.runner.Run(ctx, q)
		e.sink.Attempt(id, attempt, err)
		if err == nil {
			return &Result{
				Status:      "success",
				Columns:     columns,
				Records:     records,
				RecordCount: len(records),
			}, nil
		}

		kind := classify(err)
		if kind != KindServiceUnavailable {
			return nil, QueryError(kind, err.Error(), q.Text)
		}

		lastErr = err
		e.logger.Warn("transient query failure",
			"attempt", attempt, "max_attempts", e.cfg.MaxRetryAttempts, "error", err)

		if attempt < e.cfg.MaxRetryAttempts {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, QueryError(KindTimeout, ctx.Err().Error(), q.Text)
			}
			if wait *= 2; wait > e.cfg.RetryMaxWait {
				wait = e.cfg.RetryMaxWait
			}
		}
	}

	return nil, QueryError(KindServiceUnavailable,
		fmt.Sprintf("service unavailable after %d attempts: %v", e.cfg.MaxRetryAttempts, lastErr), q.Text)
}

// HealthStatus reports the outcome of a connection check.
type HealthStatus struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	LatencyMS int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// Health runs a minimal round-trip query outside the retry policy.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{Database: e.cfg.Database, CheckedAt: time.Now().UTC()}

	if e.closed.Load() {
		status.Status = "unhealthy"
		status.Error = "engine is closed"
		return status
	}

	start := time.Now()
	_, _, err := e.runner.Run(ctx, cypher.Query{
		Text: "RETURN 1 AS ok", Parameters: map[string]any{}, Mode: cypher.ModeRead,
	})
	status.LatencyMS = time.Since(start).Milliseconds()

	if err != nil {
		status.Status = "unhealthy"
		status.Error = err.Error()
		return status
	}
	status.Status = "healthy"
	return status
}
