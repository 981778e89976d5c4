// Package aggregator federates tool calls across several tool protocol
// servers. Backends are named in configuration; discovery is lazy and
// memoized. When no backend is reachable the aggregator degrades to the
// in-process tool set bound directly to the execution engine, so a broken
// sidecar never takes the primary database offline.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cgordon-dev/codon-kg/internal/config"
	"github.com/cgordon-dev/codon-kg/internal/graph"
	"github.com/cgordon-dev/codon-kg/internal/mcp"
)

// DefaultDiscoveryTimeout bounds how long a Tools call waits for the
// discovery worker before giving up on remote backends.
const DefaultDiscoveryTimeout = 10 * time.Second

// ToolInfo describes one discovered tool and the backend that owns it.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Server      string `json:"server"`
}

// backendClient is the slice of the tool protocol client the aggregator
// needs. The concrete implementation lives in client.go; tests substitute
// their own.
type backendClient interface {
	ListTools(ctx context.Context) ([]ToolInfo, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// Dialer connects to one backend by URL.
type Dialer func(ctx context.Context, serverName, url string) (backendClient, error)

// Manager aggregates tools from the configured backends plus the local
// in-process server.
type Manager struct {
	backends map[string]config.BackendConfig
	local    *mcp.Server
	dial     Dialer
	logger   *slog.Logger
	timeout  time.Duration

	mu         sync.Mutex
	discovered bool
	tools      []ToolInfo
	routes     map[string]backendClient
	clients    []backendClient
	closed     bool
}

// Option adjusts a Manager.
type Option func(*Manager)

// WithDialer replaces the backend dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dial = d }
}

// WithDiscoveryTimeout bounds the wait for backend discovery.
func WithDiscoveryTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// New creates a Manager over the named backends. local is the in-process
// server used both for locally served tools and as the fallback when
// every backend is unreachable.
func New(backends map[string]config.BackendConfig, local *mcp.Server, opts ...Option) *Manager {
	m := &Manager{
		backends: backends,
		local:    local,
		dial:     dialStreamableHTTP,
		logger:   slog.Default(),
		timeout:  DefaultDiscoveryTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Tools lists every known tool whose name starts with namespace. An empty
// namespace lists everything. The first call discovers all backends; the
// result is cached until Close.
func (m *Manager) Tools(ctx context.Context, namespace string) ([]ToolInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, graph.NewError(graph.KindEngineClosed, "aggregator is closed")
	}
	if !m.discovered {
		m.discoverLocked(ctx)
	}

	if namespace == "" {
		return append([]ToolInfo(nil), m.tools...), nil
	}
	var out []ToolInfo
	for _, t := range m.tools {
		if strings.HasPrefix(t.Name, namespace) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Call routes a tool invocation to the backend that owns the tool, or to
// the in-process server for local and fallback tools.
func (m *Manager) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", graph.NewError(graph.KindEngineClosed, "aggregator is closed")
	}
	if !m.discovered {
		m.discoverLocked(ctx)
	}
	client := m.routes[name]
	m.mu.Unlock()

	if client != nil {
		payload, err := client.CallTool(ctx, name, args)
		if err == nil {
			return payload, nil
		}
		m.logger.Warn("backend call failed, falling back to local server",
			"tool", name, "error", err)
	}
	if m.local == nil {
		return "", graph.NewError(graph.KindUnknownTool,
			fmt.Sprintf("no backend serves tool %s and no local server is bound", name))
	}
	return m.local.CallTool(ctx, name, args)
}

// Invalidate drops the discovery cache. The next Tools or Call re-discovers.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// Close disconnects every backend and invalidates the cache.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	m.closed = true
	return nil
}

func (m *Manager) resetLocked() {
	for _, c := range m.clients {
		if err := c.Close(); err != nil {
			m.logger.Warn("backend close failed", "error", err)
		}
	}
	m.clients = nil
	m.routes = nil
	m.tools = nil
	m.discovered = false
}

// discoverLocked connects to every backend and collects its tool list.
// The network work runs on a worker goroutine so the caller's wait is
// bounded by the discovery timeout even when a backend hangs mid-dial.
// Failures degrade to the local tool set and are logged, never returned.
func (m *Manager) discoverLocked(ctx context.Context) {
	type discovery struct {
		tools   []ToolInfo
		routes  map[string]backendClient
		clients []backendClient
	}

	dctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan discovery, 1)
	go func() {
		d := discovery{routes: make(map[string]backendClient)}
		names := make([]string, 0, len(m.backends))
		for name := range m.backends {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			backend := m.backends[name]
			client, err := m.dial(dctx, name, backend.URL)
			if err != nil {
				m.logger.Warn("backend unreachable",
					"server", name, "url", backend.URL, "error", err)
				continue
			}
			tools, err := client.ListTools(dctx)
			if err != nil {
				m.logger.Warn("backend tool discovery failed",
					"server", name, "url", backend.URL, "error", err)
				if cerr := client.Close(); cerr != nil {
					m.logger.Warn("backend close failed", "server", name, "error", cerr)
				}
				continue
			}
			d.clients = append(d.clients, client)
			for _, t := range tools {
				t.Server = name
				if _, taken := d.routes[t.Name]; taken {
					m.logger.Warn("duplicate tool name, keeping first backend",
						"tool", t.Name, "server", name)
					continue
				}
				d.routes[t.Name] = client
				d.tools = append(d.tools, t)
			}
		}
		done <- d
	}()

	var d discovery
	select {
	case d = <-done:
	case <-dctx.Done():
		m.logger.Warn("backend discovery timed out, using local tools only",
			"timeout", m.timeout)
		// The worker still owns any clients it dialed; close them when it
		// finishes so a slow backend does not leak connections.
		go func() {
			late := <-done
			for _, c := range late.clients {
				if err := c.Close(); err != nil {
					m.logger.Warn("backend close failed", "error", err)
				}
			}
		}()
		d.routes = make(map[string]backendClient)
	}

	m.clients = d.clients
	m.routes = d.routes
	m.tools = d.tools

	// Local tools fill the gaps: anything the backends did not claim is
	// served in-process, which is also the full set when discovery found
	// nothing at all. Without a bound local server there is no fallback
	// to advertise.
	if m.local != nil {
		for _, schema := range mcp.ToolSchemas() {
			if _, taken := m.routes[schema.Name]; taken {
				continue
			}
			m.tools = append(m.tools, ToolInfo{
				Name:        schema.Name,
				Description: schema.Description,
				Server:      "local",
			})
		}
	}
	sort.Slice(m.tools, func(i, j int) bool { return m.tools[i].Name < m.tools[j].Name })

	if len(d.routes) == 0 && len(m.backends) > 0 {
		m.logger.Warn("no backend reachable, degraded to in-process tools",
			"backends", len(m.backends))
	}
	m.discovered = true
}

// String names the manager for diagnostics.
func (m *Manager) String() string {
	return fmt.Sprintf("aggregator(%d backends)", len(m.backends))
}
