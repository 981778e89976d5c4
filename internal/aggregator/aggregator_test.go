package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgordon-dev/codon-kg/internal/config"
	"github.com/cgordon-dev/codon-kg/internal/cypher"
	"github.com/cgordon-dev/codon-kg/internal/graph"
	"github.com/cgordon-dev/codon-kg/internal/mcp"
)

type fakeBackend struct {
	tools     []ToolInfo
	callErr   error
	lastTool  string
	callCount int

	mu     sync.Mutex
	closed bool
}

func (f *fakeBackend) ListTools(ctx context.Context) ([]ToolInfo, error) {
	return f.tools, nil
}

func (f *fakeBackend) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	f.callCount++
	f.lastTool = name
	if f.callErr != nil {
		return "", f.callErr
	}
	return fmt.Sprintf(`{"status":"success","served_by":"fake","tool":%q}`, name), nil
}

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeBackend) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type echoRunner struct{}

func (echoRunner) Run(ctx context.Context, q cypher.Query) ([]string, []graph.Record, error) {
	return []string{"n"}, []graph.Record{}, nil
}

func (echoRunner) Close(ctx context.Context) error { return nil }

func localServer() *mcp.Server {
	engine := graph.NewEngine(echoRunner{}, graph.Config{
		MaxRetryAttempts: 1,
		RetryMinWait:     time.Millisecond,
		RetryMaxWait:     time.Millisecond,
	})
	return mcp.New(engine, nil)
}

func backends(names ...string) map[string]config.BackendConfig {
	out := make(map[string]config.BackendConfig, len(names))
	for _, n := range names {
		out[n] = config.BackendConfig{URL: "http://127.0.0.1:1/" + n}
	}
	return out
}

func TestToolsDiscoversOnce(t *testing.T) {
	dials := 0
	fake := &fakeBackend{tools: []ToolInfo{{Name: "memory_store", Description: "store a fact"}}}
	m := New(backends("memory"), localServer(),
		WithDialer(func(ctx context.Context, name, url string) (backendClient, error) {
			dials++
			return fake, nil
		}))
	defer m.Close()

	first, err := m.Tools(context.Background(), "")
	require.NoError(t, err)
	second, err := m.Tools(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 1, dials, "discovery is memoized")
	assert.Equal(t, first, second)
}

func TestToolsNamespaceFilter(t *testing.T) {
	fake := &fakeBackend{tools: []ToolInfo{
		{Name: "memory_store"},
		{Name: "memory_recall"},
	}}
	m := New(backends("memory"), localServer(),
		WithDialer(func(ctx context.Context, name, url string) (backendClient, error) {
			return fake, nil
		}))
	defer m.Close()

	memory, err := m.Tools(context.Background(), "memory")
	require.NoError(t, err)
	assert.Len(t, memory, 2)

	local, err := m.Tools(context.Background(), "neo4j")
	require.NoError(t, err)
	assert.Len(t, local, 7, "local tools keep their namespace")
	for _, tool := range local {
		assert.Equal(t, "local", tool.Server)
	}
}

func TestToolsIncludesLocalAndRemote(t *testing.T) {
	fake := &fakeBackend{tools: []ToolInfo{{Name: "memory_store"}}}
	m := New(backends("memory"), localServer(),
		WithDialer(func(ctx context.Context, name, url string) (backendClient, error) {
			return fake, nil
		}))
	defer m.Close()

	all, err := m.Tools(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 8)

	servers := make(map[string]string)
	for _, tool := range all {
		servers[tool.Name] = tool.Server
	}
	assert.Equal(t, "memory", servers["memory_store"])
	assert.Equal(t, "local", servers["neo4j_check_connection"])
}

func TestCallRoutesToOwningBackend(t *testing.T) {
	fake := &fakeBackend{tools: []ToolInfo{{Name: "memory_store"}}}
	m := New(backends("memory"), localServer(),
		WithDialer(func(ctx context.Context, name, url string) (backendClient, error) {
			return fake, nil
		}))
	defer m.Close()

	payload, err := m.Call(context.Background(), "memory_store", map[string]any{"fact": "x"})
	require.NoError(t, err)
	assert.Contains(t, payload, `"served_by":"fake"`)
	assert.Equal(t, "memory_store", fake.lastTool)
}

func TestCallLocalToolBypassesBackends(t *testing.T) {
	fake := &fakeBackend{tools: []ToolInfo{{Name: "memory_store"}}}
	m := New(backends("memory"), localServer(),
		WithDialer(func(ctx context.Context, name, url string) (backendClient, error) {
			return fake, nil
		}))
	defer m.Close()

	payload, err := m.Call(context.Background(), "neo4j_check_connection", map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, payload, "healthy")
	assert.Equal(t, 0, fake.callCount)
}

func TestUnreachableBackendFallsBackToLocal(t *testing.T) {
	m := New(backends("memory"), localServer(),
		WithDialer(func(ctx context.Context, name, url string) (backendClient, error) {
			return nil, errors.New("connection refused")
		}))
	defer m.Close()

	all, err := m.Tools(context.Background(), "")
	require.NoError(t, err, "unreachable backend is degradation, not failure")
	assert.Len(t, all, 7)
	for _, tool := range all {
		assert.Equal(t, "local", tool.Server)
	}

	payload, err := m.Call(context.Background(), "neo4j_check_connection", map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, payload, "healthy")
}

func TestBackendCallFailureFallsBackToLocal(t *testing.T) {
	fake := &fakeBackend{
		tools:   []ToolInfo{{Name: "neo4j_check_connection", Description: "remote clone"}},
		callErr: errors.New("backend went away"),
	}
	m := New(backends("clone"), localServer(),
		WithDialer(func(ctx context.Context, name, url string) (backendClient, error) {
			return fake, nil
		}))
	defer m.Close()

	payload, err := m.Call(context.Background(), "neo4j_check_connection", map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, payload, "healthy", "local server answers when the backend dies mid-call")
	assert.Equal(t, 1, fake.callCount)
}

func TestDiscoveryTimeoutDegrades(t *testing.T) {
	m := New(backends("slow"), localServer(),
		WithDiscoveryTimeout(20*time.Millisecond),
		WithDialer(func(ctx context.Context, name, url string) (backendClient, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}))
	defer m.Close()

	start := time.Now()
	all, err := m.Tools(context.Background(), "")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "wait is bounded")
	assert.Len(t, all, 7)
}

func TestClientDialedAfterTimeoutIsClosed(t *testing.T) {
	fake := &fakeBackend{tools: []ToolInfo{{Name: "memory_store"}}}
	m := New(backends("slow"), localServer(),
		WithDiscoveryTimeout(20*time.Millisecond),
		WithDialer(func(ctx context.Context, name, url string) (backendClient, error) {
			time.Sleep(100 * time.Millisecond)
			return fake, nil
		}))
	defer m.Close()

	all, err := m.Tools(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 7, "late backend is not part of the degraded catalog")

	assert.Eventually(t, fake.Closed, time.Second, 10*time.Millisecond,
		"client dialed after the discovery timeout must be disconnected")
}

func TestInvalidateForcesRediscovery(t *testing.T) {
	dials := 0
	fake := &fakeBackend{tools: []ToolInfo{{Name: "memory_store"}}}
	m := New(backends("memory"), localServer(),
		WithDialer(func(ctx context.Context, name, url string) (backendClient, error) {
			dials++
			return fake, nil
		}))
	defer m.Close()

	_, err := m.Tools(context.Background(), "")
	require.NoError(t, err)
	m.Invalidate()
	assert.True(t, fake.Closed(), "invalidation disconnects backends")

	_, err = m.Tools(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, dials)
}

func TestNoLocalServerListsOnlyBackendTools(t *testing.T) {
	fake := &fakeBackend{tools: []ToolInfo{{Name: "memory_store"}}}
	m := New(backends("memory"), nil,
		WithDialer(func(ctx context.Context, name, url string) (backendClient, error) {
			return fake, nil
		}))
	defer m.Close()

	all, err := m.Tools(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 1, "only backend tools are advertised without a local server")
	assert.Equal(t, "memory_store", all[0].Name)

	_, err = m.Call(context.Background(), "neo4j_check_connection", nil)
	require.Error(t, err, "a tool the listing does not advertise is not callable")
}

func TestClosedManagerRefuses(t *testing.T) {
	m := New(nil, localServer())
	require.NoError(t, m.Close())

	_, err := m.Tools(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, graph.KindEngineClosed, graph.KindOf(err))

	_, err = m.Call(context.Background(), "neo4j_check_connection", nil)
	require.Error(t, err)
}

func TestDuplicateToolKeepsFirstBackend(t *testing.T) {
	first := &fakeBackend{tools: []ToolInfo{{Name: "memory_store"}}}
	second := &fakeBackend{tools: []ToolInfo{{Name: "memory_store"}}}
	m := New(backends("alpha", "beta"), localServer(),
		WithDialer(func(ctx context.Context, name, url string) (backendClient, error) {
			if name == "alpha" {
				return first, nil
			}
			return second, nil
		}))
	defer m.Close()

	_, err := m.Call(context.Background(), "memory_store", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, first.callCount)
	assert.Equal(t, 0, second.callCount)
}
