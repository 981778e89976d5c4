package aggregator

import (
	"context"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// httpBackend wraps a streamable HTTP tool protocol client.
type httpBackend struct {
	name   string
	client *mcpclient.Client
}

// dialStreamableHTTP connects and initializes a streamable HTTP backend.
func dialStreamableHTTP(ctx context.Context, serverName, url string) (backendClient, error) {
	c, err := mcpclient.NewStreamableHttpClient(url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start %s: %w", url, err)
	}

	initReq := mcptypes.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcptypes.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcptypes.Implementation{
		Name:    "codon-kg-aggregator",
		Version: "1.0.0",
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize %s: %w", url, err)
	}
	return &httpBackend{name: serverName, client: c}, nil
}

func (b *httpBackend) ListTools(ctx context.Context) ([]ToolInfo, error) {
	res, err := b.client.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	tools := make([]ToolInfo, 0, len(res.Tools))
	for _, t := range res.Tools {
		tools = append(tools, ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			Server:      b.name,
		})
	}
	return tools, nil
}

func (b *httpBackend) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	req := mcptypes.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := b.client.CallTool(ctx, req)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, content := range res.Content {
		if text, ok := mcptypes.AsTextContent(content); ok {
			parts = append(parts, text.Text)
		}
	}
	payload := strings.Join(parts, "\n")
	if res.IsError {
		return "", fmt.Errorf("tool %s failed on %s: %s", name, b.name, payload)
	}
	return payload, nil
}

func (b *httpBackend) Close() error {
	return b.client.Close()
}
