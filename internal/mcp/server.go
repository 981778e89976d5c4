// Package mcp provides the MCP (Model Context Protocol) server exposing the
// knowledge-graph tools. AI agents discover the tool catalog via listTools
// and invoke tools by name; every invocation produces exactly one JSON
// response payload, success or error.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/cgordon-dev/codon-kg/internal/cypher"
	"github.com/cgordon-dev/codon-kg/internal/graph"
)

// serverName and serverVersion identify this server during the MCP
// initialize handshake.
const (
	serverName    = "codon-kg"
	serverVersion = "1.0.0"
)

// Server wraps the MCP server with the graph tool handlers. The tool
// catalog is registered at construction and immutable afterwards.
type Server struct {
	mcpServer *server.MCPServer
	engine    *graph.Engine
	logger    *slog.Logger
}

// New creates the tool protocol server bound to an execution engine.
func New(engine *graph.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		mcpServer: mcpServer,
		engine:    engine,
		logger:    logger,
	}
	s.registerTools()
	return s
}

// ServeStdio starts the server on the stdio transport (single client).
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on the streamable HTTP transport
// (multi-client) at addr. Blocks until the listener fails.
func (s *Server) ServeHTTP(addr string) error {
	return server.NewStreamableHTTPServer(s.mcpServer).Start(addr)
}

// ToolSchema describes a tool's name, description, and parameters.
type ToolSchema struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  []ParameterSchema `json:"parameters"`
}

// ParameterSchema describes a single tool parameter.
type ParameterSchema struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// toolSchemaRegistry holds the schema definitions for all tools. These
// mirror the mcp.NewTool() definitions in registerTools().
var toolSchemaRegistry = map[string]ToolSchema{
	"neo4j_execute_cypher": {
		Name:        "neo4j_execute_cypher",
		Description: "Execute a Cypher query against the Neo4j knowledge graph",
		Parameters: []ParameterSchema{
			{Name: "query", Type: "string", Description: "Cypher query to execute", Required: true},
			{Name: "parameters", Type: "object", Description: "Query parameters as key-value pairs"},
			{Name: "read_only", Type: "boolean", Description: "Whether the query is read-only (default: true)"},
		},
	},
	"neo4j_get_schema": {
		Name:        "neo4j_get_schema",
		Description: "Get database schema including labels, relationship types, property keys, constraints, and indexes",
	},
	"neo4j_search_nodes": {
		Name:        "neo4j_search_nodes",
		Description: "Search for nodes by label and properties",
		Parameters: []ParameterSchema{
			{Name: "label", Type: "string", Description: "Node label to filter by"},
			{Name: "properties", Type: "object", Description: "Properties to match as key-value pairs"},
			{Name: "limit", Type: "integer", Description: "Maximum number of results (default: 100)"},
		},
	},
	"neo4j_find_shortest_path": {
		Name:        "neo4j_find_shortest_path",
		Description: "Find shortest paths between two nodes",
		Parameters: []ParameterSchema{
			{Name: "start_properties", Type: "object", Description: "Properties identifying the start node", Required: true},
			{Name: "end_properties", Type: "object", Description: "Properties identifying the end node", Required: true},
			{Name: "relationship_types", Type: "array", Description: "Allowed relationship types for the path"},
			{Name: "max_depth", Type: "integer", Description: "Maximum path depth (default: 6)"},
		},
	},
	"neo4j_get_node_counts": {
		Name:        "neo4j_get_node_counts",
		Description: "Get count of nodes grouped by label",
	},
	"neo4j_get_relationship_counts": {
		Name:        "neo4j_get_relationship_counts",
		Description: "Get count of relationships grouped by type",
	},
	"neo4j_check_connection": {
		Name:        "neo4j_check_connection",
		Description: "Check Neo4j database connection health",
	},
}

// ToolSchemas returns the schemas for all registered tools.
func ToolSchemas() []ToolSchema {
	schemas := make([]ToolSchema, 0, len(toolSchemaRegistry))
	for _, name := range toolNames {
		schemas = append(schemas, toolSchemaRegistry[name])
	}
	return schemas
}

// toolNames fixes the catalog order.
var toolNames = []string{
	"neo4j_execute_cypher",
	"neo4j_get_schema",
	"neo4j_search_nodes",
	"neo4j_find_shortest_path",
	"neo4j_get_node_counts",
	"neo4j_get_relationship_counts",
	"neo4j_check_connection",
}

// CallTool dispatches a tool call by name with the given arguments,
// independent of transport. Returns the JSON payload or a classified error.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	schema, ok := toolSchemaRegistry[name]
	if !ok {
		return "", graph.NewError(graph.KindUnknownTool, fmt.Sprintf("unknown tool: %s", name))
	}
	for _, p := range schema.Parameters {
		if p.Required {
			if _, present := args[p.Name]; !present {
				return "", fmt.Errorf("%s: required parameter %q is missing", name, p.Name)
			}
		}
	}

	switch name {
	case "neo4j_execute_cypher":
		return s.executeCypher(ctx, args)
	case "neo4j_get_schema":
		return s.getSchema(ctx)
	case "neo4j_search_nodes":
		return s.searchNodes(ctx, args)
	case "neo4j_find_shortest_path":
		return s.findShortestPath(ctx, args)
	case "neo4j_get_node_counts":
		return s.resultPayload(s.engine.NodeCounts(ctx))
	case "neo4j_get_relationship_counts":
		return s.resultPayload(s.engine.RelationshipCounts(ctx))
	case "neo4j_check_connection":
		return s.checkConnection(ctx)
	default:
		return "", graph.NewError(graph.KindUnknownTool, fmt.Sprintf("unknown tool: %s", name))
	}
}

// Tool implementations. Each returns a JSON payload carrying at minimum a
// "status" field; classified engine failures become structured error
// payloads rather than protocol errors.

func (s *Server) executeCypher(ctx context.Context, args map[string]any) (string, error) {
	queryText, ok := args["query"].(string)
	if !ok || queryText == "" {
		return "", fmt.Errorf("query parameter is required")
	}
	parameters := objectArg(args, "parameters")
	readOnly := boolArg(args, "read_only", true)

	mode := cypher.ModeWrite
	if readOnly {
		mode = cypher.ModeRead
	}

	q := cypher.Query{Text: queryText, Parameters: parameters, Mode: mode}
	result, err := s.engine.Execute(ctx, q)
	if err != nil {
		return errorPayload(err, queryText), nil
	}
	return marshalPayload(map[string]any{
		"status":       "success",
		"records":      result.Records,
		"record_count": result.RecordCount,
		"query":        queryText,
	}), nil
}

func (s *Server) getSchema(ctx context.Context) (string, error) {
	snapshot, err := s.engine.Schema(ctx)
	if err != nil {
		// Partial failures still carry the surviving sections.
		return marshalPayload(map[string]any{
			"status":     "error",
			"error":      err.Error(),
			"error_kind": string(graph.KindOf(err)),
			"schema":     snapshot,
		}), nil
	}
	return marshalPayload(map[string]any{
		"status": "success",
		"schema": snapshot,
	}), nil
}

func (s *Server) searchNodes(ctx context.Context, args map[string]any) (string, error) {
	label, _ := args["label"].(string)
	properties := objectArg(args, "properties")
	limit := intArg(args, "limit", cypher.DefaultSearchLimit)

	q, err := cypher.NodeSearch(cypher.PropertyFilter{Label: label, Properties: properties}, limit)
	if err != nil {
		return "", err
	}

	result, err := s.engine.Execute(ctx, q)
	if err != nil {
		return errorPayload(err, q.Text), nil
	}
	return marshalPayload(map[string]any{
		"status":       "success",
		"records":      result.Records,
		"record_count": result.RecordCount,
		"query":        q.Text,
	}), nil
}

func (s *Server) findShortestPath(ctx context.Context, args map[string]any) (string, error) {
	spec := cypher.PathSpec{
		Start:             cypher.PropertyFilter{Properties: objectArg(args, "start_properties")},
		End:               cypher.PropertyFilter{Properties: objectArg(args, "end_properties")},
		RelationshipTypes: stringSliceArg(args, "relationship_types"),
		MaxDepth:          intArg(args, "max_depth", 6),
	}

	q, err := cypher.ShortestPath(spec)
	if err != nil {
		return "", err
	}

	result, err := s.engine.Execute(ctx, q)
	if err != nil {
		return errorPayload(err, q.Text), nil
	}

	// No path within max_depth is an empty list, not an error.
	paths := make([]any, 0, len(result.Records))
	for _, rec := range result.Records {
		path, ok := rec["path"].(map[string]any)
		if !ok {
			continue
		}
		paths = append(paths, path)
	}
	return marshalPayload(map[string]any{
		"status":     "success",
		"paths":      paths,
		"path_count": len(paths),
	}), nil
}

func (s *Server) checkConnection(ctx context.Context) (string, error) {
	return marshalPayload(s.engine.Health(ctx)), nil
}

// resultPayload adapts a plain engine result into the standard payload.
func (s *Server) resultPayload(result *graph.Result, err error) (string, error) {
	if err != nil {
		return errorPayload(err, ""), nil
	}
	return marshalPayload(map[string]any{
		"status":       "success",
		"records":      result.Records,
		"record_count": result.RecordCount,
	}), nil
}

func marshalPayload(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"status":"error","error":"payload serialization failed: %v"}`, err)
	}
	return string(data)
}

func errorPayload(err error, queryText string) string {
	payload := map[string]any{
		"status":     "error",
		"error":      err.Error(),
		"error_kind": string(graph.KindOf(err)),
	}
	if queryText != "" {
		payload["query"] = queryText
	}
	return marshalPayload(payload)
}

// Argument helpers. MCP arguments arrive as decoded JSON, so numbers are
// float64 and objects are map[string]any.

func objectArg(args map[string]any, key string) map[string]any {
	obj, _ := args[key].(map[string]any)
	return obj
}

func boolArg(args map[string]any, key string, def bool) bool {
	if b, ok := args[key].(bool); ok {
		return b
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func stringSliceArg(args map[string]any, key string) []string {
	items, _ := args[key].([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
