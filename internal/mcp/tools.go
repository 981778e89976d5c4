package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers the full tool catalog with the MCP server. The
// mcp.NewTool definitions mirror toolSchemaRegistry.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("neo4j_execute_cypher",
		mcp.WithDescription("Execute a Cypher query against the Neo4j knowledge graph"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Cypher query to execute"),
		),
		mcp.WithObject("parameters",
			mcp.Description("Query parameters as key-value pairs"),
		),
		mcp.WithBoolean("read_only",
			mcp.Description("Whether the query is read-only (default: true)"),
		),
	), s.handle("neo4j_execute_cypher"))

	s.mcpServer.AddTool(mcp.NewTool("neo4j_get_schema",
		mcp.WithDescription("Get database schema including labels, relationship types, property keys, constraints, and indexes"),
	), s.handle("neo4j_get_schema"))

	s.mcpServer.AddTool(mcp.NewTool("neo4j_search_nodes",
		mcp.WithDescription("Search for nodes by label and properties"),
		mcp.WithString("label",
			mcp.Description("Node label to filter by"),
		),
		mcp.WithObject("properties",
			mcp.Description("Properties to match as key-value pairs"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 100)"),
		),
	), s.handle("neo4j_search_nodes"))

	s.mcpServer.AddTool(mcp.NewTool("neo4j_find_shortest_path",
		mcp.WithDescription("Find shortest paths between two nodes"),
		mcp.WithObject("start_properties",
			mcp.Required(),
			mcp.Description("Properties identifying the start node"),
		),
		mcp.WithObject("end_properties",
			mcp.Required(),
			mcp.Description("Properties identifying the end node"),
		),
		mcp.WithArray("relationship_types",
			mcp.Description("Allowed relationship types for the path"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum path depth (default: 6)"),
		),
	), s.handle("neo4j_find_shortest_path"))

	s.mcpServer.AddTool(mcp.NewTool("neo4j_get_node_counts",
		mcp.WithDescription("Get count of nodes grouped by label"),
	), s.handle("neo4j_get_node_counts"))

	s.mcpServer.AddTool(mcp.NewTool("neo4j_get_relationship_counts",
		mcp.WithDescription("Get count of relationships grouped by type"),
	), s.handle("neo4j_get_relationship_counts"))

	s.mcpServer.AddTool(mcp.NewTool("neo4j_check_connection",
		mcp.WithDescription("Check Neo4j database connection health"),
	), s.handle("neo4j_check_connection"))
}

// handle adapts the transport-agnostic dispatcher to an MCP tool handler.
// Classified engine failures travel as structured JSON payloads; only
// malformed invocations become protocol-level tool errors.
func (s *Server) handle(name string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload, err := s.CallTool(ctx, name, req.GetArguments())
		if err != nil {
			s.logger.Warn("tool call rejected", "tool", name, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(payload), nil
	}
}
