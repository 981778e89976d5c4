package graph

import (
	"context"

	"github.com/cgordon-dev/codon-kg/internal/cypher"
)

// NodeCounts returns node counts grouped by label set, most numerous first.
func (e *Engine) NodeCounts(ctx context.Context) (*Result, error) {
	return e.Execute(ctx, cypher.Query{
		Text:       "MATCH (n) RETURN labels(n) AS labels, count(n) AS count ORDER BY count DESC",
		Parameters: map[string]any{},
		Mode:       cypher.ModeRead,
	})
}

// RelationshipCounts returns relationship counts grouped by type, most
// numerous first.
func (e *Engine) RelationshipCounts(ctx context.Context) (*Result, error) {
	return e.Execute(ctx, cypher.Query{
		Text:       "MATCH ()-[r]->() RETURN type(r) AS relationship_type, count(r) AS count ORDER BY count DESC",
		Parameters: map[string]any{},
		Mode:       cypher.ModeRead,
	})
}
