package graph

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Record is one result row keyed by column name. Graph values are unpacked
// into plain property maps tagged with their labels or relationship type,
// so callers need no knowledge of the driver's value types.
type Record map[string]any

// Result is a normalized query response.
type Result struct {
	Status      string   `json:"status"`
	Columns     []string `json:"columns,omitempty"`
	Records     []Record `json:"records"`
	RecordCount int      `json:"record_count"`
}

// normalizeValue converts driver graph values into plain maps. Nodes carry
// their labels under "_labels", relationships their type under "_type",
// and paths become an ordered node/relationship listing with a length.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case dbtype.Node:
		return normalizeNode(val)
	case dbtype.Relationship:
		return normalizeRelationship(val)
	case dbtype.Path:
		return normalizePath(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}

func normalizeNode(n dbtype.Node) map[string]any {
	out := make(map[string]any, len(n.Props)+1)
	for k, v := range n.Props {
		out[k] = v
	}
	out["_labels"] = n.Labels
	return out
}

func normalizeRelationship(r dbtype.Relationship) map[string]any {
	out := make(map[string]any, len(r.Props)+1)
	for k, v := range r.Props {
		out[k] = v
	}
	out["_type"] = r.Type
	return out
}

func normalizePath(p dbtype.Path) map[string]any {
	nodes := make([]any, len(p.Nodes))
	for i, n := range p.Nodes {
		nodes[i] = normalizeNode(n)
	}
	rels := make([]any, len(p.Relationships))
	for i, r := range p.Relationships {
		rels[i] = normalizeRelationship(r)
	}
	return map[string]any{
		"length":        len(p.Relationships),
		"nodes":         nodes,
		"relationships": rels,
	}
}

// normalizeRecord converts one driver row into a Record.
func normalizeRecord(keys []string, values []any) Record {
	rec := make(Record, len(keys))
	for i, key := range keys {
		rec[key] = normalizeValue(values[i])
	}
	return rec
}
