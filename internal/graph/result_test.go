package graph

import (
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeNode(t *testing.T) {
	node := dbtype.Node{
		Labels: []string{"Person"},
		Props:  map[string]any{"name": "John", "age": int64(42)},
	}

	got := normalizeValue(node)
	m, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "John", m["name"])
	assert.Equal(t, int64(42), m["age"])
	assert.Equal(t, []string{"Person"}, m["_labels"])
}

func TestNormalizeRelationship(t *testing.T) {
	rel := dbtype.Relationship{
		Type:  "KNOWS",
		Props: map[string]any{"since": int64(2020)},
	}

	got := normalizeValue(rel)
	m, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(2020), m["since"])
	assert.Equal(t, "KNOWS", m["_type"])
}

func TestNormalizePath(t *testing.T) {
	path := dbtype.Path{
		Nodes: []dbtype.Node{
			{Labels: []string{"Person"}, Props: map[string]any{"name": "A"}},
			{Labels: []string{"Person"}, Props: map[string]any{"name": "M"}},
			{Labels: []string{"Person"}, Props: map[string]any{"name": "B"}},
		},
		Relationships: []dbtype.Relationship{
			{Type: "KNOWS"},
			{Type: "KNOWS"},
		},
	}

	got := normalizeValue(path)
	m, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2, m["length"], "path length is the relationship count")

	nodes, ok := m["nodes"].([]any)
	require.True(t, ok)
	require.Len(t, nodes, 3)
	first := nodes[0].(map[string]any)
	assert.Equal(t, "A", first["name"])

	rels, ok := m["relationships"].([]any)
	require.True(t, ok)
	assert.Len(t, rels, 2)
}

func TestNormalizeNestedCollections(t *testing.T) {
	value := []any{
		dbtype.Node{Labels: []string{"Account"}, Props: map[string]any{"id": "a1"}},
		map[string]any{
			"inner": dbtype.Relationship{Type: "OWNS"},
		},
		"plain",
	}

	got := normalizeValue(value).([]any)
	node := got[0].(map[string]any)
	assert.Equal(t, []string{"Account"}, node["_labels"])

	inner := got[1].(map[string]any)["inner"].(map[string]any)
	assert.Equal(t, "OWNS", inner["_type"])

	assert.Equal(t, "plain", got[2])
}

func TestNormalizeRecordKeepsColumnOrder(t *testing.T) {
	rec := normalizeRecord(
		[]string{"a", "b"},
		[]any{int64(1), dbtype.Node{Labels: []string{"X"}, Props: map[string]any{}}},
	)
	assert.Equal(t, int64(1), rec["a"])
	node := rec["b"].(map[string]any)
	assert.Equal(t, []string{"X"}, node["_labels"])
}
