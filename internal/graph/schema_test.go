package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgordon-dev/codon-kg/internal/cypher"
)

// schemaRunner answers introspection queries from a canned schema and can
// fail selected sections.
type schemaRunner struct {
	failLabels  bool
	failIndexes bool
}

func (r *schemaRunner) Run(ctx context.Context, q cypher.Query) ([]string, []Record, error) {
	switch {
	case strings.Contains(q.Text, "db.labels"):
		if r.failLabels {
			return nil, nil, transientErr()
		}
		return []string{"items"}, []Record{{"items": []any{"Person", "Account"}}}, nil
	case strings.Contains(q.Text, "db.relationshipTypes"):
		return []string{"items"}, []Record{{"items": []any{"KNOWS"}}}, nil
	case strings.Contains(q.Text, "db.propertyKeys"):
		return []string{"items"}, []Record{{"items": []any{"name", "age"}}}, nil
	case strings.Contains(q.Text, "SHOW CONSTRAINTS"):
		return []string{"name"}, []Record{{
			"name":          "person_id_unique",
			"type":          "UNIQUENESS",
			"entityType":    "NODE",
			"labelsOrTypes": []any{"Person"},
			"properties":    []any{"id"},
		}}, nil
	case strings.Contains(q.Text, "SHOW INDEXES"):
		if r.failIndexes {
			return nil, nil, transientErr()
		}
		return []string{"name"}, []Record{{
			"name":          "person_name_idx",
			"type":          "RANGE",
			"entityType":    "NODE",
			"labelsOrTypes": []any{"Person"},
			"properties":    []any{"name"},
			"state":         "ONLINE",
		}}, nil
	}
	return nil, nil, nil
}

func (r *schemaRunner) Close(ctx context.Context) error { return nil }

func TestSchemaComplete(t *testing.T) {
	e := NewEngine(&schemaRunner{}, fastConfig())

	snapshot, err := e.Schema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Person", "Account"}, snapshot.Labels)
	assert.Equal(t, []string{"KNOWS"}, snapshot.RelationshipTypes)
	assert.Equal(t, []string{"name", "age"}, snapshot.PropertyKeys)
	require.Len(t, snapshot.Constraints, 1)
	assert.Equal(t, "person_id_unique", snapshot.Constraints[0].Name)
	assert.Equal(t, []string{"Person"}, snapshot.Constraints[0].LabelsOrTypes)
	require.Len(t, snapshot.Indexes, 1)
	assert.Equal(t, "ONLINE", snapshot.Indexes[0].State)
	assert.Empty(t, snapshot.FailedSections)
}

func TestSchemaIdempotent(t *testing.T) {
	e := NewEngine(&schemaRunner{}, fastConfig())

	first, err := e.Schema(context.Background())
	require.NoError(t, err)
	second, err := e.Schema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSchemaPartialFailure(t *testing.T) {
	e := NewEngine(&schemaRunner{failLabels: true}, fastConfig())

	snapshot, err := e.Schema(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindSchemaPartial, KindOf(err))
	assert.Contains(t, err.Error(), "labels")

	// The failed section is empty, everything else survives.
	require.NotNil(t, snapshot)
	assert.Empty(t, snapshot.Labels)
	assert.Equal(t, []string{"labels"}, snapshot.FailedSections)
	assert.Equal(t, []string{"KNOWS"}, snapshot.RelationshipTypes)
	assert.Len(t, snapshot.Constraints, 1)
}

func TestSchemaIndexFailureNamesConstraintsSection(t *testing.T) {
	e := NewEngine(&schemaRunner{failIndexes: true}, fastConfig())

	snapshot, err := e.Schema(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"constraints_indexes"}, snapshot.FailedSections)
	assert.Empty(t, snapshot.Indexes)
	assert.Empty(t, snapshot.Constraints, "a failed section is left whole-empty")
}
