package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/cgordon-dev/codon-kg/internal/cypher"
)

// ConstraintDescriptor describes one database constraint.
type ConstraintDescriptor struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	EntityType    string   `json:"entity_type"`
	LabelsOrTypes []string `json:"labels_or_types"`
	Properties    []string `json:"properties"`
}

// IndexDescriptor describes one database index.
type IndexDescriptor struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	EntityType    string   `json:"entity_type"`
	LabelsOrTypes []string `json:"labels_or_types"`
	Properties    []string `json:"properties"`
	State         string   `json:"state"`
}

// SchemaSnapshot is a point-in-time view of database metadata. It is rebuilt
// on every request; the schema may change between calls. FailedSections
// names introspection sub-queries that failed, so callers can distinguish a
// genuinely empty schema from a partial failure.
type SchemaSnapshot struct {
	Labels            []string               `json:"labels"`
	RelationshipTypes []string               `json:"relationship_types"`
	PropertyKeys      []string               `json:"property_keys"`
	Constraints       []ConstraintDescriptor `json:"constraints"`
	Indexes           []IndexDescriptor      `json:"indexes"`
	FailedSections    []string               `json:"failed_sections,omitempty"`
}

// Schema retrieves labels, relationship types, property keys, constraints,
// and indexes through the ordinary execution path (same retry and error
// semantics as any read query). If a sub-query fails, the snapshot keeps
// what succeeded and the error names the failed sections.
func (e *Engine) Schema(ctx context.Context) (*SchemaSnapshot, error) {
	snapshot := &SchemaSnapshot{
		Labels:            []string{},
		RelationshipTypes: []string{},
		PropertyKeys:      []string{},
		Constraints:       []ConstraintDescriptor{},
		Indexes:           []IndexDescriptor{},
	}

	if labels, err := e.collectStrings(ctx,
		"CALL db.labels() YIELD label RETURN collect(label) AS items"); err != nil {
		snapshot.FailedSections = append(snapshot.FailedSections, "labels")
	} else {
		snapshot.Labels = labels
	}

	if types, err := e.collectStrings(ctx,
		"CALL db.relationshipTypes() YIELD relationshipType RETURN collect(relationshipType) AS items"); err != nil {
		snapshot.FailedSections = append(snapshot.FailedSections, "relationship_types")
	} else {
		snapshot.RelationshipTypes = types
	}

	if keys, err := e.collectStrings(ctx,
		"CALL db.propertyKeys() YIELD propertyKey RETURN collect(propertyKey) AS items"); err != nil {
		snapshot.FailedSections = append(snapshot.FailedSections, "property_keys")
	} else {
		snapshot.PropertyKeys = keys
	}

	if err := e.collectConstraintsAndIndexes(ctx, snapshot); err != nil {
		snapshot.FailedSections = append(snapshot.FailedSections, "constraints_indexes")
	}

	if len(snapshot.FailedSections) > 0 {
		return snapshot, NewError(KindSchemaPartial,
			fmt.Sprintf("schema introspection failed for: %s", strings.Join(snapshot.FailedSections, ", ")))
	}
	return snapshot, nil
}

// collectStrings runs a query that returns a single row with a single
// collected list column named "items".
func (e *Engine) collectStrings(ctx context.Context, queryText string) ([]string, error) {
	result, err := e.Execute(ctx, cypher.Query{
		Text: queryText, Parameters: map[string]any{}, Mode: cypher.ModeRead,
	})
	if err != nil {
		return nil, err
	}

	out := []string{}
	if len(result.Records) == 0 {
		return out, nil
	}
	items, _ := result.Records[0]["items"].([]any)
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// collectConstraintsAndIndexes fills both sections, or neither: a failure
// in either sub-query leaves the whole section empty so the caller cannot
// mistake a half-filled section for a complete one.
func (e *Engine) collectConstraintsAndIndexes(ctx context.Context, snapshot *SchemaSnapshot) error {
	constraints, err := e.Execute(ctx, cypher.Query{
		Text: "SHOW CONSTRAINTS", Parameters: map[string]any{}, Mode: cypher.ModeRead,
	})
	if err != nil {
		return err
	}
	collected := []ConstraintDescriptor{}
	for _, rec := range constraints.Records {
		collected = append(collected, ConstraintDescriptor{
			Name:          stringField(rec, "name"),
			Type:          stringField(rec, "type"),
			EntityType:    stringField(rec, "entityType"),
			LabelsOrTypes: stringListField(rec, "labelsOrTypes"),
			Properties:    stringListField(rec, "properties"),
		})
	}

	indexes, err := e.Execute(ctx, cypher.Query{
		Text: "SHOW INDEXES", Parameters: map[string]any{}, Mode: cypher.ModeRead,
	})
	if err != nil {
		return err
	}
	collectedIndexes := []IndexDescriptor{}
	for _, rec := range indexes.Records {
		collectedIndexes = append(collectedIndexes, IndexDescriptor{
			Name:          stringField(rec, "name"),
			Type:          stringField(rec, "type"),
			EntityType:    stringField(rec, "entityType"),
			LabelsOrTypes: stringListField(rec, "labelsOrTypes"),
			Properties:    stringListField(rec, "properties"),
			State:         stringField(rec, "state"),
		})
	}

	snapshot.Constraints = collected
	snapshot.Indexes = collectedIndexes
	return nil
}

func stringField(rec Record, key string) string {
	s, _ := rec[key].(string)
	return s
}

func stringListField(rec Record, key string) []string {
	items, _ := rec[key].([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
