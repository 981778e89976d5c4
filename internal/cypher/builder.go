// Package cypher builds parameterized Cypher queries from structured search
// and path requests. Caller-supplied values are never interpolated into query
// text; they are always bound as named parameters. The only textual embeddings
// are identifiers (labels, property keys, relationship types), which are
// validated against a strict identifier pattern first, and the path depth
// bound, which is validated as a positive integer.
package cypher

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Mode declares the transaction kind a query must run under.
type Mode string

const (
	ModeRead  Mode = "READ"
	ModeWrite Mode = "WRITE"
)

// Query is a parameterized Cypher statement ready for execution.
type Query struct {
	Text       string
	Parameters map[string]any
	Mode       Mode
}

// PropertyFilter matches nodes by an optional label and exact-equality
// properties (AND-combined). An empty property map matches any node of the
// label, or any node at all if the label is absent.
type PropertyFilter struct {
	Label      string
	Properties map[string]any
}

// PathSpec describes a shortest-path search between two node filters.
type PathSpec struct {
	Start             PropertyFilter
	End               PropertyFilter
	RelationshipTypes []string
	MaxDepth          int
}

// DefaultSearchLimit caps node searches when the caller gives no limit.
const DefaultSearchLimit = 100

// pathResultLimit is the fixed cap on returned shortest paths.
const pathResultLimit = 10

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validIdentifier reports whether s is safe to embed in query text as a
// label, property key, or relationship type.
func validIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// NodeSearch builds a query matching nodes by label and properties.
// All property values and the limit are bound as parameters.
func NodeSearch(filter PropertyFilter, limit int) (Query, error) {
	if filter.Label != "" && !validIdentifier(filter.Label) {
		return Query{}, fmt.Errorf("invalid node label %q", filter.Label)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var b strings.Builder
	b.WriteString("MATCH (n")
	if filter.Label != "" {
		b.WriteString(":")
		b.WriteString(filter.Label)
	}
	b.WriteString(")")

	params := map[string]any{"limit": limit}

	conditions, err := propertyConditions("n", "prop", filter.Properties, params)
	if err != nil {
		return Query{}, err
	}
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}

	b.WriteString(" RETURN n LIMIT $limit")

	return Query{Text: b.String(), Parameters: params, Mode: ModeRead}, nil
}

// ShortestPath builds a query finding the shortest path(s) between nodes
// matching the start and end filters, ordered by path length ascending and
// capped at a fixed result count. MaxDepth bounds the variable-length
// pattern and must be a positive integer.
func ShortestPath(spec PathSpec) (Query, error) {
	if spec.MaxDepth <= 0 {
		return Query{}, fmt.Errorf("max depth must be a positive integer, got %d", spec.MaxDepth)
	}
	if len(spec.Start.Properties) == 0 {
		return Query{}, fmt.Errorf("start properties are required")
	}
	if len(spec.End.Properties) == 0 {
		return Query{}, fmt.Errorf("end properties are required")
	}

	params := make(map[string]any)

	startConditions, err := propertyConditions("start", "start", spec.Start.Properties, params)
	if err != nil {
		return Query{}, err
	}
	endConditions, err := propertyConditions("end", "end", spec.End.Properties, params)
	if err != nil {
		return Query{}, err
	}

	relPattern, err := relationshipPattern(spec.RelationshipTypes, spec.MaxDepth)
	if err != nil {
		return Query{}, err
	}

	var b strings.Builder
	b.WriteString("MATCH (start), (end) WHERE (")
	b.WriteString(strings.Join(startConditions, " AND "))
	b.WriteString(") AND (")
	b.WriteString(strings.Join(endConditions, " AND "))
	b.WriteString(") MATCH path = shortestPath((start)-")
	b.WriteString(relPattern)
	b.WriteString("-(end)) RETURN path, length(path) AS pathLength")
	fmt.Fprintf(&b, " ORDER BY pathLength LIMIT %d", pathResultLimit)

	return Query{Text: b.String(), Parameters: params, Mode: ModeRead}, nil
}

// propertyConditions emits "alias.key = $prefix_key" clauses in sorted key
// order and records each value under its parameter name. The prefix keeps
// parameter names unique when several filters share a query.
func propertyConditions(alias, prefix string, props map[string]any, params map[string]any) ([]string, error) {
	if len(props) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conditions := make([]string, 0, len(keys))
	for _, k := range keys {
		if !validIdentifier(k) {
			return nil, fmt.Errorf("invalid property key %q", k)
		}
		paramName := prefix + "_" + k
		conditions = append(conditions, fmt.Sprintf("%s.%s = $%s", alias, k, paramName))
		params[paramName] = props[k]
	}
	return conditions, nil
}

// relationshipPattern renders the variable-length relationship segment.
// An empty type set means any relationship type.
func relationshipPattern(types []string, maxDepth int) (string, error) {
	if len(types) == 0 {
		return fmt.Sprintf("[*1..%d]", maxDepth), nil
	}
	for _, t := range types {
		if !validIdentifier(t) {
			return "", fmt.Errorf("invalid relationship type %q", t)
		}
	}
	return fmt.Sprintf("[:%s*1..%d]", strings.Join(types, "|"), maxDepth), nil
}
