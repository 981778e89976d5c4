package safety

import (
	"testing"

	"github.com/cgordon-dev/codon-kg/internal/cypher"
)

func TestClassifyBlocksDestructiveQueries(t *testing.T) {
	gate := NewGate()

	blocked := []string{
		"MATCH (n) DELETE n",
		"MATCH (n) DETACH DELETE n",
		"match (n) detach delete n",
		"MaTcH (n) DeLeTe n",
		"DROP CONSTRAINT person_name",
		"CREATE CONSTRAINT FOR (p:Person) REQUIRE p.id IS UNIQUE",
		"CREATE INDEX person_idx FOR (p:Person) ON (p.name)",
		"drop index person_idx",
		"MATCH (n) REMOVE n.secret RETURN n",
		"GRANT TRAVERSE ON GRAPH * TO analyst",
		"CALL dbms.shutdown()",
	}
	for _, q := range blocked {
		if gate.Classify(q) != Block {
			t.Errorf("Classify(%q) = ALLOW, want BLOCK", q)
		}
	}
}

func TestClassifyAllowsReadQueries(t *testing.T) {
	gate := NewGate()

	allowed := []string{
		"MATCH (n:Person) RETURN n LIMIT 10",
		"MATCH (a)-[r:KNOWS]->(b) RETURN a, r, b",
		"CALL db.labels() YIELD label RETURN collect(label) AS labels",
		"RETURN 1 AS test",
	}
	for _, q := range allowed {
		if gate.Classify(q) != Allow {
			t.Errorf("Classify(%q) = BLOCK, want ALLOW", q)
		}
	}
}

func TestBlockedPatternNamesViolation(t *testing.T) {
	gate := NewGate()

	if p := gate.BlockedPattern("MATCH (n) DETACH DELETE n"); p != "DELETE" {
		// DELETE is checked before DETACH DELETE; either naming is a correct
		// diagnosis, but the output must be stable.
		t.Errorf("BlockedPattern = %q, want DELETE", p)
	}
	if p := gate.BlockedPattern("MATCH (n) RETURN n"); p != "" {
		t.Errorf("BlockedPattern on clean query = %q, want empty", p)
	}
}

func TestCheckModeRejectsWriteSyntaxDeclaredRead(t *testing.T) {
	gate := NewGate()

	q := cypher.Query{Text: "CREATE (n:Person {name: $name})", Mode: cypher.ModeRead}
	if pattern, ok := gate.CheckMode(q); ok {
		t.Error("expected READ-declared CREATE to be rejected")
	} else if pattern != "CREATE" {
		t.Errorf("pattern = %q, want CREATE", pattern)
	}

	q = cypher.Query{Text: "MATCH (n) SET n.seen = true", Mode: cypher.ModeRead}
	if _, ok := gate.CheckMode(q); ok {
		t.Error("expected READ-declared SET to be rejected")
	}
}

func TestCheckModeIgnoresWriteVerbsInsideIdentifiers(t *testing.T) {
	gate := NewGate()

	reads := []string{
		"MATCH (n:Person) WHERE n.created = $prop_created RETURN n LIMIT $limit",
		"MATCH (n) WHERE n.merge_key = $prop_merge_key RETURN n",
		"MATCH (n:Dataset) RETURN n.settings",
		"MATCH (n:Upload) WHERE n.preset = $prop_preset RETURN n",
	}
	for _, text := range reads {
		q := cypher.Query{Text: text, Mode: cypher.ModeRead}
		if pattern, ok := gate.CheckMode(q); !ok {
			t.Errorf("CheckMode(%q) rejected with %q, want accept", text, pattern)
		}
	}

	// The builder's own output for a search on a "created" property must
	// pass the gate it will be executed behind.
	q, err := cypher.NodeSearch(cypher.PropertyFilter{
		Label:      "Event",
		Properties: map[string]any{"created": "2024-01-01"},
	}, 10)
	if err != nil {
		t.Fatalf("NodeSearch: %v", err)
	}
	if pattern, ok := gate.CheckMode(q); !ok {
		t.Errorf("builder output %q rejected with %q", q.Text, pattern)
	}
}

func TestCheckModeAcceptsConsistentQueries(t *testing.T) {
	gate := NewGate()

	q := cypher.Query{Text: "MATCH (n:Person) RETURN n", Mode: cypher.ModeRead}
	if _, ok := gate.CheckMode(q); !ok {
		t.Error("plain read query rejected")
	}

	// WRITE mode may carry write syntax; the denylist is a separate check.
	q = cypher.Query{Text: "MERGE (n:Person {id: $id})", Mode: cypher.ModeWrite}
	if _, ok := gate.CheckMode(q); !ok {
		t.Error("WRITE-declared MERGE rejected by mode check")
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"rm -rf / && echo done", "rm -rf /  echo done"},
		{"$(whoami)", "whoami"},
		{"a|b;c`d", "abcd"},
		{"<script>alert(1)</script>", "scriptalert1/script"},
	}
	for _, tt := range tests {
		if got := SanitizeInput(tt.in); got != tt.want {
			t.Errorf("SanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
