// Package safety classifies query text against a fixed security policy
// before anything reaches the database. The checks are deliberately coarse
// substring matches: a false positive costs a blocked query, a false
// negative costs data.
package safety

import (
	"regexp"
	"strings"

	"github.com/cgordon-dev/codon-kg/internal/cypher"
)

// Decision is the outcome of classifying query text.
type Decision int

const (
	Allow Decision = iota
	Block
)

func (d Decision) String() string {
	if d == Block {
		return "BLOCK"
	}
	return "ALLOW"
}

// denylist contains destructive, schema-mutating, and administrative verbs.
// Matching is case-insensitive substring. Block-all stays the default; there
// is no elevated mode that re-admits schema mutation.
var denylist = []string{
	"DELETE",
	"REMOVE",
	"DROP",
	"DETACH DELETE",
	"CREATE CONSTRAINT",
	"DROP CONSTRAINT",
	"CREATE INDEX",
	"DROP INDEX",
	"GRANT",
	"REVOKE",
	"DENY",
	"DBMS.",
}

// writeSyntax marks clauses that only make sense in a write query. A caller
// declaring READ whose text matches one of these is rejected before any
// transaction opens. Matching is on word boundaries so a property name like
// "created" does not read as a CREATE clause.
var writeSyntax = []struct {
	clause  string
	pattern *regexp.Regexp
}{
	{"CREATE", regexp.MustCompile(`\bCREATE\b`)},
	{"MERGE", regexp.MustCompile(`\bMERGE\b`)},
	{"SET", regexp.MustCompile(`\bSET\b`)},
	{"DELETE", regexp.MustCompile(`\bDELETE\b`)},
	{"REMOVE", regexp.MustCompile(`\bREMOVE\b`)},
	{"DROP", regexp.MustCompile(`\bDROP\b`)},
	{"FOREACH", regexp.MustCompile(`\bFOREACH\b`)},
	{"LOAD CSV", regexp.MustCompile(`\bLOAD\s+CSV\b`)},
}

// Gate enforces the query security policy. It holds no mutable state and is
// safe for concurrent use.
type Gate struct{}

// NewGate returns the standard gate.
func NewGate() *Gate {
	return &Gate{}
}

// Classify returns Block if the query text contains any denylisted token in
// any case combination.
func (g *Gate) Classify(queryText string) Decision {
	upper := strings.ToUpper(queryText)
	for _, pattern := range denylist {
		if strings.Contains(upper, pattern) {
			return Block
		}
	}
	return Allow
}

// BlockedPattern returns the first denylisted token found in the query text,
// or "" if the text is clean. Used to name the violation in error messages.
func (g *Gate) BlockedPattern(queryText string) string {
	upper := strings.ToUpper(queryText)
	for _, pattern := range denylist {
		if strings.Contains(upper, pattern) {
			return pattern
		}
	}
	return ""
}

// CheckMode verifies the declared mode is consistent with the query text:
// a READ-mode query containing write-only syntax is rejected here rather
// than left for the database to refuse.
func (g *Gate) CheckMode(q cypher.Query) (string, bool) {
	if q.Mode != cypher.ModeRead {
		return "", true
	}
	upper := strings.ToUpper(q.Text)
	for _, w := range writeSyntax {
		if w.pattern.MatchString(upper) {
			return w.clause, false
		}
	}
	return "", true
}

// shell metacharacters stripped from free-text input before it can reach
// non-parameterized command fragments of adjacent tooling. Cypher text is
// not sanitized this way; it uses parameter binding instead.
var dangerousChars = []string{"<", ">", "&", "|", ";", "`", "$", "(", ")"}

// SanitizeInput strips shell metacharacters from free-text caller input.
func SanitizeInput(input string) string {
	sanitized := input
	for _, ch := range dangerousChars {
		sanitized = strings.ReplaceAll(sanitized, ch, "")
	}
	return sanitized
}
