package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// ErrorKind classifies execution failures. Transient kinds are retried
// inside the engine; everything else surfaces immediately.
type ErrorKind string

const (
	KindSyntaxError        ErrorKind = "SYNTAX_ERROR"
	KindServiceUnavailable ErrorKind = "SERVICE_UNAVAILABLE"
	KindPolicyBlocked      ErrorKind = "POLICY_BLOCKED"
	KindExecutionError     ErrorKind = "EXECUTION_ERROR"
	KindUnknownTool        ErrorKind = "UNKNOWN_TOOL"
	KindSchemaPartial      ErrorKind = "SCHEMA_PARTIAL_FAILURE"
	KindEngineClosed       ErrorKind = "ENGINE_CLOSED"
	KindTimeout            ErrorKind = "TIMEOUT"
)

// Error carries enough structure (kind, message, offending query) to be
// logged and triaged without re-deriving context from the call site.
type Error struct {
	Kind    ErrorKind
	Message string
	Query   string
}

func (e *Error) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("%s: %s (query: %s)", e.Kind, e.Message, e.Query)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds a classified error without query context.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// QueryError builds a classified error carrying the offending query text.
func QueryError(kind ErrorKind, message, query string) *Error {
	return &Error{Kind: kind, Message: message, Query: query}
}

// KindOf extracts the ErrorKind from err, or KindExecutionError if err is
// not a classified *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindExecutionError
}

// classify maps driver-level failures onto the error taxonomy. Connectivity
// failures and transient server codes are the only retryable kinds.
func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var neoErr *db.Neo4jError
	if errors.As(err, &neoErr) {
		switch {
		case strings.Contains(neoErr.Code, "SyntaxError"):
			return KindSyntaxError
		case strings.HasPrefix(neoErr.Code, "Neo.TransientError"):
			return KindServiceUnavailable
		}
		return KindExecutionError
	}

	if neo4j.IsConnectivityError(err) {
		return KindServiceUnavailable
	}

	return KindExecutionError
}
