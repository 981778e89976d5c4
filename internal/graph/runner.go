package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/cgordon-dev/codon-kg/internal/cypher"
)

// Runner executes a single attempt of a query inside a transaction of the
// declared mode. The engine wraps a Runner with the safety gate, retry
// policy, and audit hooks; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, q cypher.Query) ([]string, []Record, error)
	Close(ctx context.Context) error
}

// neo4jRunner executes queries against a live Neo4j database. Read-mode
// queries always run inside read transactions and write-mode queries inside
// write transactions; the declared mode is authoritative.
type neo4jRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (r *neo4jRunner) Run(ctx context.Context, q cypher.Query) ([]string, []Record, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: r.database,
	})
	defer session.Close(ctx)

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, q.Text, q.Parameters)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		var columns []string
		out := make([]Record, 0, len(records))
		for _, rec := range records {
			if columns == nil {
				columns = rec.Keys
			}
			out = append(out, normalizeRecord(rec.Keys, rec.Values))
		}
		return runOutcome{columns: columns, records: out}, nil
	}

	var result any
	var err error
	if q.Mode == cypher.ModeWrite {
		result, err = session.ExecuteWrite(ctx, work)
	} else {
		result, err = session.ExecuteRead(ctx, work)
	}
	if err != nil {
		return nil, nil, err
	}

	outcome := result.(runOutcome)
	return outcome.columns, outcome.records, nil
}

func (r *neo4jRunner) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

type runOutcome struct {
	columns []string
	records []Record
}
