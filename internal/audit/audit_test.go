package audit

import (
	"errors"
	"log/slog"
	"testing"
)

func openTestTrail(t *testing.T) *Trail {
	t.Helper()
	trail, err := Open(t.TempDir(), slog.Default())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { trail.Close() })
	return trail
}

func TestTrailLifecycle(t *testing.T) {
	trail := openTestTrail(t)

	id := trail.Begin("execute", "MATCH (n) RETURN n")
	if id == "" {
		t.Fatal("Begin returned empty id")
	}
	trail.Attempt(id, 1, errors.New("transient"))
	trail.Attempt(id, 2, nil)
	trail.End(id, "success", nil)

	entries, err := trail.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	e := entries[0]
	if e.ID != id {
		t.Errorf("id = %s, want %s", e.ID, id)
	}
	if e.Action != "execute" {
		t.Errorf("action = %s", e.Action)
	}
	if e.Status != "success" {
		t.Errorf("status = %s", e.Status)
	}
	if e.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", e.Attempts)
	}
	if e.FinishedAt == "" {
		t.Error("finished_at not set")
	}
}

func TestTrailRecordsFailure(t *testing.T) {
	trail := openTestTrail(t)

	id := trail.Begin("execute", "MATCH (n) DETACH DELETE n")
	trail.End(id, "blocked", errors.New("query blocked by security policy"))

	entries, err := trail.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if entries[0].Status != "blocked" {
		t.Errorf("status = %s, want blocked", entries[0].Status)
	}
	if entries[0].Error == "" {
		t.Error("error text not recorded")
	}
}

func TestRecentOrdering(t *testing.T) {
	trail := openTestTrail(t)

	first := trail.Begin("execute", "RETURN 1")
	second := trail.Begin("schema", "")
	trail.End(first, "success", nil)
	trail.End(second, "success", nil)

	entries, err := trail.Recent(1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].ID != second {
		t.Errorf("newest entry = %s, want %s", entries[0].ID, second)
	}
}
