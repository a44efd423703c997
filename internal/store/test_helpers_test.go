package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/ogm/internal/graph"
)

// createTestStore opens a fresh store in a temp dir with deterministic IDs.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(graph.NewSequenceGenerator("n")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// beginTestTx starts a transaction that is rolled back at cleanup unless
// the test commits it.
func beginTestTx(t *testing.T, s *Store) *Tx {
	t.Helper()
	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	t.Cleanup(func() { _ = tx.Rollback() })
	return tx
}

// mustNode creates a node or fails the test.
func mustNode(t *testing.T, tx *Tx, labels ...string) graph.Node {
	t.Helper()
	n, err := tx.CreateNode(labels...)
	if err != nil {
		t.Fatalf("CreateNode(%v) failed: %v", labels, err)
	}
	return n
}

// mustEdge creates an edge or fails the test.
func mustEdge(t *testing.T, from, to graph.Node, typ graph.EdgeType) graph.Edge {
	t.Helper()
	e, err := from.CreateEdgeTo(to, typ)
	if err != nil {
		t.Fatalf("CreateEdgeTo() failed: %v", err)
	}
	return e
}
