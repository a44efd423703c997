package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/ogm/internal/graph"
)

// Tx is a graph.Graph over one SQLite transaction.
//
// Nodes and edges returned by a Tx are only valid until Commit or
// Rollback.
type Tx struct {
	ctx  context.Context
	tx   *sql.Tx
	ids  graph.IDGenerator
	done bool
}

var _ graph.Graph = (*Tx)(nil)

// Commit makes all writes durable.
func (t *Tx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards all writes. Calling it after Commit is a no-op, so
// it is safe to defer.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// nextSeq returns the next insertion sequence for table.
func (t *Tx) nextSeq(table string) (int64, error) {
	var seq int64
	q := fmt.Sprintf("SELECT COALESCE(MAX(seq), 0) + 1 FROM %s", table)
	if err := t.tx.QueryRowContext(t.ctx, q).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next %s seq: %w", table, err)
	}
	return seq, nil
}

// CreateNode inserts a node with the given labels.
func (t *Tx) CreateNode(labels ...string) (graph.Node, error) {
	seq, err := t.nextSeq("nodes")
	if err != nil {
		return nil, err
	}
	id := t.ids.Generate()
	if _, err := t.tx.ExecContext(t.ctx,
		"INSERT INTO nodes (id, seq) VALUES (?, ?)", id, seq); err != nil {
		return nil, fmt.Errorf("insert node: %w", err)
	}
	for i, label := range labels {
		if _, err := t.tx.ExecContext(t.ctx,
			"INSERT INTO node_labels (node_id, position, label) VALUES (?, ?, ?)",
			id, i, label); err != nil {
			return nil, fmt.Errorf("insert node label %q: %w", label, err)
		}
	}
	slog.Debug("node created", "id", id, "labels", labels)
	return t.newNode(id, append([]string(nil), labels...)), nil
}

// Node finds a node by ID.
func (t *Tx) Node(id string) (graph.Node, error) {
	var exists int
	err := t.tx.QueryRowContext(t.ctx, "SELECT 1 FROM nodes WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("node %s: %w", id, graph.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query node %s: %w", id, err)
	}
	labels, err := t.labels(id)
	if err != nil {
		return nil, err
	}
	return t.newNode(id, labels), nil
}

func (t *Tx) labels(id string) ([]string, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		"SELECT label FROM node_labels WHERE node_id = ? ORDER BY position ASC", id)
	if err != nil {
		return nil, fmt.Errorf("query labels of %s: %w", id, err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

func (t *Tx) newNode(id string, labels []string) *node {
	return &node{propertyOwner: propertyOwner{tx: t, kind: "node", id: id}, labels: labels}
}

// propertyOwner implements graph.PropertyContainer for nodes and edges.
type propertyOwner struct {
	tx   *Tx
	kind string
	id   string
}

func (p propertyOwner) ID() string { return p.id }

func (p propertyOwner) Property(key string) (any, bool, error) {
	var raw string
	err := p.tx.tx.QueryRowContext(p.tx.ctx,
		"SELECT value FROM properties WHERE owner_kind = ? AND owner_id = ? AND key = ?",
		p.kind, p.id, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s %s property %q: %w", p.kind, p.id, key, err)
	}
	v, err := decodeValue(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%s %s property %q: %w", p.kind, p.id, key, err)
	}
	return v, true, nil
}

func (p propertyOwner) HasProperty(key string) (bool, error) {
	_, ok, err := p.Property(key)
	return ok, err
}

func (p propertyOwner) SetProperty(key string, value any) error {
	raw, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("%s %s property %q: %w", p.kind, p.id, key, err)
	}
	_, err = p.tx.tx.ExecContext(p.tx.ctx, `
		INSERT INTO properties (owner_kind, owner_id, key, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (owner_kind, owner_id, key) DO UPDATE SET value = excluded.value
	`, p.kind, p.id, key, raw)
	if err != nil {
		return fmt.Errorf("%s %s set property %q: %w", p.kind, p.id, key, err)
	}
	return nil
}

func (p propertyOwner) RemoveProperty(key string) error {
	_, err := p.tx.tx.ExecContext(p.tx.ctx,
		"DELETE FROM properties WHERE owner_kind = ? AND owner_id = ? AND key = ?",
		p.kind, p.id, key)
	if err != nil {
		return fmt.Errorf("%s %s remove property %q: %w", p.kind, p.id, key, err)
	}
	return nil
}

func (p propertyOwner) PropertyKeys() ([]string, error) {
	rows, err := p.tx.tx.QueryContext(p.tx.ctx,
		"SELECT key FROM properties WHERE owner_kind = ? AND owner_id = ? ORDER BY key ASC",
		p.kind, p.id)
	if err != nil {
		return nil, fmt.Errorf("%s %s property keys: %w", p.kind, p.id, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan property key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

type node struct {
	propertyOwner
	labels []string
}

func (n *node) Labels() []string { return append([]string(nil), n.labels...) }

// Edges returns edges in creation order.
func (n *node) Edges(dir graph.Direction, types ...graph.EdgeType) ([]graph.Edge, error) {
	var (
		where []string
		args  []any
	)
	switch dir {
	case graph.Outgoing:
		where = append(where, "start_id = ?")
		args = append(args, n.id)
	case graph.Incoming:
		where = append(where, "end_id = ?")
		args = append(args, n.id)
	default:
		where = append(where, "(start_id = ? OR end_id = ?)")
		args = append(args, n.id, n.id)
	}
	if len(types) > 0 {
		marks := make([]string, len(types))
		for i, typ := range types {
			marks[i] = "?"
			args = append(args, string(typ))
		}
		where = append(where, "type IN ("+strings.Join(marks, ", ")+")")
	}

	query := "SELECT id, type, start_id, end_id FROM edges WHERE " +
		strings.Join(where, " AND ") + " ORDER BY seq ASC"
	rows, err := n.tx.tx.QueryContext(n.tx.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edges of %s: %w", n.id, err)
	}

	type row struct {
		id, typ, start, end string
	}
	var found []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.typ, &r.start, &r.end); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	rows.Close()

	// Endpoints are resolved after the cursor is closed: the pool holds a
	// single connection.
	result := make([]graph.Edge, 0, len(found))
	for _, r := range found {
		start, err := n.endpoint(r.start)
		if err != nil {
			return nil, err
		}
		end, err := n.endpoint(r.end)
		if err != nil {
			return nil, err
		}
		result = append(result, n.tx.newEdge(r.id, graph.EdgeType(r.typ), start, end))
	}
	return result, nil
}

func (n *node) endpoint(id string) (*node, error) {
	if id == n.id {
		return n, nil
	}
	other, err := n.tx.Node(id)
	if err != nil {
		return nil, err
	}
	return other.(*node), nil
}

// CreateEdgeTo inserts an edge from n to other. other must come from the
// same transaction.
func (n *node) CreateEdgeTo(other graph.Node, typ graph.EdgeType) (graph.Edge, error) {
	target, ok := other.(*node)
	if !ok || target.tx != n.tx {
		return nil, fmt.Errorf("edge target %v belongs to another transaction", other)
	}
	seq, err := n.tx.nextSeq("edges")
	if err != nil {
		return nil, err
	}
	id := n.tx.ids.Generate()
	if _, err := n.tx.tx.ExecContext(n.tx.ctx,
		"INSERT INTO edges (id, seq, type, start_id, end_id) VALUES (?, ?, ?, ?, ?)",
		id, seq, string(typ), n.id, target.id); err != nil {
		return nil, fmt.Errorf("insert edge: %w", err)
	}
	return n.tx.newEdge(id, typ, n, target), nil
}

type edge struct {
	propertyOwner
	typ   graph.EdgeType
	start *node
	end   *node
}

func (t *Tx) newEdge(id string, typ graph.EdgeType, start, end *node) *edge {
	return &edge{
		propertyOwner: propertyOwner{tx: t, kind: "edge", id: id},
		typ:           typ,
		start:         start,
		end:           end,
	}
}

func (e *edge) Type() graph.EdgeType  { return e.typ }
func (e *edge) StartNode() graph.Node { return e.start }
func (e *edge) EndNode() graph.Node   { return e.end }

func (e *edge) OtherNode(n graph.Node) graph.Node {
	if n != nil && n.ID() == e.start.id {
		return e.end
	}
	return e.start
}

// Delete removes the edge and its properties.
func (e *edge) Delete() error {
	if _, err := e.tx.tx.ExecContext(e.tx.ctx,
		"DELETE FROM properties WHERE owner_kind = 'edge' AND owner_id = ?", e.id); err != nil {
		return fmt.Errorf("delete properties of edge %s: %w", e.id, err)
	}
	res, err := e.tx.tx.ExecContext(e.tx.ctx, "DELETE FROM edges WHERE id = ?", e.id)
	if err != nil {
		return fmt.Errorf("delete edge %s: %w", e.id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete edge %s: %w", e.id, err)
	}
	if n == 0 {
		return fmt.Errorf("edge %s: %w", e.id, graph.ErrNotFound)
	}
	return nil
}
