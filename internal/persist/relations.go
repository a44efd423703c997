package persist

import (
	"fmt"
	"log/slog"

	"github.com/roach88/ogm/internal/graph"
	"github.com/roach88/ogm/internal/meta"
)

// Elements are the targets of one multi-valued field, in iteration order.
// Keys and Values, when set, run parallel to Nodes and hold the scalar side
// of a map whose other side is persistent.
type Elements struct {
	Nodes   []graph.Node
	Ordered bool
	Keys    []any
	Values  []any
}

// RelationshipSynchronizer maintains the edges of relation fields for one
// owning node. Update mode replaces rather than diffs: single-valued edges
// pointing elsewhere are deleted (the old target is left in place) and
// multi-valued edges are deleted and recreated in full.
type RelationshipSynchronizer struct {
	node   graph.Node
	insert bool
}

// NewRelationshipSynchronizer creates a synchronizer for node.
func NewRelationshipSynchronizer(node graph.Node, insert bool) *RelationshipSynchronizer {
	return &RelationshipSynchronizer{node: node, insert: insert}
}

// OwnsSingle reports whether m's side creates the edge of a single-valued relation.
func OwnsSingle(m *meta.Member) bool {
	return m.Relation != meta.ManyToOneBi && m.MappedBy == ""
}

// OwnsMulti reports whether m's side creates the edges of a multi-valued relation.
func OwnsMulti(m *meta.Member) bool {
	switch m.Relation {
	case meta.OneToManyUni, meta.OneToManyBi:
		return true
	case meta.ManyToManyBi:
		return m.MappedBy == ""
	}
	return false
}

// SyncSingle brings the SINGLE_VALUED edge for m in line with target,
// which may be nil.
func (s *RelationshipSynchronizer) SyncSingle(m *meta.Member, target graph.Node) error {
	if !OwnsSingle(m) {
		return nil
	}

	kept := false
	if !s.insert {
		edges, err := graph.FieldEdges(s.node, graph.SingleValued, m.Name)
		if err != nil {
			return fmt.Errorf("sync %s: %w", m, err)
		}
		for _, e := range edges {
			if !kept && target != nil && graph.SameNode(e.OtherNode(s.node), target) {
				kept = true
				continue
			}
			if err := e.Delete(); err != nil {
				return fmt.Errorf("sync %s: delete edge: %w", m, err)
			}
			slog.Debug("edge deleted", "field", m.Name, "edge_type", graph.SingleValued)
		}
	}

	if kept || target == nil {
		return nil
	}
	_, err := s.createEdge(graph.SingleValued, m, target)
	return err
}

// SyncMulti writes one MULTI_VALUED edge per element. On update every
// existing edge for m is deleted first.
func (s *RelationshipSynchronizer) SyncMulti(m *meta.Member, elems Elements) error {
	if !OwnsMulti(m) {
		return nil
	}

	if !s.insert {
		edges, err := graph.FieldEdges(s.node, graph.MultiValued, m.Name)
		if err != nil {
			return fmt.Errorf("sync %s: %w", m, err)
		}
		for _, e := range edges {
			if err := e.Delete(); err != nil {
				return fmt.Errorf("sync %s: delete edge: %w", m, err)
			}
		}
		if len(edges) > 0 {
			slog.Debug("edges deleted", "field", m.Name, "edge_type", graph.MultiValued, "count", len(edges))
		}
	}

	for i, target := range elems.Nodes {
		e, err := s.createEdge(graph.MultiValued, m, target)
		if err != nil {
			return err
		}
		if elems.Ordered {
			if err := e.SetProperty(graph.PropIndex, int64(i)); err != nil {
				return fmt.Errorf("sync %s: %w", m, err)
			}
		}
		if elems.Keys != nil && m.KeyMappedBy == "" {
			if err := e.SetProperty(graph.PropMapKey, elems.Keys[i]); err != nil {
				return fmt.Errorf("sync %s: map key: %w", m, err)
			}
		}
		if elems.Values != nil && m.ValueMappedBy == "" {
			if err := e.SetProperty(graph.PropMapValue, elems.Values[i]); err != nil {
				return fmt.Errorf("sync %s: map value: %w", m, err)
			}
		}
	}
	return nil
}

func (s *RelationshipSynchronizer) createEdge(typ graph.EdgeType, m *meta.Member, target graph.Node) (graph.Edge, error) {
	e, err := s.node.CreateEdgeTo(target, typ)
	if err != nil {
		return nil, fmt.Errorf("sync %s: create edge: %w", m, err)
	}
	if err := e.SetProperty(graph.PropFieldName, m.Name); err != nil {
		return nil, fmt.Errorf("sync %s: %w", m, err)
	}
	if m.Relation.Bidirectional() && m.Related() != nil {
		if err := e.SetProperty(graph.PropReverseFieldName, m.Related().Name); err != nil {
			return nil, fmt.Errorf("sync %s: %w", m, err)
		}
	}
	slog.Debug("edge created", "field", m.Name, "edge_type", typ)
	return e, nil
}
