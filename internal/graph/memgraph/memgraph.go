// Package memgraph is an in-memory graph.Graph.
//
// It keeps everything in maps guarded by one mutex and returns edges in
// creation order, which makes it the backend of choice for tests and
// dry runs.
package memgraph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/ogm/internal/graph"
)

// Graph is an in-memory property graph.
type Graph struct {
	mu    sync.Mutex
	ids   graph.IDGenerator
	seq   int64
	nodes map[string]*node
	edges map[string]*edge
}

// New creates an empty graph. A nil generator defaults to UUIDv7.
func New(ids graph.IDGenerator) *Graph {
	if ids == nil {
		ids = graph.UUIDv7Generator{}
	}
	return &Graph{
		ids:   ids,
		nodes: make(map[string]*node),
		edges: make(map[string]*edge),
	}
}

type props map[string]any

type node struct {
	g      *Graph
	id     string
	labels []string
	props  props
}

type edge struct {
	g     *Graph
	id    string
	seq   int64
	typ   graph.EdgeType
	start *node
	end   *node
	props props
}

// CreateNode adds a node with the given labels.
func (g *Graph) CreateNode(labels ...string) (graph.Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := &node{g: g, id: g.ids.Generate(), labels: append([]string(nil), labels...), props: props{}}
	if _, dup := g.nodes[n.id]; dup {
		return nil, fmt.Errorf("duplicate node id %q", n.id)
	}
	g.nodes[n.id] = n
	return n, nil
}

// Node finds a node by ID.
func (g *Graph) Node(id string) (graph.Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, graph.ErrNotFound)
	}
	return n, nil
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.edges)
}

func (p props) get(key string) (any, bool) {
	v, ok := p[key]
	return v, ok
}

func (p props) keys() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (n *node) ID() string { return n.id }
func (n *node) Labels() []string { return append([]string(nil), n.labels...) }

func (n *node) Property(key string) (any, bool, error) {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	v, ok := n.props.get(key)
	return v, ok, nil
}

func (n *node) HasProperty(key string) (bool, error) {
	_, ok, err := n.Property(key)
	return ok, err
}

func (n *node) SetProperty(key string, value any) error {
	v, err := graph.CheckValue(value)
	if err != nil {
		return fmt.Errorf("node %s property %q: %w", n.id, key, err)
	}
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	n.props[key] = v
	return nil
}

func (n *node) RemoveProperty(key string) error {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	delete(n.props, key)
	return nil
}

func (n *node) PropertyKeys() ([]string, error) {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	return n.props.keys(), nil
}

func (n *node) Edges(dir graph.Direction, types ...graph.EdgeType) ([]graph.Edge, error) {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()

	var matched []*edge
	for _, e := range n.g.edges {
		if !typeMatches(e.typ, types) {
			continue
		}
		out := e.start == n
		in := e.end == n
		switch dir {
		case graph.Outgoing:
			if !out {
				continue
			}
		case graph.Incoming:
			if !in {
				continue
			}
		default:
			if !out && !in {
				continue
			}
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	result := make([]graph.Edge, len(matched))
	for i, e := range matched {
		result[i] = e
	}
	return result, nil
}

func typeMatches(t graph.EdgeType, types []graph.EdgeType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

func (n *node) CreateEdgeTo(other graph.Node, typ graph.EdgeType) (graph.Edge, error) {
	target, ok := other.(*node)
	if !ok || target.g != n.g {
		return nil, fmt.Errorf("edge target %v belongs to another graph", other)
	}
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	n.g.seq++
	e := &edge{g: n.g, id: n.g.ids.Generate(), seq: n.g.seq, typ: typ, start: n, end: target, props: props{}}
	n.g.edges[e.id] = e
	return e, nil
}

func (e *edge) ID() string { return e.id }
func (e *edge) Type() graph.EdgeType { return e.typ }
func (e *edge) StartNode() graph.Node { return e.start }
func (e *edge) EndNode() graph.Node { return e.end }

func (e *edge) OtherNode(n graph.Node) graph.Node {
	if n != nil && n.ID() == e.start.id {
		return e.end
	}
	return e.start
}

func (e *edge) Delete() error {
	e.g.mu.Lock()
	defer e.g.mu.Unlock()
	if _, ok := e.g.edges[e.id]; !ok {
		return fmt.Errorf("edge %s: %w", e.id, graph.ErrNotFound)
	}
	delete(e.g.edges, e.id)
	return nil
}

func (e *edge) Property(key string) (any, bool, error) {
	e.g.mu.Lock()
	defer e.g.mu.Unlock()
	v, ok := e.props.get(key)
	return v, ok, nil
}

func (e *edge) HasProperty(key string) (bool, error) {
	_, ok, err := e.Property(key)
	return ok, err
}

func (e *edge) SetProperty(key string, value any) error {
	v, err := graph.CheckValue(value)
	if err != nil {
		return fmt.Errorf("edge %s property %q: %w", e.id, key, err)
	}
	e.g.mu.Lock()
	defer e.g.mu.Unlock()
	e.props[key] = v
	return nil
}

func (e *edge) RemoveProperty(key string) error {
	e.g.mu.Lock()
	defer e.g.mu.Unlock()
	delete(e.props, key)
	return nil
}

func (e *edge) PropertyKeys() ([]string, error) {
	e.g.mu.Lock()
	defer e.g.mu.Unlock()
	return e.props.keys(), nil
}
