// Package session is a minimal persistence context over a graph.Graph.
//
// A Session tracks which objects already have a node, cascades persistence
// to related objects reached through relation fields, and drives one
// persist.FieldPersister per object write. It does no caching beyond
// identity and never reads objects back.
package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/ogm/internal/codec"
	"github.com/roach88/ogm/internal/graph"
	"github.com/roach88/ogm/internal/meta"
	"github.com/roach88/ogm/internal/persist"
)

// ErrNotManaged is returned for objects the session has not persisted.
var ErrNotManaged = errors.New("object not managed by session")

// Object is a generic domain object.
//
// ID is an application identity: two Objects with the same Class and a
// non-empty ID are the same object to a Session. Fields maps member names
// to values; related objects are *Object values, collections are slices
// and maps of them.
type Object struct {
	Class  string
	ID     string
	Fields map[string]any
}

// ClassName implements meta.Named.
func (o *Object) ClassName() string { return o.Class }

func (o *Object) String() string {
	if o.ID == "" {
		return o.Class
	}
	return o.Class + "#" + o.ID
}

type handle struct {
	cls          *meta.Class
	obj          *Object
	node         graph.Node
	materialized map[string]bool
}

func (h *handle) Class() *meta.Class { return h.cls }

func (h *handle) FieldValue(member string) any { return h.obj.Fields[member] }

func (h *handle) MarkMaterialized(member string) { h.materialized[member] = true }

type identity struct {
	class, id string
}

// Session implements persist.Context.
//
// A Session is not safe for concurrent use.
type Session struct {
	g      graph.Graph
	repo   *meta.Repository
	codecs *codec.Registry

	byPtr   map[*Object]*handle
	byID    map[identity]*handle
	managed int
}

var _ persist.Context = (*Session)(nil)

// New creates a session writing to g. A nil codecs uses the defaults.
func New(g graph.Graph, repo *meta.Repository, codecs *codec.Registry) *Session {
	if codecs == nil {
		codecs = codec.NewRegistry()
	}
	return &Session{
		g:      g,
		repo:   repo,
		codecs: codecs,
		byPtr:  make(map[*Object]*handle),
		byID:   make(map[identity]*handle),
	}
}

func (s *Session) Repository() *meta.Repository { return s.repo }

func (s *Session) Codecs() *codec.Registry { return s.codecs }

// Save inserts o if the session has not seen it, otherwise rewrites its
// node from the current field values.
func (s *Session) Save(o *Object) (graph.Node, error) {
	if h := s.lookup(o); h != nil {
		h.obj = o
		clear(h.materialized)
		slog.Debug("updating object", "object", o.String(), "node", h.node.ID())
		if err := persist.NewFieldPersister(s, h, h.node, false).StoreFields(); err != nil {
			return nil, fmt.Errorf("update %s: %w", o, err)
		}
		return h.node, nil
	}
	h, err := s.insert(o)
	if err != nil {
		return nil, err
	}
	return h.node, nil
}

// Attach binds o to an existing node so that the next Save updates it.
func (s *Session) Attach(o *Object, nodeID string) error {
	cls, err := s.repo.ClassOf(o)
	if err != nil {
		return err
	}
	n, err := s.g.Node(nodeID)
	if err != nil {
		return fmt.Errorf("attach %s: %w", o, err)
	}
	s.register(&handle{cls: cls, obj: o, node: n, materialized: map[string]bool{}})
	return nil
}

// Node returns the node o is stored in.
func (s *Session) Node(o *Object) (graph.Node, error) {
	h := s.lookup(o)
	if h == nil {
		return nil, fmt.Errorf("%s: %w", o, ErrNotManaged)
	}
	return h.node, nil
}

// Materialized reports whether the member of o was written by the last save.
func (s *Session) Materialized(o *Object, member string) bool {
	h := s.lookup(o)
	return h != nil && h.materialized[member]
}

// Len returns the number of managed objects.
func (s *Session) Len() int { return s.managed }

// PersistIfNew implements persist.Context.
func (s *Session) PersistIfNew(value any) (persist.ObjectHandle, error) {
	o, ok := value.(*Object)
	if !ok {
		return nil, fmt.Errorf("cannot persist %T: not a session object", value)
	}
	if h := s.lookup(o); h != nil {
		return h, nil
	}
	return s.insert(o)
}

// NodeFor implements persist.Context.
func (s *Session) NodeFor(h persist.ObjectHandle) (graph.Node, error) {
	sh, ok := h.(*handle)
	if !ok || sh.node == nil {
		return nil, fmt.Errorf("%s: %w", h.Class().Name, ErrNotManaged)
	}
	return sh.node, nil
}

// EmbeddedHandle implements persist.Context. Embedded objects share the
// owner's node and are not registered.
func (s *Session) EmbeddedHandle(value any, _ persist.ObjectHandle, _ *meta.Member) (persist.ObjectHandle, error) {
	o, ok := value.(*Object)
	if !ok {
		return nil, fmt.Errorf("cannot embed %T: not a session object", value)
	}
	cls, err := s.repo.ClassOf(o)
	if err != nil {
		return nil, err
	}
	return &handle{cls: cls, obj: o, materialized: map[string]bool{}}, nil
}

// insert creates the node and registers o before writing its fields, so
// that a relation cycle leading back to o finds it persisted.
func (s *Session) insert(o *Object) (*handle, error) {
	cls, err := s.repo.ClassOf(o)
	if err != nil {
		return nil, err
	}
	if cls.MappedAsEdge {
		return nil, fmt.Errorf("class %s is mapped as an edge and has no node of its own", cls.Name)
	}
	n, err := s.g.CreateNode(cls.Labels()...)
	if err != nil {
		return nil, fmt.Errorf("create node for %s: %w", o, err)
	}
	h := &handle{cls: cls, obj: o, node: n, materialized: map[string]bool{}}
	s.register(h)

	slog.Debug("inserting object", "object", o.String(), "node", n.ID())
	if err := persist.NewFieldPersister(s, h, n, true).StoreFields(); err != nil {
		return nil, fmt.Errorf("insert %s: %w", o, err)
	}
	return h, nil
}

func (s *Session) register(h *handle) {
	if _, seen := s.byPtr[h.obj]; !seen {
		s.managed++
	}
	s.byPtr[h.obj] = h
	if h.obj.ID != "" {
		s.byID[identity{h.cls.Name, h.obj.ID}] = h
	}
}

func (s *Session) lookup(o *Object) *handle {
	if h, ok := s.byPtr[o]; ok {
		return h
	}
	if o.ID == "" {
		return nil
	}
	if h, ok := s.byID[identity{o.Class, o.ID}]; ok {
		s.byPtr[o] = h
		return h
	}
	return nil
}
