// Package graph defines the property-graph abstraction objects are written to.
//
// Nodes and edges are both PropertyContainers. Edges produced by the mapping
// layer are always one of two types, SingleValued or MultiValued, and carry
// the field name they represent in PropFieldName so that several fields
// linking the same two classes can be told apart.
package graph

import (
	"errors"
	"fmt"
)

// EdgeType tags an edge with the kind of field it represents.
type EdgeType string

const (
	SingleValued EdgeType = "SINGLE_VALUED"
	MultiValued  EdgeType = "MULTI_VALUED"
)

// Edge property keys.
const (
	PropFieldName        = "field-name"
	PropReverseFieldName = "reverse-field-name"
	PropIndex            = "index"
	PropMapKey           = "map-key"
	PropMapValue         = "map-value"
)

// Direction selects edges relative to a node.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// ErrNullProperty is returned when a nil value is written; graph
// properties cannot hold null.
var ErrNullProperty = errors.New("graph properties cannot be null")

// ErrNotFound is returned when a node or edge does not exist.
var ErrNotFound = errors.New("not found")

// PropertyContainer is a node's or edge's key/value attribute store.
// Values are bool, int64, float64 or string.
type PropertyContainer interface {
	Property(key string) (any, bool, error)
	HasProperty(key string) (bool, error)
	SetProperty(key string, value any) error
	RemoveProperty(key string) error
	PropertyKeys() ([]string, error)
}

// Node is a vertex with labels and typed edges.
type Node interface {
	PropertyContainer
	ID() string
	Labels() []string
	// Edges returns edges in creation order. No types means all types.
	Edges(dir Direction, types ...EdgeType) ([]Edge, error)
	CreateEdgeTo(other Node, typ EdgeType) (Edge, error)
}

// Edge is a directed, typed connection between two nodes.
type Edge interface {
	PropertyContainer
	ID() string
	Type() EdgeType
	StartNode() Node
	EndNode() Node
	OtherNode(n Node) Node
	Delete() error
}

// Graph creates and finds nodes.
type Graph interface {
	CreateNode(labels ...string) (Node, error)
	Node(id string) (Node, error)
}

// CheckValue validates that v can be stored as a property and normalises
// integer and float widths.
func CheckValue(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, ErrNullProperty
	case bool, int64, float64, string:
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case float32:
		return float64(val), nil
	default:
		return nil, fmt.Errorf("unsupported property value type %T", v)
	}
}

// FieldEdges returns the outgoing edges of typ whose field-name property equals field.
func FieldEdges(n Node, typ EdgeType, field string) ([]Edge, error) {
	edges, err := n.Edges(Outgoing, typ)
	if err != nil {
		return nil, err
	}
	var out []Edge
	for _, e := range edges {
		v, ok, err := e.Property(PropFieldName)
		if err != nil {
			return nil, err
		}
		if ok && v == field {
			out = append(out, e)
		}
	}
	return out, nil
}

// SameNode reports whether a and b refer to the same node.
func SameNode(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID() == b.ID()
}
