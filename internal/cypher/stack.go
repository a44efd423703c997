package cypher

import (
	"errors"
	"strings"
)

// GraphExpr is a compiled expression fragment.
//
// This is a sealed interface - only types in this package implement it.
type GraphExpr interface {
	graphExpr()
	Text() string
}

// FieldExpr is a property reference on the candidate (Alias.Property) or
// the candidate node itself (empty Property). A single-valued relation at
// the end of a path is addressed by its member name on the candidate.
type FieldExpr struct {
	Alias    string
	Property string
}

// LiteralExpr is a constant already converted to a storable value.
type LiteralExpr struct {
	Value any
}

// BooleanExpr is a rendered predicate.
type BooleanExpr struct {
	Predicate string
}

// AggregateExpr is an aggregate function over one field.
type AggregateExpr struct {
	Func string // lower case: max, min, sum, avg, count
	Arg  FieldExpr
}

func (FieldExpr) graphExpr()     {}
func (LiteralExpr) graphExpr()   {}
func (BooleanExpr) graphExpr()   {}
func (AggregateExpr) graphExpr() {}

func (f FieldExpr) Text() string {
	if f.Property == "" {
		return Identifier(f.Alias)
	}
	return Identifier(f.Alias) + "." + Identifier(f.Property)
}

func (l LiteralExpr) Text() string { return Literal(l.Value) }

func (b BooleanExpr) Text() string { return b.Predicate }

func (a AggregateExpr) Text() string {
	return strings.ToLower(a.Func) + "(" + a.Arg.Text() + ")"
}

// ErrStackEmpty is returned by Pop and Peek on an empty stack.
var ErrStackEmpty = errors.New("expression stack is empty")

// ExpressionStack is the operand stack of the post-order evaluator.
type ExpressionStack struct {
	items []GraphExpr
}

// Push adds e to the top of the stack.
func (s *ExpressionStack) Push(e GraphExpr) {
	s.items = append(s.items, e)
}

// Pop removes and returns the top of the stack.
func (s *ExpressionStack) Pop() (GraphExpr, error) {
	if len(s.items) == 0 {
		return nil, ErrStackEmpty
	}
	e := s.items[len(s.items)-1]
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]
	return e, nil
}

// Peek returns the top of the stack without removing it.
func (s *ExpressionStack) Peek() (GraphExpr, error) {
	if len(s.items) == 0 {
		return nil, ErrStackEmpty
	}
	return s.items[len(s.items)-1], nil
}

// Len returns the number of items on the stack.
func (s *ExpressionStack) Len() int { return len(s.items) }

// Reset empties the stack.
func (s *ExpressionStack) Reset() {
	clear(s.items)
	s.items = s.items[:0]
}
