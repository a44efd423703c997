package queryexpr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Expr is a node of a parsed query expression tree.
//
// This is a sealed interface - only types in this package implement it, so
// compilers can switch over the variants exhaustively.
type Expr interface {
	exprNode()
	String() string
}

// Field is a dotted member path. The first tuple is the candidate alias.
type Field struct {
	Tuples []string
}

// Literal is a constant. Value is nil, bool, int64, uint64, float64 or string.
type Literal struct {
	Value any
}

// Parameter is a value supplied at execution time. An empty Name marks a
// positional parameter.
type Parameter struct {
	Name string
}

// Dyadic is a binary operation.
type Dyadic struct {
	Op    Op
	Left  Expr
	Right Expr
}

// Not is logical negation.
type Not struct {
	Operand Expr
}

// Invoke is a function call; Target is nil for static calls such as
// aggregates.
type Invoke struct {
	Target Expr
	Name   string
	Args   []Expr
}

func (Field) exprNode()     {}
func (Literal) exprNode()   {}
func (Parameter) exprNode() {}
func (Dyadic) exprNode()    {}
func (Not) exprNode()       {}
func (Invoke) exprNode()    {}

// Path returns the tuples joined with ".".
func (f Field) Path() string { return strings.Join(f.Tuples, ".") }

func (f Field) String() string { return f.Path() }

func (l Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case float64:
		// Keep doubles distinct from ints so 1.0 and 1 never render alike.
		text := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(text, ".eEnN") {
			text += ".0"
		}
		return text
	case uint64:
		return strconv.FormatUint(v, 10) + "u"
	default:
		return fmt.Sprint(v)
	}
}

func (p Parameter) String() string {
	if p.Name == "" {
		return "param()"
	}
	return "params." + p.Name
}

func (d Dyadic) String() string {
	return "(" + d.Left.String() + " " + d.Op.String() + " " + d.Right.String() + ")"
}

func (n Not) String() string { return "!" + n.Operand.String() }

func (i Invoke) String() string {
	args := make([]string, len(i.Args))
	for k, a := range i.Args {
		args[k] = a.String()
	}
	call := i.Name + "(" + strings.Join(args, ", ") + ")"
	if i.Target != nil {
		return i.Target.String() + "." + call
	}
	return call
}

// Op is a binary operator.
type Op int

const (
	OpAnd Op = iota
	OpOr
	OpEq
	OpNe
	OpGt
	OpLt
	OpGe
	OpLe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpIn
)

var opSymbols = [...]string{
	OpAnd: "&&",
	OpOr:  "||",
	OpEq:  "==",
	OpNe:  "!=",
	OpGt:  ">",
	OpLt:  "<",
	OpGe:  ">=",
	OpLe:  "<=",
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpMod: "%",
	OpIn:  "in",
}

func (o Op) String() string {
	if int(o) >= 0 && int(o) < len(opSymbols) {
		return opSymbols[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Logical reports whether o combines boolean operands.
func (o Op) Logical() bool { return o == OpAnd || o == OpOr }

// Relational reports whether o is one of > < >= <=.
func (o Op) Relational() bool {
	switch o {
	case OpGt, OpLt, OpGe, OpLe:
		return true
	}
	return false
}

// OrderTerm is one ORDER BY entry.
type OrderTerm struct {
	Expr       Expr
	Descending bool
}

func (t OrderTerm) String() string {
	if t.Descending {
		return t.Expr.String() + " desc"
	}
	return t.Expr.String()
}

// NoRange is the RangeTo value meaning "unbounded".
const NoRange = math.MaxInt64

// Compilation is a parsed query: a candidate class, its alias and the
// filter, ordering and result trees.
type Compilation struct {
	Candidate  string
	Alias      string
	Subclasses bool
	Filter     Expr // nil means no filter
	Ordering   []OrderTerm
	Result     []Expr // empty means the candidate itself
	RangeFrom  int64
	RangeTo    int64 // NoRange when unbounded
}

// String renders the compilation deterministically; equal strings mean
// equal query structure.
func (c Compilation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "candidate=%s alias=%s subclasses=%t", c.Candidate, c.Alias, c.Subclasses)
	if c.Filter != nil {
		b.WriteString(" filter=" + c.Filter.String())
	}
	if len(c.Ordering) > 0 {
		terms := make([]string, len(c.Ordering))
		for i, t := range c.Ordering {
			terms[i] = t.String()
		}
		b.WriteString(" order=" + strings.Join(terms, ", "))
	}
	if len(c.Result) > 0 {
		terms := make([]string, len(c.Result))
		for i, r := range c.Result {
			terms[i] = r.String()
		}
		b.WriteString(" result=" + strings.Join(terms, ", "))
	}
	fmt.Fprintf(&b, " range=%d..%d", c.RangeFrom, c.RangeTo)
	return b.String()
}

// Parameters are the values bound to a query's parameters.
type Parameters struct {
	Named      map[string]any
	Positional []any
}
