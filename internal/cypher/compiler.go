package cypher

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/roach88/ogm/internal/codec"
	"github.com/roach88/ogm/internal/meta"
	"github.com/roach88/ogm/internal/queryexpr"
)

// ErrUnresolvedParameter is returned when a query references a parameter
// that has no bound value. It is the only error that aborts a compile;
// every other problem marks the affected clause incomplete.
var ErrUnresolvedParameter = errors.New("unresolved parameter")

// ErrUnknownCandidate is returned when the candidate class is not mapped.
var ErrUnknownCandidate = errors.New("unknown candidate class")

// unsupportedError is a soft failure: the clause it occurs in is left to
// in-memory evaluation.
type unsupportedError struct {
	reason string
}

func (e *unsupportedError) Error() string { return e.reason }

func unsupported(format string, args ...any) error {
	return &unsupportedError{reason: fmt.Sprintf(format, args...)}
}

var aggregates = map[string]bool{"max": true, "min": true, "sum": true, "avg": true, "count": true}

// QueryCompiler translates a parsed compilation into Cypher.
//
// A compiler serves one Compile call; the parameter cursor, stack and
// reusability flag are per compile. It is not safe for concurrent use.
type QueryCompiler struct {
	repo   *meta.Repository
	codecs *codec.Registry
	params queryexpr.Parameters

	comp      queryexpr.Compilation
	candidate *meta.Class
	alias     string
	stack     ExpressionStack
	cursor    int
	reusable  bool
}

// NewQueryCompiler creates a compiler. codecs may be nil for the defaults.
func NewQueryCompiler(repo *meta.Repository, codecs *codec.Registry, params queryexpr.Parameters) *QueryCompiler {
	if codecs == nil {
		codecs = codec.NewRegistry()
	}
	return &QueryCompiler{repo: repo, codecs: codecs, params: params}
}

// Repository returns the mapping metadata the compiler resolves fields against.
func (c *QueryCompiler) Repository() *meta.Repository { return c.repo }

// Compile runs the filter, result and order passes and assembles the query.
func (c *QueryCompiler) Compile(comp queryexpr.Compilation) (*CompiledQuery, error) {
	c.comp = comp
	c.candidate = c.repo.Class(comp.Candidate)
	if c.candidate == nil {
		return nil, fmt.Errorf("compile %q: %w", comp.Candidate, ErrUnknownCandidate)
	}
	c.alias = comp.Alias
	if c.alias == "" {
		c.alias = DefaultAlias
	}
	c.cursor = 0
	c.reusable = true

	q := &CompiledQuery{
		Candidate:      comp.Candidate,
		Alias:          c.alias,
		Subclasses:     comp.Subclasses,
		FilterComplete: true,
		ResultComplete: true,
		OrderComplete:  true,
	}

	if err := c.compileFilter(q); err != nil {
		return nil, err
	}
	if err := c.compileResult(q); err != nil {
		return nil, err
	}
	if err := c.compileOrder(q); err != nil {
		return nil, err
	}
	c.compileRange(q)

	q.Reusable = c.reusable
	q.Text = c.assemble(q)
	return q, nil
}

// incomplete reports soft failures and passes hard ones through.
func (c *QueryCompiler) incomplete(clause string, err error, flag *bool) error {
	var soft *unsupportedError
	if !errors.As(err, &soft) {
		return err
	}
	*flag = false
	slog.Debug("clause incomplete", "clause", clause, "reason", soft.reason, "candidate", c.comp.Candidate)
	return nil
}

func (c *QueryCompiler) compileFilter(q *CompiledQuery) error {
	if c.comp.Filter == nil {
		return nil
	}
	c.stack.Reset()
	if err := c.evaluate(c.comp.Filter); err != nil {
		return c.incomplete("filter", err, &q.FilterComplete)
	}
	top, err := c.stack.Pop()
	if err != nil || c.stack.Len() != 0 {
		return c.incomplete("filter", unsupported("filter left %d values on the stack", c.stack.Len()+1), &q.FilterComplete)
	}
	b, ok := top.(BooleanExpr)
	if !ok {
		return c.incomplete("filter", unsupported("filter is not a predicate: %s", top.Text()), &q.FilterComplete)
	}
	q.Filter = b.Text()
	return nil
}

func (c *QueryCompiler) compileResult(q *CompiledQuery) error {
	var terms []string
	for i, r := range c.comp.Result {
		text, err := c.resultTerm(r)
		if err != nil {
			if err := c.incomplete("result", err, &q.ResultComplete); err != nil {
				return err
			}
			// Remaining terms still consume their parameters.
			for _, rest := range c.comp.Result[i+1:] {
				if err := c.skip(rest); err != nil {
					return err
				}
			}
			break
		}
		terms = append(terms, text)
	}
	if q.ResultComplete {
		q.Result = strings.Join(terms, ", ")
	}
	return nil
}

func (c *QueryCompiler) resultTerm(e queryexpr.Expr) (string, error) {
	switch x := e.(type) {
	case queryexpr.Field:
		f, err := c.resolveField(x)
		if err != nil {
			return "", err
		}
		return f.Text(), nil
	case queryexpr.Literal:
		l, err := c.literal(x.Value)
		if err != nil {
			return "", err
		}
		return l.Text(), nil
	case queryexpr.Parameter:
		l, err := c.parameter(x)
		if err != nil {
			return "", err
		}
		return l.Text(), nil
	case queryexpr.Invoke:
		if err := c.skip(x); err != nil {
			return "", err
		}
		a, err := c.aggregate(x)
		if err != nil {
			return "", err
		}
		return a.Text(), nil
	case queryexpr.Dyadic, queryexpr.Not:
		if err := c.skip(x); err != nil {
			return "", err
		}
		return "", unsupported("expression %s in result", x)
	}
	return "", unsupported("unknown expression %T", e)
}

func (c *QueryCompiler) aggregate(inv queryexpr.Invoke) (AggregateExpr, error) {
	name := strings.ToLower(inv.Name)
	if inv.Target != nil || !aggregates[name] {
		return AggregateExpr{}, unsupported("function %s in result", inv.Name)
	}
	if len(inv.Args) != 1 {
		return AggregateExpr{}, unsupported("%s takes exactly one argument", name)
	}
	f, ok := inv.Args[0].(queryexpr.Field)
	if !ok {
		return AggregateExpr{}, unsupported("%s argument must be a field", name)
	}
	arg, err := c.resolveField(f)
	if err != nil {
		return AggregateExpr{}, err
	}
	return AggregateExpr{Func: name, Arg: arg}, nil
}

func (c *QueryCompiler) compileOrder(q *CompiledQuery) error {
	var terms []string
	for _, t := range c.comp.Ordering {
		if !q.OrderComplete {
			if err := c.skip(t.Expr); err != nil {
				return err
			}
			continue
		}
		c.stack.Reset()
		if err := c.evaluate(t.Expr); err != nil {
			if err := c.incomplete("order", err, &q.OrderComplete); err != nil {
				return err
			}
			continue
		}
		top, err := c.stack.Pop()
		if err != nil {
			if err := c.incomplete("order", unsupported("empty order term"), &q.OrderComplete); err != nil {
				return err
			}
			continue
		}
		text := top.Text()
		if t.Descending {
			text += " DESC"
		}
		terms = append(terms, text)
	}
	if q.OrderComplete {
		q.Order = strings.Join(terms, ", ")
	}
	return nil
}

// compileRange applies the range only when filter and order run server-side.
func (c *QueryCompiler) compileRange(q *CompiledQuery) {
	if !q.FilterComplete || !q.OrderComplete {
		return
	}
	q.RangeComplete = true
	from, to := c.comp.RangeFrom, c.comp.RangeTo
	if to == 0 {
		to = queryexpr.NoRange
	}
	if from > 0 {
		q.RangeFrom = &from
	}
	if to != queryexpr.NoRange {
		q.RangeTo = &to
	}
}

// evaluate walks e in post order, leaving its graph expression on the stack.
func (c *QueryCompiler) evaluate(e queryexpr.Expr) error {
	switch x := e.(type) {
	case queryexpr.Field:
		f, err := c.resolveField(x)
		if err != nil {
			return err
		}
		c.stack.Push(f)
	case queryexpr.Literal:
		l, err := c.literal(x.Value)
		if err != nil {
			return err
		}
		c.stack.Push(l)
	case queryexpr.Parameter:
		l, err := c.parameter(x)
		if err != nil {
			return err
		}
		c.stack.Push(l)
	case queryexpr.Dyadic:
		return c.evaluateDyadic(x)
	case queryexpr.Not:
		if err := c.evaluate(x.Operand); err != nil {
			return err
		}
		operand, err := c.stack.Pop()
		if err != nil {
			return unsupported("%v", err)
		}
		b, ok := operand.(BooleanExpr)
		if !ok {
			return unsupported("NOT applied to %s", operand.Text())
		}
		c.stack.Push(BooleanExpr{Predicate: "NOT (" + b.Predicate + ")"})
	case queryexpr.Invoke:
		if err := c.skip(x); err != nil {
			return err
		}
		return unsupported("function %s", x.Name)
	default:
		return unsupported("unknown expression %T", e)
	}
	return nil
}

func (c *QueryCompiler) evaluateDyadic(d queryexpr.Dyadic) error {
	if err := c.evaluate(d.Left); err != nil {
		if serr := c.skip(d.Right); serr != nil {
			return serr
		}
		return err
	}
	if err := c.evaluate(d.Right); err != nil {
		return err
	}
	right, err := c.stack.Pop()
	if err != nil {
		return unsupported("%v", err)
	}
	left, err := c.stack.Pop()
	if err != nil {
		return unsupported("%v", err)
	}

	switch {
	case d.Op.Logical():
		lb, lok := left.(BooleanExpr)
		rb, rok := right.(BooleanExpr)
		if !lok || !rok {
			return unsupported("%s applied to non-boolean operands", d.Op)
		}
		word := " AND "
		if d.Op == queryexpr.OpOr {
			word = " OR "
		}
		c.stack.Push(BooleanExpr{Predicate: "(" + lb.Predicate + word + rb.Predicate + ")"})
		return nil
	case d.Op == queryexpr.OpEq, d.Op == queryexpr.OpNe, d.Op.Relational():
		b, err := comparison(d.Op, left, right)
		if err != nil {
			return err
		}
		c.stack.Push(b)
		return nil
	}
	return unsupported("operator %s", d.Op)
}

// mirror gives the operator that keeps a comparison true when its operands
// swap sides: 18 < age is age > 18.
func mirror(op queryexpr.Op) queryexpr.Op {
	switch op {
	case queryexpr.OpGt:
		return queryexpr.OpLt
	case queryexpr.OpLt:
		return queryexpr.OpGt
	case queryexpr.OpGe:
		return queryexpr.OpLe
	case queryexpr.OpLe:
		return queryexpr.OpGe
	}
	return op
}

var cypherOps = map[queryexpr.Op]string{
	queryexpr.OpEq: "=",
	queryexpr.OpNe: "<>",
	queryexpr.OpGt: ">",
	queryexpr.OpLt: "<",
	queryexpr.OpGe: ">=",
	queryexpr.OpLe: "<=",
}

// comparison accepts (field, literal) in either order and renders it with
// the field on the left.
func comparison(op queryexpr.Op, left, right GraphExpr) (BooleanExpr, error) {
	f, fok := left.(FieldExpr)
	l, lok := right.(LiteralExpr)
	if !fok || !lok {
		f, fok = right.(FieldExpr)
		l, lok = left.(LiteralExpr)
		if !fok || !lok {
			return BooleanExpr{}, unsupported("comparison %s %s %s", left.Text(), op, right.Text())
		}
		op = mirror(op)
	}

	if l.Value == nil {
		switch op {
		case queryexpr.OpEq:
			return BooleanExpr{Predicate: f.Text() + " IS NULL"}, nil
		case queryexpr.OpNe:
			return BooleanExpr{Predicate: f.Text() + " IS NOT NULL"}, nil
		}
		return BooleanExpr{}, unsupported("null in %s comparison", op)
	}
	return BooleanExpr{Predicate: f.Text() + " " + cypherOps[op] + " " + l.Text()}, nil
}

// resolveField walks the candidate's metadata along the field path.
func (c *QueryCompiler) resolveField(f queryexpr.Field) (FieldExpr, error) {
	tuples := f.Tuples
	if len(tuples) > 0 && tuples[0] == c.alias {
		tuples = tuples[1:]
	}
	if len(tuples) == 0 {
		return FieldExpr{Alias: c.alias}, nil
	}

	cls := c.candidate
	var chain []*meta.Member
	for i, name := range tuples {
		m := cls.Member(name)
		if m == nil {
			return FieldExpr{}, unsupported("%s has no member %q", cls.Name, name)
		}
		last := i == len(tuples)-1

		switch {
		case m.Relation == meta.RelationNone:
			if !m.Storable() {
				return FieldExpr{}, unsupported("%s is not persisted", m)
			}
			if !last {
				return FieldExpr{}, unsupported("%s is not navigable", m)
			}
			return FieldExpr{Alias: c.alias, Property: meta.PropertyName(chain, m)}, nil
		case meta.IsEmbedded(chain, m) && m.Relation.SingleValued():
			if last {
				return FieldExpr{}, unsupported("embedded object %s used as a value", m)
			}
			next := c.repo.Class(m.Type)
			if next == nil {
				return FieldExpr{}, unsupported("no metadata for %s", m.Type)
			}
			cls = next
			chain = append(chain, m)
		case m.Relation.SingleValued() && last:
			return FieldExpr{Alias: c.alias, Property: m.Name}, nil
		default:
			return FieldExpr{}, unsupported("%s (%s) cannot be navigated", m, m.Relation)
		}
	}
	return FieldExpr{}, unsupported("path %s does not end in a value", f)
}

func (c *QueryCompiler) literal(v any) (LiteralExpr, error) {
	stored, err := c.codecs.StoredValue(v)
	if err != nil {
		return LiteralExpr{}, unsupported("literal %v: %v", v, err)
	}
	// Cypher has no literal syntax for NaN or infinities.
	if f, ok := stored.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return LiteralExpr{}, unsupported("non-finite literal %v", f)
	}
	return LiteralExpr{Value: stored}, nil
}

// parameter resolves a named or positional parameter. Substitution makes
// the compiled query specific to these values.
func (c *QueryCompiler) parameter(p queryexpr.Parameter) (LiteralExpr, error) {
	var v any
	if p.Name == "" {
		if c.cursor >= len(c.params.Positional) {
			return LiteralExpr{}, fmt.Errorf("positional parameter %d: %w", c.cursor, ErrUnresolvedParameter)
		}
		v = c.params.Positional[c.cursor]
		c.cursor++
	} else {
		var ok bool
		v, ok = c.params.Named[p.Name]
		if !ok {
			return LiteralExpr{}, fmt.Errorf("parameter %q: %w", p.Name, ErrUnresolvedParameter)
		}
	}
	c.reusable = false
	return c.literal(v)
}

// skip consumes the parameters of a subtree that will not be compiled, so
// positional parameters stay aligned and missing ones are still reported.
func (c *QueryCompiler) skip(e queryexpr.Expr) error {
	switch x := e.(type) {
	case queryexpr.Parameter:
		_, err := c.parameter(x)
		var soft *unsupportedError
		if errors.As(err, &soft) {
			return nil
		}
		return err
	case queryexpr.Dyadic:
		if err := c.skip(x.Left); err != nil {
			return err
		}
		return c.skip(x.Right)
	case queryexpr.Not:
		return c.skip(x.Operand)
	case queryexpr.Invoke:
		if x.Target != nil {
			if err := c.skip(x.Target); err != nil {
				return err
			}
		}
		for _, a := range x.Args {
			if err := c.skip(a); err != nil {
				return err
			}
		}
	}
	return nil
}
