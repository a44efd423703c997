package queryexpr

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	celast "github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// Query text uses CEL syntax. Two identifiers are reserved:
//
//	params.<name>   named parameter
//	param()         next positional parameter
const (
	ParamsIdent  = "params"
	PositionalFn = "param"
)

// ErrSyntax wraps every parse failure.
var ErrSyntax = errors.New("query syntax")

var (
	envOnce sync.Once
	env     *cel.Env
	envErr  error
)

func parserEnv() (*cel.Env, error) {
	envOnce.Do(func() {
		env, envErr = cel.NewEnv()
	})
	return env, envErr
}

var binaryOps = map[string]Op{
	operators.LogicalAnd:    OpAnd,
	operators.LogicalOr:     OpOr,
	operators.Equals:        OpEq,
	operators.NotEquals:     OpNe,
	operators.Greater:       OpGt,
	operators.Less:          OpLt,
	operators.GreaterEquals: OpGe,
	operators.LessEquals:    OpLe,
	operators.Add:           OpAdd,
	operators.Subtract:      OpSub,
	operators.Multiply:      OpMul,
	operators.Divide:        OpDiv,
	operators.Modulo:        OpMod,
	operators.In:            OpIn,
}

// ParseFilter parses a boolean filter expression. Field paths that do not
// start with alias are qualified with it.
func ParseFilter(text, alias string) (Expr, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return parseExpr(text, alias)
}

// ParseOrdering parses a comma-separated list of order terms, each an
// expression optionally followed by "asc" or "desc".
func ParseOrdering(text, alias string) ([]OrderTerm, error) {
	var terms []OrderTerm
	for _, part := range splitTopLevel(text) {
		desc := false
		fields := strings.Fields(part)
		if n := len(fields); n > 1 {
			switch strings.ToLower(fields[n-1]) {
			case "desc", "descending":
				desc = true
				part = strings.Join(fields[:n-1], " ")
			case "asc", "ascending":
				part = strings.Join(fields[:n-1], " ")
			}
		}
		e, err := parseExpr(part, alias)
		if err != nil {
			return nil, err
		}
		terms = append(terms, OrderTerm{Expr: e, Descending: desc})
	}
	return terms, nil
}

// ParseResult parses a comma-separated projection list.
func ParseResult(text, alias string) ([]Expr, error) {
	var out []Expr
	for _, part := range splitTopLevel(text) {
		e, err := parseExpr(part, alias)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func parseExpr(text, alias string) (Expr, error) {
	e, err := parserEnv()
	if err != nil {
		return nil, fmt.Errorf("cel environment: %w", err)
	}
	ast, iss := e.Parse(text)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrSyntax, text, iss.Err())
	}
	return convert(ast.NativeRep().Expr(), alias)
}

func convert(e celast.Expr, alias string) (Expr, error) {
	switch e.Kind() {
	case celast.LiteralKind:
		return convertLiteral(e.AsLiteral())
	case celast.IdentKind:
		return qualify([]string{e.AsIdent()}, alias), nil
	case celast.SelectKind:
		return convertSelect(e, alias)
	case celast.CallKind:
		return convertCall(e.AsCall(), alias)
	}
	return nil, fmt.Errorf("%w: unsupported expression kind %v", ErrSyntax, e.Kind())
}

func convertLiteral(v ref.Val) (Expr, error) {
	switch val := v.(type) {
	case types.Null:
		return Literal{Value: nil}, nil
	case types.Bool:
		return Literal{Value: bool(val)}, nil
	case types.Int:
		return Literal{Value: int64(val)}, nil
	case types.Uint:
		return Literal{Value: uint64(val)}, nil
	case types.Double:
		return Literal{Value: float64(val)}, nil
	case types.String:
		return Literal{Value: string(val)}, nil
	}
	return nil, fmt.Errorf("%w: unsupported literal type %s", ErrSyntax, v.Type())
}

func convertSelect(e celast.Expr, alias string) (Expr, error) {
	var tuples []string
	cur := e
	for cur.Kind() == celast.SelectKind {
		sel := cur.AsSelect()
		if sel.IsTestOnly() {
			return nil, fmt.Errorf("%w: has() is not supported", ErrSyntax)
		}
		tuples = append(tuples, sel.FieldName())
		cur = sel.Operand()
	}
	if cur.Kind() != celast.IdentKind {
		return nil, fmt.Errorf("%w: field access on a computed value", ErrSyntax)
	}
	tuples = append(tuples, cur.AsIdent())
	for i, j := 0, len(tuples)-1; i < j; i, j = i+1, j-1 {
		tuples[i], tuples[j] = tuples[j], tuples[i]
	}

	if tuples[0] == ParamsIdent {
		if len(tuples) != 2 {
			return nil, fmt.Errorf("%w: parameter reference %s", ErrSyntax, strings.Join(tuples, "."))
		}
		return Parameter{Name: tuples[1]}, nil
	}
	return qualify(tuples, alias), nil
}

func qualify(tuples []string, alias string) Field {
	if alias == "" || tuples[0] == alias {
		return Field{Tuples: tuples}
	}
	return Field{Tuples: append([]string{alias}, tuples...)}
}

func convertCall(call celast.CallExpr, alias string) (Expr, error) {
	fn := call.FunctionName()
	args := call.Args()

	if op, ok := binaryOps[fn]; ok && len(args) == 2 {
		l, err := convert(args[0], alias)
		if err != nil {
			return nil, err
		}
		r, err := convert(args[1], alias)
		if err != nil {
			return nil, err
		}
		return Dyadic{Op: op, Left: l, Right: r}, nil
	}

	switch fn {
	case operators.LogicalNot:
		operand, err := convert(args[0], alias)
		if err != nil {
			return nil, err
		}
		return Not{Operand: operand}, nil
	case operators.Negate:
		operand, err := convert(args[0], alias)
		if err != nil {
			return nil, err
		}
		if lit, ok := operand.(Literal); ok {
			switch v := lit.Value.(type) {
			case int64:
				return Literal{Value: -v}, nil
			case float64:
				return Literal{Value: -v}, nil
			}
		}
		return nil, fmt.Errorf("%w: negation of %s", ErrSyntax, operand)
	case operators.Conditional, operators.Index:
		return nil, fmt.Errorf("%w: operator %s is not supported", ErrSyntax, fn)
	case PositionalFn:
		if !call.IsMemberFunction() && len(args) == 0 {
			return Parameter{}, nil
		}
	}

	inv := Invoke{Name: fn}
	if call.IsMemberFunction() {
		target, err := convert(call.Target(), alias)
		if err != nil {
			return nil, err
		}
		inv.Target = target
	}
	for _, a := range args {
		x, err := convert(a, alias)
		if err != nil {
			return nil, err
		}
		inv.Args = append(inv.Args, x)
	}
	return inv, nil
}

// splitTopLevel splits text on commas outside parentheses and quotes.
func splitTopLevel(text string) []string {
	var parts []string
	depth, start := 0, 0
	var quote rune
	for i, r := range text {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			depth--
		case r == ',' && depth == 0:
			parts = appendPart(parts, text[start:i])
			start = i + 1
		}
	}
	return appendPart(parts, text[start:])
}

func appendPart(parts []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		parts = append(parts, s)
	}
	return parts
}
