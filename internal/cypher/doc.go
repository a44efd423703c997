// Package cypher compiles parsed query expressions into Cypher text.
//
// The QueryCompiler makes three passes over a queryexpr.Compilation: the
// filter, the result projection and the ordering. Each pass evaluates its
// expression trees post-order on an ExpressionStack and has its own
// completeness flag. Anything a pass cannot express (an unknown function, a
// path through a collection, a comparison between two fields) marks that
// clause incomplete instead of failing, and the caller evaluates that part
// in memory. Flags only ever go from true to false within one compile.
//
// Comparisons are normalised so the field is always on the left. When the
// literal is on the left the operator is mirrored, keeping the meaning:
//
//	age > 18   ->  p.age > 18
//	18 < age   ->  p.age > 18
//	18 >= age  ->  p.age <= 18
//
// The only hard error is a parameter without a bound value
// (ErrUnresolvedParameter). Substituting any parameter value makes the
// result non-reusable; literals written in the query text do not.
package cypher
