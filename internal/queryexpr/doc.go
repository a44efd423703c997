// Package queryexpr holds parsed query expressions: a candidate class, an
// alias, and filter, ordering and result trees built from a small sealed set
// of node types.
//
// Text is parsed with the CEL parser (no type checking), so the surface
// syntax is CEL:
//
//	p.status == "ACTIVE" && p.score >= params.min
//	p.address.city != null || !(p.score < param())
//
// Dotted paths become Field nodes qualified with the candidate alias;
// params.<name> and param() become named and positional Parameters; global
// calls such as max(p.score) become Invoke nodes without a target.
package queryexpr
