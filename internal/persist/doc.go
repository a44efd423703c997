// Package persist writes mapped objects into a property graph.
//
// A FieldPersister handles one object write. Plain fields become node
// properties, embedded objects are flattened into the same node under
// owner-qualified property names, and relation fields are handed to a
// RelationshipSynchronizer, which maintains SINGLE_VALUED and MULTI_VALUED
// edges tagged with the field name.
//
// Edge ownership:
//
//	one-to-one, many-to-one (unidirectional)   owner side writes the edge
//	many-to-one (inverse of a one-to-many)     never writes
//	one-to-many (either direction)             writes one edge per element
//	many-to-many                               only the side without mapped-by writes
//
// Updates replace rather than diff. A single-valued edge pointing at a
// different target is deleted and recreated; the previous target node is
// left in place. Multi-valued edges are deleted and recreated in full, so
// list indices always run 0..n-1.
//
// Shapes the mapping cannot represent fail the whole write with an
// *UnsupportedError; use HasCode to tell them apart.
package persist
