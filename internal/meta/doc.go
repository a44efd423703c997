// Package meta describes how domain classes map onto a property graph.
//
// A Repository holds one Class per mapped type. Each Class lists its
// Members in declaration order; Resolve infers every member's RelationKind
// from its declared type, container and mapped-by back-reference:
//
//	single-valued, no inverse        → OneToOneUni (ManyToOneUni with cardinality hint)
//	single-valued, single inverse    → OneToOneBi
//	single-valued, multi inverse     → ManyToOneBi
//	multi-valued, no inverse         → OneToManyUni
//	multi-valued, single inverse     → OneToManyBi
//	multi-valued, multi inverse      → ManyToManyBi
//
// Schemas are normally declared in CUE and loaded with LoadCUE.
package meta
