// Package store provides a SQLite-backed property graph.
//
// Nodes, their labels, edges and properties live in four tables. All
// mutation happens inside a Tx, which implements graph.Graph, so a whole
// object write commits or rolls back as a unit.
//
// # Critical Patterns
//
// Deterministic traversal
//   - nodes and edges carry a seq assigned at insert
//   - edge queries ORDER BY seq ASC, matching creation order
//
// No null properties
//   - SetProperty rejects nil (graph.ErrNullProperty)
//   - values are stored as canonical typed JSON: {"s":...}, {"i":...},
//     {"b":...} or {"f":"<decimal text>"}; floats are text so that the
//     encoding stays canonical
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
