// Package pattern is the low-level subgraph matcher used by templates.
//
// # Patterns
//
// A Pattern is read from a structure entity: every connector that belongs to
// the structure contributes one triple (source, connector, target). Elements
// whose type carries the Var bit are variables, keyed by their own address;
// everything else is a constant that must match exactly. Triples keep the
// ascending address order of their connectors.
//
// # Search
//
// Search is a depth-first backtracking matcher. At every depth it expands the
// unmatched triple with the most grounded items, ties resolved by triple
// order, and asks the store for candidates with Iterate3. A connector in the
// graph is never bound to two connectors of the pattern within one match.
// Because stores iterate in ascending address order, matches come out in a
// deterministic order.
//
// # Generation
//
// Generate creates every ungrounded variable as a constant element of the
// variable's type and returns the complete binding. Connectors are created
// once both of their ends exist, which lets patterns attach roles to
// connectors that are generated in the same pass.
package pattern
