// internal/sc/doc.go

/*
Package sc provides the primitive vocabulary of the semantic graph: element
addresses, element types and the triples produced by connector iteration.

An address is an opaque handle handed out by a graph store. The zero address
is the empty address and never refers to an element. Its canonical text form
is `#N`, e.g. `#42`.

Element types are bit sets. A type combines an element class (node, link,
common edge, common arc, membership arc) with constancy, membership polarity,
permanency and, for nodes, a semantic subtype such as class or structure.
Variable types describe pattern elements; their constant counterpart is what
they match in the graph.
*/
package sc
