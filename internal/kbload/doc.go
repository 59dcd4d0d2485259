// Package kbload loads knowledge bases written in HCL into a graph store.
//
// # Syntax
//
// Every block label is a system identifier. Names that are referenced but
// never declared are created on first use: names starting with "_" become
// variable nodes, "concept_" classes, "rrel_" roles, "nrel_" non-role
// relations, and anything else a constant node.
//
//	node "concept_university" { type = "class" }
//	link "bsuir_name" { content = "BSUIR" }
//
//	connector "_a1" {
//	  type  = "var_membership"    # default "membership"
//	  from  = "concept_university"
//	  to    = "_university"
//	  attrs = ["rrel_key"]        # attribute arcs pointing at the connector
//	}
//
//	set "search_struct" {
//	  type     = "structure"      # default "node"
//	  members  = ["_a1"]
//	  oriented = false            # chain members with rrel_1 / nrel_basic_sequence
//	}
//
//	template "find_city" {
//	  kind      = "search"
//	  structure = "search_struct"
//	  input     = "input_params"
//	}
//
// Attribute arcs share the constancy of the connector they label, and a set
// that contains a connector also contains that connector's attribute arcs, so
// `_u => nrel_city: _c` is one connector block inside a structure.
//
// # Loading
//
// Files are parsed concurrently and applied one after another in the order
// given. Within a file, elements are created by block type (nodes, links,
// connectors, sets, templates) and then in file order. Elements whose names already exist in the
// store are reused, which makes loading the same files twice a no-op.
package kbload
