// Package template implements parameterized templates: declarative graph
// entities that are classified, configured and applied against runtime
// arguments.
//
// # Templates
//
// A template entity belongs to one kind class, which selects its strategy:
//
//   - Search collects every match of the template's pattern
//   - NotSearch succeeds when the pattern is absent
//   - Filter passes when the pattern is absent and NotFilter when it is
//     present; both are used as filters of other templates
//   - Generate creates the pattern in the graph
//   - Wait polls Search until a match appears or the wait time elapses
//   - FixedStrategySearch applies an init template, then a next template once
//     per init result
//
// Configuration is attached to the entity with role arcs
// (`template -> rrel_structure: structure`, rrel_input_parameters,
// rrel_output_parameters, rrel_erase_parameters, rrel_sort_parameter,
// rrel_positive_filters, rrel_negative_filters, rrel_wait_time,
// rrel_init_template, rrel_next_template). A missing role disables its
// feature. The Builder reads it once per Build.
//
// # Parameters
//
// A parameter class is a constant element that a pattern connects to a
// variable with a variable membership arc. Arguments bind classes to an
// (arc, element) pair; both ground the pattern. Bindings are first-wins
// everywhere: an existing binding for a class is never replaced.
//
// # Results
//
// Results is an arena of Result values addressed by ResultID handles.
// Multi-stage composition either connects next-stage results under an init
// result, which becomes a Collection, or merges the first next-stage result
// into it. ForEach, AllOf, AnyOf and Values flatten collections: each child
// is visited as a copy that starts from its parent's bindings.
//
// # Errors
//
// Configuration problems are returned as errors wrapping ErrInvalidTemplate,
// ErrUnknownTemplateType, ErrMissingStructure or ErrMissingInitTemplate. No
// match, unbound required inputs and wait timeouts are a false result with a
// nil error.
package template
