// Package app wires the template engine into a runnable application: it
// builds the logger, opens the graph store, loads the knowledge base and
// then applies a template or runs an apply-template action, rendering the
// results. It is decoupled from any specific entrypoint like a CLI.
package app
