// Package inmemorygraph provides an ephemeral, thread-safe, in-memory
// implementation of the scmemory.Store interface.
//
// # Purpose
//
// This package is the graph store used by tests, by the CLI when no database
// is configured, and by any embedding that does not need the graph to outlive
// the process.
//
// # Characteristics
//
//   - **Ephemeral:** Created fresh per process, nothing is persisted
//   - **Thread-Safe:** A single sync.RWMutex guards all maps
//   - **Deterministic:** Addresses grow monotonically and incidence lists are
//     kept in creation order, so iteration order is creation order
//   - **Indexed:** Outgoing and incoming connector lists per element make
//     iteration with a fixed endpoint proportional to that element's degree
//
// # Concurrency Model
//
// Unlike a sync.Map store, graph mutations touch several indexes at once
// (element table, incidence lists, identifier maps), so one RWMutex keeps them
// consistent. Reads such as pattern search take the read lock only.
package inmemorygraph
