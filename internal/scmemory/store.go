// Package scmemory defines the interface of the semantic graph store and the
// store-agnostic queries built on top of it.
//
// # Why Graph Store Exists
//
// Every agent in this repository reads and mutates one shared graph: template
// definitions, parameter classes, arguments and results are all graph
// structure. The Store interface isolates that graph from the code that
// interprets it, so the template engine can run against an in-memory graph in
// tests and against a persistent one in production without any change.
//
// The interface is deliberately small: element creation and erasure, type and
// endpoint queries, link content, system identifiers and one connector
// iterator. Richer queries such as 5-tuple role lookup are plain functions in
// this package that combine those primitives, so every implementation gets
// them for free.
//
// # Determinism
//
// Iterate3 returns triples in ascending connector address order. Addresses are
// handed out in increasing order, so iteration order equals creation order.
// The pattern engine and result sorting rely on this guarantee.
package scmemory

import (
	"context"
	"errors"

	"github.com/vk/scagents/internal/sc"
)

var (
	// ErrElementNotFound is returned when an address does not refer to a live element.
	ErrElementNotFound = errors.New("element not found")
	// ErrNotConnector is returned when a connector operation targets a node or link.
	ErrNotConnector = errors.New("element is not a connector")
	// ErrNotLink is returned when a content operation targets a non-link element.
	ErrNotLink = errors.New("element is not a link")
	// ErrInvalidType is returned when an element is created with an unsuitable type.
	ErrInvalidType = errors.New("invalid element type")
	// ErrIdentifierInUse is returned when a system identifier is already bound to another element.
	ErrIdentifierInUse = errors.New("system identifier already in use")
)

// Store is the interface of a mutable, typed, labeled multigraph.
//
// # Thread-Safety Requirements
//
// Implementations MUST serialize their own internal access. Callers above this
// layer perform no locking; the template engine assumes every call observes a
// consistent graph.
//
// # Typical Implementation
//
// See internal/inmemorygraph for the in-memory reference implementation and
// internal/sqlitegraph for the persistent one. Both pass the conformance suite
// in internal/scmemory/scmemorytest.
type Store interface {
	// CreateNode creates a node of the given node type.
	CreateNode(ctx context.Context, t sc.Type) (sc.Addr, error)

	// CreateLink creates a link with empty content.
	CreateLink(ctx context.Context, t sc.Type) (sc.Addr, error)

	// CreateConnector creates an edge or arc between two live elements.
	// Connectors may themselves be endpoints of other connectors.
	CreateConnector(ctx context.Context, t sc.Type, source, target sc.Addr) (sc.Addr, error)

	// EraseElement erases the element and, recursively, every connector
	// incident to it. Erasing a missing element returns ErrElementNotFound.
	EraseElement(ctx context.Context, a sc.Addr) error

	// IsElement reports whether the address refers to a live element.
	IsElement(ctx context.Context, a sc.Addr) (bool, error)

	// ElementType returns the type of a live element.
	ElementType(ctx context.Context, a sc.Addr) (sc.Type, error)

	// ConnectorEnds returns the source and target of a connector.
	ConnectorEnds(ctx context.Context, a sc.Addr) (source, target sc.Addr, err error)

	// SetLinkContent replaces the content of a link.
	SetLinkContent(ctx context.Context, a sc.Addr, content string) error

	// LinkContent returns the content of a link. The boolean is false when the
	// link has never been given content.
	LinkContent(ctx context.Context, a sc.Addr) (string, bool, error)

	// SetSystemIdentifier binds a unique system identifier to an element.
	SetSystemIdentifier(ctx context.Context, a sc.Addr, idtf string) error

	// ResolveSystemIdentifier finds the element bound to a system identifier.
	ResolveSystemIdentifier(ctx context.Context, idtf string) (sc.Addr, bool, error)

	// SystemIdentifier returns the system identifier of an element, if any.
	SystemIdentifier(ctx context.Context, a sc.Addr) (string, bool, error)

	// SystemIdentifiers returns every bound system identifier, sorted.
	SystemIdentifiers(ctx context.Context) ([]string, error)

	// Iterate3 returns every connector whose type matches connectorType and
	// whose endpoints pass the given filters, in ascending connector address
	// order. A zero connectorType matches every connector.
	Iterate3(ctx context.Context, source sc.Filter, connectorType sc.Type, target sc.Filter) ([]sc.Triple, error)

	// Close releases the store's resources.
	Close() error
}
