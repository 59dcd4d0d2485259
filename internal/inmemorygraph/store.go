package inmemorygraph

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
)

type element struct {
	typ        sc.Type
	source     sc.Addr
	target     sc.Addr
	content    string
	hasContent bool
	idtf       string
}

// Store implements the scmemory.Store interface using maps and a mutex.
//
// The store maintains:
//   - elements: every live element keyed by address
//   - outgoing / incoming: connector addresses per endpoint, ascending
//   - byIdtf: system identifier to address
type Store struct {
	mu       sync.RWMutex
	next     sc.Addr
	elements map[sc.Addr]*element
	outgoing map[sc.Addr][]sc.Addr
	incoming map[sc.Addr][]sc.Addr
	byIdtf   map[string]sc.Addr
}

// New creates a new, empty in-memory graph store.
func New() *Store {
	return &Store{
		elements: make(map[sc.Addr]*element),
		outgoing: make(map[sc.Addr][]sc.Addr),
		incoming: make(map[sc.Addr][]sc.Addr),
		byIdtf:   make(map[string]sc.Addr),
	}
}

var _ scmemory.Store = (*Store)(nil)

func (s *Store) allocate(e *element) sc.Addr {
	s.next++
	s.elements[s.next] = e
	return s.next
}

// CreateNode creates a node of the given type.
func (s *Store) CreateNode(ctx context.Context, t sc.Type) (sc.Addr, error) {
	if !t.IsValidNodeType() {
		return sc.EmptyAddr, fmt.Errorf("creating node of type %s: %w", t, scmemory.ErrInvalidType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocate(&element{typ: t}), nil
}

// CreateLink creates a link with empty content.
func (s *Store) CreateLink(ctx context.Context, t sc.Type) (sc.Addr, error) {
	if !t.IsValidLinkType() {
		return sc.EmptyAddr, fmt.Errorf("creating link of type %s: %w", t, scmemory.ErrInvalidType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocate(&element{typ: t}), nil
}

// CreateConnector creates a connector between two live elements.
func (s *Store) CreateConnector(ctx context.Context, t sc.Type, source, target sc.Addr) (sc.Addr, error) {
	if !t.IsValidConnectorType() {
		return sc.EmptyAddr, fmt.Errorf("creating connector of type %s: %w", t, scmemory.ErrInvalidType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.elements[source]; !ok {
		return sc.EmptyAddr, fmt.Errorf("connector source %s: %w", source, scmemory.ErrElementNotFound)
	}
	if _, ok := s.elements[target]; !ok {
		return sc.EmptyAddr, fmt.Errorf("connector target %s: %w", target, scmemory.ErrElementNotFound)
	}

	a := s.allocate(&element{typ: t, source: source, target: target})
	s.outgoing[source] = append(s.outgoing[source], a)
	s.incoming[target] = append(s.incoming[target], a)
	return a, nil
}

// EraseElement erases the element and every connector incident to it.
func (s *Store) EraseElement(ctx context.Context, a sc.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.elements[a]; !ok {
		return fmt.Errorf("erasing %s: %w", a, scmemory.ErrElementNotFound)
	}
	s.erase(a)
	return nil
}

func (s *Store) erase(a sc.Addr) {
	e, ok := s.elements[a]
	if !ok {
		return
	}
	delete(s.elements, a)

	// Copy the incidence lists: erasing a connector rewrites them.
	for _, c := range slices.Clone(s.outgoing[a]) {
		s.erase(c)
	}
	for _, c := range slices.Clone(s.incoming[a]) {
		s.erase(c)
	}
	delete(s.outgoing, a)
	delete(s.incoming, a)

	if e.typ.IsConnector() {
		s.outgoing[e.source] = remove(s.outgoing[e.source], a)
		s.incoming[e.target] = remove(s.incoming[e.target], a)
	}
	if e.idtf != "" {
		delete(s.byIdtf, e.idtf)
	}
}

func remove(list []sc.Addr, a sc.Addr) []sc.Addr {
	i := slices.Index(list, a)
	if i < 0 {
		return list
	}
	return slices.Delete(list, i, i+1)
}

// IsElement reports whether the address refers to a live element.
func (s *Store) IsElement(ctx context.Context, a sc.Addr) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.elements[a]
	return ok, nil
}

func (s *Store) get(a sc.Addr) (*element, error) {
	e, ok := s.elements[a]
	if !ok {
		return nil, fmt.Errorf("element %s: %w", a, scmemory.ErrElementNotFound)
	}
	return e, nil
}

// ElementType returns the type of a live element.
func (s *Store) ElementType(ctx context.Context, a sc.Addr) (sc.Type, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.get(a)
	if err != nil {
		return 0, err
	}
	return e.typ, nil
}

// ConnectorEnds returns the source and target of a connector.
func (s *Store) ConnectorEnds(ctx context.Context, a sc.Addr) (sc.Addr, sc.Addr, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.get(a)
	if err != nil {
		return sc.EmptyAddr, sc.EmptyAddr, err
	}
	if !e.typ.IsConnector() {
		return sc.EmptyAddr, sc.EmptyAddr, fmt.Errorf("element %s: %w", a, scmemory.ErrNotConnector)
	}
	return e.source, e.target, nil
}

// SetLinkContent replaces the content of a link.
func (s *Store) SetLinkContent(ctx context.Context, a sc.Addr, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(a)
	if err != nil {
		return err
	}
	if !e.typ.IsLink() {
		return fmt.Errorf("element %s: %w", a, scmemory.ErrNotLink)
	}
	e.content = content
	e.hasContent = true
	return nil
}

// LinkContent returns the content of a link.
func (s *Store) LinkContent(ctx context.Context, a sc.Addr) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.get(a)
	if err != nil {
		return "", false, err
	}
	if !e.typ.IsLink() {
		return "", false, fmt.Errorf("element %s: %w", a, scmemory.ErrNotLink)
	}
	return e.content, e.hasContent, nil
}

// SetSystemIdentifier binds a unique system identifier to an element,
// replacing any identifier it had before.
func (s *Store) SetSystemIdentifier(ctx context.Context, a sc.Addr, idtf string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(a)
	if err != nil {
		return err
	}
	if owner, ok := s.byIdtf[idtf]; ok && owner != a {
		return fmt.Errorf("identifier %q: %w", idtf, scmemory.ErrIdentifierInUse)
	}
	if e.idtf != "" {
		delete(s.byIdtf, e.idtf)
	}
	e.idtf = idtf
	s.byIdtf[idtf] = a
	return nil
}

// ResolveSystemIdentifier finds the element bound to a system identifier.
func (s *Store) ResolveSystemIdentifier(ctx context.Context, idtf string) (sc.Addr, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byIdtf[idtf]
	return a, ok, nil
}

// SystemIdentifier returns the system identifier of an element.
func (s *Store) SystemIdentifier(ctx context.Context, a sc.Addr) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.get(a)
	if err != nil {
		return "", false, err
	}
	return e.idtf, e.idtf != "", nil
}

// SystemIdentifiers returns every bound system identifier, sorted.
func (s *Store) SystemIdentifiers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byIdtf))
	for idtf := range s.byIdtf {
		out = append(out, idtf)
	}
	sort.Strings(out)
	return out, nil
}

// Iterate3 returns the connectors matching the constraints in ascending
// address order.
func (s *Store) Iterate3(ctx context.Context, source sc.Filter, connectorType sc.Type, target sc.Filter) ([]sc.Triple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []sc.Addr
	switch {
	case source.IsFixed():
		candidates = s.outgoing[source.Addr]
	case target.IsFixed():
		candidates = s.incoming[target.Addr]
	default:
		for a, e := range s.elements {
			if e.typ.IsConnector() {
				candidates = append(candidates, a)
			}
		}
		slices.Sort(candidates)
	}

	var out []sc.Triple
	for _, c := range candidates {
		e := s.elements[c]
		if !connectorType.Matches(e.typ) {
			continue
		}
		if !source.Accepts(e.source, s.elements[e.source].typ) {
			continue
		}
		if !target.Accepts(e.target, s.elements[e.target].typ) {
			continue
		}
		out = append(out, sc.Triple{Source: e.source, Connector: c, Target: e.target})
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
