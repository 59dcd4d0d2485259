package pattern

import (
	"context"
	"fmt"
	"maps"

	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
)

type searcher struct {
	store   scmemory.Store
	p       *Pattern
	binding map[sc.Addr]sc.Addr
	done    []bool
	used    map[sc.Addr]struct{}
	matches []Match
}

// Search returns every match of the pattern under params.
func Search(ctx context.Context, store scmemory.Store, p *Pattern, params Params) ([]Match, error) {
	s := &searcher{
		store:   store,
		p:       p,
		binding: p.grounded(params),
		done:    make([]bool, len(p.triples)),
		used:    make(map[sc.Addr]struct{}),
	}
	if err := s.step(ctx, 0); err != nil {
		return nil, fmt.Errorf("searching structure %s: %w", p.structure, err)
	}
	return s.matches, nil
}

func (s *searcher) value(it Item) (sc.Addr, bool) {
	if !it.Var {
		return it.Addr, true
	}
	v, ok := s.binding[it.Addr]
	return v, ok
}

func (s *searcher) filter(it Item) sc.Filter {
	if v, ok := s.value(it); ok {
		return sc.Fixed(v)
	}
	return sc.OfType(it.Type)
}

// pick returns the unmatched triple with the most grounded items.
func (s *searcher) pick() int {
	best, bestScore := -1, -1
	for i, tr := range s.p.triples {
		if s.done[i] {
			continue
		}
		score := 0
		for _, it := range tr.items() {
			if _, ok := s.value(it); ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func (s *searcher) step(ctx context.Context, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(s.p.triples) {
		s.matches = append(s.matches, Match{values: maps.Clone(s.binding)})
		return nil
	}

	i := s.pick()
	tr := s.p.triples[i]
	candidates, err := s.candidates(ctx, tr)
	if err != nil {
		return err
	}

	s.done[i] = true
	defer func() { s.done[i] = false }()

	for _, c := range candidates {
		if _, taken := s.used[c.Connector]; taken {
			continue
		}
		bound, ok := s.bind(tr, c)
		if !ok {
			continue
		}
		s.used[c.Connector] = struct{}{}
		err := s.step(ctx, depth+1)
		delete(s.used, c.Connector)
		for _, v := range bound {
			delete(s.binding, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *searcher) candidates(ctx context.Context, tr Triple) ([]sc.Triple, error) {
	conn, ok := s.value(tr.Connector)
	if !ok {
		return s.store.Iterate3(ctx, s.filter(tr.Source), tr.Connector.Type, s.filter(tr.Target))
	}

	exists, err := s.store.IsElement(ctx, conn)
	if err != nil || !exists {
		return nil, err
	}
	typ, err := s.store.ElementType(ctx, conn)
	if err != nil {
		return nil, err
	}
	if !typ.IsConnector() || !tr.Connector.Type.Matches(typ) {
		return nil, nil
	}
	src, tgt, err := s.store.ConnectorEnds(ctx, conn)
	if err != nil {
		return nil, err
	}
	for _, end := range []struct {
		it Item
		a  sc.Addr
	}{{tr.Source, src}, {tr.Target, tgt}} {
		if v, ok := s.value(end.it); ok && v != end.a {
			return nil, nil
		}
		if !end.it.Var {
			continue
		}
		if _, ok := s.value(end.it); !ok {
			t, err := s.store.ElementType(ctx, end.a)
			if err != nil {
				return nil, err
			}
			if !end.it.Type.Matches(t) {
				return nil, nil
			}
		}
	}
	return []sc.Triple{{Source: src, Connector: conn, Target: tgt}}, nil
}

// bind records the candidate's values for the triple's unbound variables. It
// returns the variables it bound so the caller can undo them.
func (s *searcher) bind(tr Triple, c sc.Triple) ([]sc.Addr, bool) {
	var bound []sc.Addr
	values := [3]sc.Addr{c.Source, c.Connector, c.Target}
	for i, it := range tr.items() {
		if v, ok := s.value(it); ok {
			if v != values[i] {
				for _, b := range bound {
					delete(s.binding, b)
				}
				return nil, false
			}
			continue
		}
		s.binding[it.Addr] = values[i]
		bound = append(bound, it.Addr)
	}
	return bound, true
}
