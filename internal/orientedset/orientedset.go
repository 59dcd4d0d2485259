// Package orientedset walks ordered ("oriented") sets.
//
// An oriented set marks its first membership arc with rrel_1 and chains the
// following arcs with common arcs that belong to nrel_basic_sequence:
//
//	set -> rrel_1: a1; a1 => nrel_basic_sequence: a2; a2 => nrel_basic_sequence: a3
//
// The walk yields the targets of a1, a2, a3 in that order.
package orientedset

import (
	"context"
	"fmt"

	"github.com/vk/scagents/internal/keynodes"
	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
)

// Iterator yields the elements of one oriented set in declared order.
// It is not safe for concurrent use.
type Iterator struct {
	store   scmemory.Store
	kn      *keynodes.Keynodes
	set     sc.Addr
	arc     sc.Addr
	done    bool
	visited map[sc.Addr]struct{}
}

// New returns an iterator positioned before the first element of set.
func New(store scmemory.Store, kn *keynodes.Keynodes, set sc.Addr) *Iterator {
	return &Iterator{
		store:   store,
		kn:      kn,
		set:     set,
		visited: make(map[sc.Addr]struct{}),
	}
}

// Next advances to the following element. It returns false once the chain
// ends, leaves the set, or revisits an arc.
func (it *Iterator) Next(ctx context.Context) (sc.Addr, bool, error) {
	if it.done || !it.set.IsValid() {
		return sc.EmptyAddr, false, nil
	}

	arc, err := it.nextArc(ctx)
	if err != nil {
		return sc.EmptyAddr, false, fmt.Errorf("walking oriented set %s: %w", it.set, err)
	}
	if _, seen := it.visited[arc]; !arc.IsValid() || seen {
		it.done = true
		return sc.EmptyAddr, false, nil
	}
	it.visited[arc] = struct{}{}
	it.arc = arc

	_, elem, err := it.store.ConnectorEnds(ctx, arc)
	if err != nil {
		return sc.EmptyAddr, false, fmt.Errorf("walking oriented set %s: %w", it.set, err)
	}
	return elem, true, nil
}

func (it *Iterator) nextArc(ctx context.Context) (sc.Addr, error) {
	if !it.arc.IsValid() {
		first, err := scmemory.Iterate5(ctx, it.store,
			sc.Fixed(it.set), sc.ConstPermPosArc, sc.Any,
			sc.ConstPermPosArc, sc.Fixed(it.kn.Rrel1))
		if err != nil || len(first) == 0 {
			return sc.EmptyAddr, err
		}
		return first[0].Connector, nil
	}

	links, err := scmemory.Iterate5(ctx, it.store,
		sc.Fixed(it.arc), sc.ConstCommonArc, sc.OfType(sc.ConstPermPosArc),
		sc.ConstPermPosArc, sc.Fixed(it.kn.NrelBasicSequence))
	if err != nil {
		return sc.EmptyAddr, err
	}
	for _, l := range links {
		src, _, err := it.store.ConnectorEnds(ctx, l.Target)
		if err != nil {
			return sc.EmptyAddr, err
		}
		if src == it.set {
			return l.Target, nil
		}
	}
	return sc.EmptyAddr, nil
}

// Elements walks the whole set from the start and returns its elements.
func Elements(ctx context.Context, store scmemory.Store, kn *keynodes.Keynodes, set sc.Addr) ([]sc.Addr, error) {
	it := New(store, kn, set)
	var out []sc.Addr
	for {
		elem, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, elem)
	}
}
