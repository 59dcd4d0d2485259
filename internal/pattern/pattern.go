package pattern

import (
	"context"
	"fmt"

	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
)

// Item is one position of a triple: a constant element or a variable.
type Item struct {
	Addr sc.Addr
	Type sc.Type
	Var  bool
}

// Triple is one (source, connector, target) constraint of a pattern.
type Triple struct {
	Source    Item
	Connector Item
	Target    Item
}

func (t Triple) items() [3]Item {
	return [3]Item{t.Source, t.Connector, t.Target}
}

// Params grounds pattern variables before search or generation. Keys that
// are not variables of the pattern are ignored.
type Params map[sc.Addr]sc.Addr

// Pattern is an immutable set of triples.
type Pattern struct {
	structure sc.Addr
	triples   []Triple
	vars      []sc.Addr
	varTypes  map[sc.Addr]sc.Type
}

// FromStructure reads the pattern described by a structure entity.
func FromStructure(ctx context.Context, store scmemory.Store, structure sc.Addr) (*Pattern, error) {
	arcs, err := scmemory.MembershipArcs(ctx, store, structure)
	if err != nil {
		return nil, fmt.Errorf("reading structure %s: %w", structure, err)
	}

	p := &Pattern{structure: structure, varTypes: make(map[sc.Addr]sc.Type)}
	seen := make(map[sc.Addr]struct{}, len(arcs))
	for _, arc := range arcs {
		member := arc.Target
		if _, dup := seen[member]; dup {
			continue
		}
		seen[member] = struct{}{}

		typ, err := store.ElementType(ctx, member)
		if err != nil {
			return nil, fmt.Errorf("reading structure %s member %s: %w", structure, member, err)
		}
		if !typ.IsConnector() {
			continue
		}
		src, tgt, err := store.ConnectorEnds(ctx, member)
		if err != nil {
			return nil, fmt.Errorf("reading structure %s member %s: %w", structure, member, err)
		}

		var tr Triple
		ends := [3]sc.Addr{src, member, tgt}
		for i, dst := range []*Item{&tr.Source, &tr.Connector, &tr.Target} {
			if *dst, err = p.item(ctx, store, ends[i]); err != nil {
				return nil, fmt.Errorf("reading structure %s: %w", structure, err)
			}
		}
		p.triples = append(p.triples, tr)
	}
	return p, nil
}

func (p *Pattern) item(ctx context.Context, store scmemory.Store, a sc.Addr) (Item, error) {
	typ, err := store.ElementType(ctx, a)
	if err != nil {
		return Item{}, err
	}
	it := Item{Addr: a, Type: typ, Var: typ.IsVar()}
	if it.Var {
		if _, ok := p.varTypes[a]; !ok {
			p.varTypes[a] = typ
			p.vars = append(p.vars, a)
		}
	}
	return it, nil
}

// Structure returns the structure the pattern was read from.
func (p *Pattern) Structure() sc.Addr { return p.structure }

// Triples returns the pattern's triples in connector order.
func (p *Pattern) Triples() []Triple {
	out := make([]Triple, len(p.triples))
	copy(out, p.triples)
	return out
}

// Vars returns every variable in first-appearance order.
func (p *Pattern) Vars() []sc.Addr {
	out := make([]sc.Addr, len(p.vars))
	copy(out, p.vars)
	return out
}

// IsVar reports whether a is a variable of the pattern.
func (p *Pattern) IsVar(a sc.Addr) bool {
	_, ok := p.varTypes[a]
	return ok
}

// FreeVars lists the variables that params leave ungrounded.
func (p *Pattern) FreeVars(params Params) []sc.Addr {
	var out []sc.Addr
	for _, v := range p.vars {
		if val, ok := params[v]; !ok || !val.IsValid() {
			out = append(out, v)
		}
	}
	return out
}

// Match is one complete binding of a pattern's variables.
type Match struct {
	values map[sc.Addr]sc.Addr
}

// Get returns the value bound to a variable. Constants of the pattern resolve
// to themselves.
func (m Match) Get(a sc.Addr) (sc.Addr, bool) {
	v, ok := m.values[a]
	return v, ok
}

// Len returns the number of bound variables.
func (m Match) Len() int { return len(m.values) }

func (p *Pattern) grounded(params Params) map[sc.Addr]sc.Addr {
	out := make(map[sc.Addr]sc.Addr, len(params))
	for k, v := range params {
		if p.IsVar(k) && v.IsValid() {
			out[k] = v
		}
	}
	return out
}
