package pattern

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
)

// ErrUngeneratable is returned when connector variables depend on each other
// in a cycle, so no creation order exists.
var ErrUngeneratable = errors.New("pattern cannot be generated")

// Generate creates the pattern in the store, reusing grounded variables, and
// returns the full binding.
func Generate(ctx context.Context, store scmemory.Store, p *Pattern, params Params) (Match, error) {
	binding := p.grounded(params)
	value := func(it Item) (sc.Addr, bool) {
		if !it.Var {
			return it.Addr, true
		}
		v, ok := binding[it.Addr]
		return v, ok
	}

	pending := make([]bool, len(p.triples))
	for i := range pending {
		pending[i] = true
	}

	for left := len(p.triples); left > 0; {
		progressed := false
		for i, tr := range p.triples {
			if !pending[i] {
				continue
			}
			src, srcOK, err := ensureEnd(ctx, store, binding, tr.Source, value)
			if err != nil {
				return Match{}, err
			}
			tgt, tgtOK, err := ensureEnd(ctx, store, binding, tr.Target, value)
			if err != nil {
				return Match{}, err
			}
			if !srcOK || !tgtOK {
				continue
			}

			if _, ok := value(tr.Connector); !ok {
				conn, err := store.CreateConnector(ctx, tr.Connector.Type.AsConst(), src, tgt)
				if err != nil {
					return Match{}, fmt.Errorf("generating connector for %s: %w", tr.Connector.Addr, err)
				}
				binding[tr.Connector.Addr] = conn
			}
			pending[i] = false
			progressed = true
			left--
		}
		if !progressed {
			return Match{}, fmt.Errorf("generating structure %s: %w", p.structure, ErrUngeneratable)
		}
	}
	return Match{values: binding}, nil
}

// ensureEnd resolves a triple end, creating node and link variables on demand.
// Connector variables are only available once their own triple has run.
func ensureEnd(ctx context.Context, store scmemory.Store, binding map[sc.Addr]sc.Addr, it Item, value func(Item) (sc.Addr, bool)) (sc.Addr, bool, error) {
	if v, ok := value(it); ok {
		return v, true, nil
	}
	if it.Type.IsConnector() {
		return sc.EmptyAddr, false, nil
	}

	typ := it.Type.AsConst()
	var (
		a   sc.Addr
		err error
	)
	if typ.IsLink() {
		a, err = store.CreateLink(ctx, typ)
	} else {
		a, err = store.CreateNode(ctx, typ|sc.Node)
	}
	if err != nil {
		return sc.EmptyAddr, false, fmt.Errorf("generating element for %s: %w", it.Addr, err)
	}
	binding[it.Addr] = a
	return a, true, nil
}
