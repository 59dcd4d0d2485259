package template

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/vk/scagents/internal/orientedset"
	"github.com/vk/scagents/internal/pattern"
	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
)

// sortIndices returns the presentation order of matches. Without a sort
// parameter the match order is kept. When every match reaches its sort
// element through an arc from the same set and that set is oriented over all
// of them, the set order wins; otherwise elements are ordered by text.
func (rs *Results) sortIndices(ctx context.Context, p *pattern.Pattern, matches []pattern.Match) ([]int, error) {
	order := identity(len(matches))
	if !rs.cfg.SortParameter.IsValid() || len(matches) < 2 {
		return order, nil
	}

	d, ok := firstDeclarations(declarations(p))[rs.cfg.SortParameter]
	if !ok {
		return order, nil
	}

	elems := make([]sc.Addr, len(matches))
	sets := make(map[sc.Addr]struct{})
	for i, m := range matches {
		elems[i], _ = m.Get(d.elem)
		arc, _ := m.Get(d.arc)
		if !arc.IsValid() {
			sets[sc.EmptyAddr] = struct{}{}
			continue
		}
		src, _, err := rs.store.ConnectorEnds(ctx, arc)
		if err != nil {
			return nil, fmt.Errorf("reading sort arc %s: %w", arc, err)
		}
		sets[src] = struct{}{}
	}

	if len(sets) == 1 {
		for set := range sets {
			ranked, ok, err := rs.orientedOrder(ctx, set, elems)
			if err != nil {
				return nil, err
			}
			if ok {
				return ranked, nil
			}
		}
	}
	return rs.textOrder(ctx, elems)
}

// orientedOrder orders elems by their position in an oriented set. It fails
// unless the set covers every element.
func (rs *Results) orientedOrder(ctx context.Context, set sc.Addr, elems []sc.Addr) ([]int, bool, error) {
	if !set.IsValid() {
		return nil, false, nil
	}
	members, err := orientedset.Elements(ctx, rs.store, rs.kn, set)
	if err != nil {
		return nil, false, err
	}
	rank := make(map[sc.Addr]int, len(members))
	for i, m := range members {
		if _, seen := rank[m]; !seen {
			rank[m] = i
		}
	}
	for _, e := range elems {
		if _, ok := rank[e]; !ok {
			return nil, false, nil
		}
	}

	order := identity(len(elems))
	sort.SliceStable(order, func(a, b int) bool {
		return rank[elems[order[a]]] < rank[elems[order[b]]]
	})
	return order, true, nil
}

func (rs *Results) textOrder(ctx context.Context, elems []sc.Addr) ([]int, error) {
	texts := make([]string, len(elems))
	for i, e := range elems {
		if !e.IsValid() {
			continue
		}
		text, err := scmemory.Text(ctx, rs.store, e, rs.kn.NrelMainIdentifier)
		if err != nil {
			return nil, fmt.Errorf("reading sort text of %s: %w", e, err)
		}
		texts[i] = text
	}

	order := identity(len(elems))
	sort.SliceStable(order, func(a, b int) bool {
		return lessText(texts[order[a]], texts[order[b]])
	})
	return order, nil
}

// lessText compares numerically when both sides are integers.
func lessText(a, b string) bool {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return x < y
	}
	return a < b
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
