package template

import (
	"context"
	"fmt"

	"github.com/vk/scagents/internal/keynodes"
	"github.com/vk/scagents/internal/pattern"
	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
)

// ResultsConfig names the parameter sets that shape collected results. Empty
// addresses disable the corresponding feature.
type ResultsConfig struct {
	Template         sc.Addr
	SortParameter    sc.Addr
	EraseParameters  sc.Addr
	OutputParameters sc.Addr
}

// Results owns an arena of results. Top-level results are listed in order;
// results connected during multi-stage composition live in the same arena
// but are only reachable through their parents, so Size and iteration never
// visit them directly.
//
// The zero value holds results but cannot collect from the graph.
type Results struct {
	id    uint64
	store scmemory.Store
	kn    *keynodes.Keynodes
	cfg   ResultsConfig
	items []Result
	top   []int
}

// NewResults returns an empty collection bound to a template configuration.
func NewResults(store scmemory.Store, kn *keynodes.Keynodes, cfg ResultsConfig) *Results {
	return &Results{store: store, kn: kn, cfg: cfg}
}

// IsValid reports whether the collection is bound to a store and template.
func (rs *Results) IsValid() bool {
	return rs.store != nil && rs.kn != nil && rs.cfg.Template.IsValid()
}

// Config returns the configuration the collection was created with.
func (rs *Results) Config() ResultsConfig { return rs.cfg }

// Size returns the number of top-level results.
func (rs *Results) Size() int { return len(rs.top) }

// IDs returns the handles of the top-level results in order.
func (rs *Results) IDs() []ResultID {
	out := make([]ResultID, len(rs.top))
	for i, idx := range rs.top {
		out[i] = rs.handle(idx)
	}
	return out
}

// Result returns a copy of the result behind id.
func (rs *Results) Result(id ResultID) Result {
	return rs.items[rs.index(id)].clone()
}

// Children returns the handles of the results connected to id.
func (rs *Results) Children(id ResultID) []ResultID {
	r := rs.items[rs.index(id)]
	out := make([]ResultID, len(r.children))
	for i, c := range r.children {
		out[i] = rs.handle(c)
	}
	return out
}

func (rs *Results) push(r Result, topLevel bool) int {
	rs.items = append(rs.items, r)
	i := len(rs.items) - 1
	if topLevel {
		rs.top = append(rs.top, i)
	}
	return i
}

// absorb copies other's arena into rs as non-top-level results and returns
// the offset at which it landed.
func (rs *Results) absorb(other *Results) int {
	offset := len(rs.items)
	for _, r := range other.items {
		c := r.clone()
		for i := range c.children {
			c.children[i] += offset
		}
		rs.items = append(rs.items, c)
	}
	return offset
}

// AddTemplateResults appends other's top-level results as top-level results
// of rs. Nested connections are re-indexed and stay reachable.
func (rs *Results) AddTemplateResults(other *Results) {
	if other == nil || other == rs {
		return
	}
	offset := rs.absorb(other)
	for _, t := range other.top {
		rs.top = append(rs.top, t+offset)
	}
}

// ConnectTemplateResults turns the result behind id into a collection whose
// children are other's top-level results. Set-style composition.
func (rs *Results) ConnectTemplateResults(id ResultID, other *Results) {
	i := rs.index(id)
	rs.items[i].kind = Collection
	if other == nil || other.Size() == 0 {
		return
	}
	offset := rs.absorb(other)
	for _, t := range other.top {
		rs.items[i].children = append(rs.items[i].children, t+offset)
	}
}

// MergeTemplateResults extends the result behind id with the bindings and
// connections of other's first top-level result. Tuple-style composition.
func (rs *Results) MergeTemplateResults(id ResultID, other *Results) {
	i := rs.index(id)
	if other == nil || other.Size() == 0 {
		return
	}
	first := other.items[other.top[0]]
	rs.items[i].b.merge(first.b)
	if len(first.children) == 0 {
		return
	}

	offset := rs.absorb(other)
	rs.items[i].kind = Collection
	for _, c := range first.children {
		rs.items[i].children = append(rs.items[i].children, c+offset)
	}
}

// walk visits the scalar rows under r. A collection visits each child as a
// copy seeded with its own bindings; a collection without children is
// visited as itself.
func (rs *Results) walk(r Result, fn func(Result) bool) bool {
	if r.kind != Collection || len(r.children) == 0 {
		return fn(r)
	}
	for _, c := range r.children {
		if !rs.walk(r.inherit(rs.items[c]), fn) {
			return false
		}
	}
	return true
}

// ForEach calls fn for every flattened scalar result in order.
func (rs *Results) ForEach(fn func(Result)) {
	rs.AllOf(func(r Result) bool {
		fn(r)
		return true
	})
}

// AllOf reports whether fn accepts every flattened result. It stops at the
// first rejection.
func (rs *Results) AllOf(fn func(Result) bool) bool {
	for _, t := range rs.top {
		if !rs.walk(rs.items[t], fn) {
			return false
		}
	}
	return true
}

// AnyOf reports whether fn accepts some flattened result. It stops at the
// first acceptance.
func (rs *Results) AnyOf(fn func(Result) bool) bool {
	return !rs.AllOf(func(r Result) bool { return !fn(r) })
}

// Flatten returns every flattened scalar result in order.
func (rs *Results) Flatten() []Result {
	var out []Result
	rs.ForEach(func(r Result) { out = append(out, r) })
	return out
}

// Get returns the element bound to class in the first flattened result that
// binds it.
func (rs *Results) Get(class sc.Addr) (sc.Addr, bool) {
	var (
		found sc.Addr
		ok    bool
	)
	rs.AnyOf(func(r Result) bool {
		found, ok = r.Get(class)
		return ok
	})
	return found, ok
}

// Values returns the elements bound to class across the flattened results.
func (rs *Results) Values(class sc.Addr) []sc.Addr {
	var out []sc.Addr
	rs.ForEach(func(r Result) {
		if v, ok := r.Get(class); ok {
			out = append(out, v)
		}
	})
	return out
}

// FilterFunc decides whether a candidate, described by its arguments, is
// kept.
type FilterFunc func(ctx context.Context, candidate *Arguments) (bool, error)

// ApplyFilters drops every top-level result with a flattened row that some
// filter rejects. Surviving results keep their order.
func (rs *Results) ApplyFilters(ctx context.Context, filters []FilterFunc) error {
	if len(filters) == 0 || len(rs.top) == 0 {
		return nil
	}

	outputs, err := rs.outputClasses(ctx)
	if err != nil {
		return err
	}

	kept := rs.top[:0:0]
	for _, t := range rs.top {
		var ferr error
		pass := rs.walk(rs.items[t], func(r Result) bool {
			args := rs.candidate(r, outputs)
			for _, f := range filters {
				ok, err := f(ctx, args)
				if err != nil {
					ferr = err
					return false
				}
				if !ok {
					return false
				}
			}
			return true
		})
		if ferr != nil {
			return ferr
		}
		if pass {
			kept = append(kept, t)
		}
	}
	rs.top = kept
	return nil
}

func (rs *Results) outputClasses(ctx context.Context) ([]sc.Addr, error) {
	if !rs.cfg.OutputParameters.IsValid() || rs.store == nil {
		return nil, nil
	}
	classes, err := scmemory.Members(ctx, rs.store, rs.cfg.OutputParameters)
	if err != nil {
		return nil, fmt.Errorf("reading output parameters %s: %w", rs.cfg.OutputParameters, err)
	}
	return classes, nil
}

// candidate builds the filter arguments of a row: its output classes, or all
// of its bindings when no output set is declared.
func (rs *Results) candidate(r Result, outputs []sc.Addr) *Arguments {
	args := NewArguments(rs.store)
	if outputs == nil {
		args.AddResult(r)
		return args
	}
	for _, class := range outputs {
		if v, ok := r.b.binding(class); ok {
			args.Add(class, v.Arc, v.Element)
		}
	}
	return args
}

// CollectFromSearchResult materializes one top-level result per match, in
// sort order, erasing the arcs of erase-parameter classes, then applies the
// filters to the new results. It reports whether any new result survived.
func (rs *Results) CollectFromSearchResult(ctx context.Context, p *pattern.Pattern, matches []pattern.Match, filters []FilterFunc) (bool, error) {
	if !rs.IsValid() {
		return false, ErrInvalidResults
	}

	order, err := rs.sortIndices(ctx, p, matches)
	if err != nil {
		return false, err
	}
	erase, err := rs.eraseClasses(ctx)
	if err != nil {
		return false, err
	}

	scratch := NewResults(rs.store, rs.kn, rs.cfg)
	decls := declarations(p)
	for _, i := range order {
		r, err := rs.extract(ctx, decls, matches[i], erase, Result{})
		if err != nil {
			return false, err
		}
		scratch.push(r, true)
	}

	if err := scratch.ApplyFilters(ctx, filters); err != nil {
		return false, err
	}
	rs.AddTemplateResults(scratch)
	return scratch.Size() > 0, nil
}

// CollectFromGenResult writes the bindings of a generation into the first
// top-level result, creating it when the collection is empty.
func (rs *Results) CollectFromGenResult(ctx context.Context, p *pattern.Pattern, match pattern.Match) error {
	if !rs.IsValid() {
		return ErrInvalidResults
	}
	erase, err := rs.eraseClasses(ctx)
	if err != nil {
		return err
	}

	if len(rs.top) == 0 {
		rs.push(Result{}, true)
	}
	first := rs.top[0]
	r, err := rs.extract(ctx, declarations(p), match, erase, rs.items[first])
	if err != nil {
		return err
	}
	rs.items[first] = r
	return nil
}

func (rs *Results) eraseClasses(ctx context.Context) (map[sc.Addr]struct{}, error) {
	if !rs.cfg.EraseParameters.IsValid() {
		return nil, nil
	}
	classes, err := scmemory.Members(ctx, rs.store, rs.cfg.EraseParameters)
	if err != nil {
		return nil, fmt.Errorf("reading erase parameters %s: %w", rs.cfg.EraseParameters, err)
	}
	out := make(map[sc.Addr]struct{}, len(classes))
	for _, c := range classes {
		out[c] = struct{}{}
	}
	return out, nil
}

// extract copies the declared bindings of a match into r. Arcs of erase
// classes are deleted from the graph once and recorded as empty.
func (rs *Results) extract(ctx context.Context, decls []declaration, m pattern.Match, erase map[sc.Addr]struct{}, r Result) (Result, error) {
	for _, d := range decls {
		elem, ok := m.Get(d.elem)
		if !ok {
			continue
		}
		arc, _ := m.Get(d.arc)

		if _, doomed := erase[d.class]; doomed && arc.IsValid() {
			alive, err := rs.store.IsElement(ctx, arc)
			if err != nil {
				return r, err
			}
			if alive {
				if err := rs.store.EraseElement(ctx, arc); err != nil {
					return r, fmt.Errorf("erasing parameter arc %s: %w", arc, err)
				}
			}
			arc = sc.EmptyAddr
		}
		r.b.add(d.class, Binding{Arc: arc, Element: elem})
	}
	return r, nil
}
