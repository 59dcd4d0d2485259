package template

import (
	"context"
	"fmt"

	"github.com/vk/scagents/internal/ctxlog"
	"github.com/vk/scagents/internal/pattern"
	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
)

// Binding is the membership arc and element bound to a parameter class.
// An erased binding keeps the element and has an empty Arc.
type Binding struct {
	Arc     sc.Addr
	Element sc.Addr
}

// bindings is an insertion-ordered, first-wins map from parameter class to
// binding. Arguments and Result share it.
type bindings struct {
	values map[sc.Addr]Binding
	order  []sc.Addr
}

func (b *bindings) add(class sc.Addr, v Binding) bool {
	if _, ok := b.values[class]; ok {
		return false
	}
	if b.values == nil {
		b.values = make(map[sc.Addr]Binding)
	}
	b.values[class] = v
	b.order = append(b.order, class)
	return true
}

func (b *bindings) merge(other bindings) {
	for _, class := range other.order {
		b.add(class, other.values[class])
	}
}

func (b bindings) binding(class sc.Addr) (Binding, bool) {
	v, ok := b.values[class]
	return v, ok
}

func (b bindings) classes() []sc.Addr {
	out := make([]sc.Addr, len(b.order))
	copy(out, b.order)
	return out
}

func (b bindings) clone() bindings {
	var out bindings
	out.merge(b)
	return out
}

// Arguments maps parameter classes to bindings for one template application.
// The first binding added for a class wins; later ones are ignored.
type Arguments struct {
	store scmemory.Store
	b     bindings
}

// NewArguments returns an empty argument set.
func NewArguments(store scmemory.Store) *Arguments {
	return &Arguments{store: store}
}

// Get returns the element bound to class.
func (a *Arguments) Get(class sc.Addr) (sc.Addr, bool) {
	v, ok := a.b.binding(class)
	return v.Element, ok
}

// Binding returns the full binding of class.
func (a *Arguments) Binding(class sc.Addr) (Binding, bool) {
	return a.b.binding(class)
}

// Classes returns the bound classes in insertion order.
func (a *Arguments) Classes() []sc.Addr { return a.b.classes() }

// Len returns the number of bound classes.
func (a *Arguments) Len() int { return len(a.b.order) }

// Add binds class unless it is already bound and reports whether it did.
func (a *Arguments) Add(class, arc, elem sc.Addr) bool {
	return a.b.add(class, Binding{Arc: arc, Element: elem})
}

// Merge adds every binding of other that is not bound yet.
func (a *Arguments) Merge(other *Arguments) {
	if other != nil {
		a.b.merge(other.b)
	}
}

// AddResult adds the bindings of a result that are not bound yet.
func (a *Arguments) AddResult(r Result) {
	a.b.merge(r.b)
}

// Clone returns an independent copy.
func (a *Arguments) Clone() *Arguments {
	return &Arguments{store: a.store, b: a.b.clone()}
}

// CollectFromSet binds one class per membership arc contained in set. Each
// contained arc `class -> element` binds class to (arc, element).
func (a *Arguments) CollectFromSet(ctx context.Context, set sc.Addr) error {
	members, err := scmemory.Members(ctx, a.store, set)
	if err != nil {
		return fmt.Errorf("collecting arguments from %s: %w", set, err)
	}
	for _, m := range members {
		typ, err := a.store.ElementType(ctx, m)
		if err != nil {
			return fmt.Errorf("collecting arguments from %s: %w", set, err)
		}
		if !typ.IsMembershipArc() {
			continue
		}
		class, elem, err := a.store.ConnectorEnds(ctx, m)
		if err != nil {
			return fmt.Errorf("collecting arguments from %s: %w", set, err)
		}
		a.Add(class, m, elem)
	}
	return nil
}

// GetTemplateParams grounds the pattern variables declared for the bound
// classes into out.
//
// With a valid inputParams set, every class in it is required and only those
// classes are grounded; each unbound one is logged and makes the call return
// false. Without it, every bound class that the pattern declares is grounded.
// A grounded class contributes both its arc and its element.
func (a *Arguments) GetTemplateParams(ctx context.Context, p *pattern.Pattern, inputParams sc.Addr, out pattern.Params) (bool, error) {
	logger := ctxlog.FromContext(ctx)

	classes := a.b.order
	if inputParams.IsValid() {
		required, err := scmemory.Members(ctx, a.store, inputParams)
		if err != nil {
			return false, fmt.Errorf("reading input parameters %s: %w", inputParams, err)
		}
		classes = required
	}

	decls := firstDeclarations(declarations(p))
	satisfied := true
	for _, class := range classes {
		v, ok := a.b.binding(class)
		if !ok {
			logger.Warn("Required template parameter is not bound.", "class", scmemory.Label(ctx, a.store, class))
			satisfied = false
			continue
		}
		d, ok := decls[class]
		if !ok {
			continue
		}
		if v.Arc.IsValid() {
			out[d.arc] = v.Arc
		}
		out[d.elem] = v.Element
	}
	return satisfied, nil
}

// declaration is one parameter slot of a pattern: the variable membership
// arc `class -> elem` with a constant class and a variable element.
type declaration struct {
	class sc.Addr
	arc   sc.Addr
	elem  sc.Addr
}

func declarations(p *pattern.Pattern) []declaration {
	if p == nil {
		return nil
	}
	var out []declaration
	for _, tr := range p.Triples() {
		if !tr.Connector.Var || !tr.Connector.Type.IsMembershipArc() {
			continue
		}
		if tr.Source.Var || !tr.Target.Var {
			continue
		}
		out = append(out, declaration{class: tr.Source.Addr, arc: tr.Connector.Addr, elem: tr.Target.Addr})
	}
	return out
}

func firstDeclarations(decls []declaration) map[sc.Addr]declaration {
	out := make(map[sc.Addr]declaration, len(decls))
	for _, d := range decls {
		if _, ok := out[d.class]; !ok {
			out[d.class] = d
		}
	}
	return out
}
