package template

import (
	"fmt"
	"sync/atomic"

	"github.com/vk/scagents/internal/sc"
)

// ResultKind tells whether a result is a plain binding row or the head of a
// nested collection of connected results.
type ResultKind int

const (
	// Scalar results carry bindings only.
	Scalar ResultKind = iota
	// Collection results carry bindings shared by their connected children.
	Collection
)

func (k ResultKind) String() string {
	if k == Collection {
		return "collection"
	}
	return "scalar"
}

// ResultID is a handle to a result inside the Results that created it.
// Handles from one Results value are not valid in another.
type ResultID struct {
	owner uint64
	index int
}

// Result is one row of bindings, possibly heading connected child results.
type Result struct {
	kind     ResultKind
	b        bindings
	children []int
}

// Kind reports whether the result is a scalar or a collection.
func (r Result) Kind() ResultKind { return r.kind }

// Get returns the element bound to class.
func (r Result) Get(class sc.Addr) (sc.Addr, bool) {
	v, ok := r.b.binding(class)
	return v.Element, ok
}

// Binding returns the full binding of class.
func (r Result) Binding(class sc.Addr) (Binding, bool) {
	return r.b.binding(class)
}

// Classes returns the bound classes in insertion order.
func (r Result) Classes() []sc.Addr { return r.b.classes() }

// Size returns the number of connected child results.
func (r Result) Size() int { return len(r.children) }

// inherit returns a copy of child that starts from r's bindings.
func (r Result) inherit(child Result) Result {
	out := Result{kind: child.kind, b: r.b.clone(), children: child.children}
	out.b.merge(child.b)
	return out
}

func (r Result) clone() Result {
	children := make([]int, len(r.children))
	copy(children, r.children)
	return Result{kind: r.kind, b: r.b.clone(), children: children}
}

var nextOwner atomic.Uint64

func (rs *Results) owner() uint64 {
	if rs.id == 0 {
		rs.id = nextOwner.Add(1)
	}
	return rs.id
}

func (rs *Results) index(id ResultID) int {
	if id.owner != rs.owner() || id.index < 0 || id.index >= len(rs.items) {
		panic(fmt.Sprintf("template: result handle %d/%d does not belong to these results", id.owner, id.index))
	}
	return id.index
}

func (rs *Results) handle(i int) ResultID {
	return ResultID{owner: rs.owner(), index: i}
}
