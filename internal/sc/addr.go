// internal/sc/addr.go
package sc

import (
	"fmt"
	"strconv"
	"strings"
)

// Addr is the opaque handle of a graph element.
type Addr uint64

// EmptyAddr is the zero address. It never refers to an element.
const EmptyAddr Addr = 0

// IsValid reports whether the address may refer to an element.
func (a Addr) IsValid() bool {
	return a != EmptyAddr
}

// String serializes the address into its canonical `#N` form.
func (a Addr) String() string {
	return "#" + strconv.FormatUint(uint64(a), 10)
}

// ParseAddr parses the canonical `#N` form of an address.
func ParseAddr(raw string) (Addr, error) {
	if !strings.HasPrefix(raw, "#") {
		return EmptyAddr, fmt.Errorf("address %q must start with '#'", raw)
	}
	n, err := strconv.ParseUint(raw[1:], 10, 64)
	if err != nil {
		return EmptyAddr, fmt.Errorf("invalid address %q: %w", raw, err)
	}
	if n == 0 {
		return EmptyAddr, fmt.Errorf("address %q is the empty address", raw)
	}
	return Addr(n), nil
}

// Triple is one connector together with its endpoints, as returned by
// connector iteration.
type Triple struct {
	Source    Addr
	Connector Addr
	Target    Addr
}

// Filter constrains one endpoint of a connector iteration. A filter either
// pins a fixed address or, when Addr is empty, accepts any element whose type
// matches Type. The zero Filter accepts every element.
type Filter struct {
	Addr Addr
	Type Type
}

// Any accepts every element.
var Any = Filter{}

// Fixed returns a filter that accepts exactly the given element.
func Fixed(a Addr) Filter {
	return Filter{Addr: a}
}

// OfType returns a filter that accepts elements matching the given type.
func OfType(t Type) Filter {
	return Filter{Type: t}
}

// IsFixed reports whether the filter pins a single element.
func (f Filter) IsFixed() bool {
	return f.Addr.IsValid()
}

// Accepts reports whether an element with the given address and type passes
// the filter.
func (f Filter) Accepts(a Addr, t Type) bool {
	if f.IsFixed() {
		return f.Addr == a
	}
	return f.Type.Matches(t)
}
