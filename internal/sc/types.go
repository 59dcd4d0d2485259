// internal/sc/types.go
package sc

import (
	"fmt"
	"sort"
	"strings"
)

// Type is the bit set describing an element's class and properties.
type Type uint32

// Element classes.
const (
	Node Type = 1 << iota
	Link
	CommonEdge
	CommonArc
	MembershipArc

	// Constancy.
	Const
	Var

	// Membership polarity.
	Pos
	Neg
	Fuz

	// Permanency.
	Perm
	Temp

	// Node subtypes.
	Class
	Structure
	Tuple
	Role
	NoRole
)

const (
	classMask     = Node | Link | CommonEdge | CommonArc | MembershipArc
	connectorMask = CommonEdge | CommonArc | MembershipArc
	constancyMask = Const | Var
	subtypeMask   = Class | Structure | Tuple | Role | NoRole
)

// Frequently used composite types.
const (
	ConstNode      = Node | Const
	VarNode        = Node | Var
	ConstClass     = Node | Const | Class
	VarClass       = Node | Var | Class
	ConstStructure = Node | Const | Structure
	VarStructure   = Node | Var | Structure
	ConstTuple     = Node | Const | Tuple
	VarTuple       = Node | Var | Tuple
	ConstRole      = Node | Const | Role
	ConstNoRole    = Node | Const | NoRole

	ConstLink = Link | Const
	VarLink   = Link | Var

	ConstCommonEdge = CommonEdge | Const
	VarCommonEdge   = CommonEdge | Var
	ConstCommonArc  = CommonArc | Const
	VarCommonArc    = CommonArc | Var

	ConstPermPosArc = MembershipArc | Const | Pos | Perm
	VarPermPosArc   = MembershipArc | Var | Pos | Perm
	ConstPermNegArc = MembershipArc | Const | Neg | Perm
	VarPermNegArc   = MembershipArc | Var | Neg | Perm
	ConstTempPosArc = MembershipArc | Const | Pos | Temp
	VarTempPosArc   = MembershipArc | Var | Pos | Temp
	ConstFuzArc     = MembershipArc | Const | Fuz
	VarFuzArc       = MembershipArc | Var | Fuz
)

var typeNames = map[string]Type{
	"node":                ConstNode,
	"var_node":            VarNode,
	"class":               ConstClass,
	"var_class":           VarClass,
	"structure":           ConstStructure,
	"var_structure":       VarStructure,
	"tuple":               ConstTuple,
	"var_tuple":           VarTuple,
	"role":                ConstRole,
	"norole":              ConstNoRole,
	"link":                ConstLink,
	"var_link":            VarLink,
	"common_edge":         ConstCommonEdge,
	"var_common_edge":     VarCommonEdge,
	"common_arc":          ConstCommonArc,
	"var_common_arc":      VarCommonArc,
	"membership":          ConstPermPosArc,
	"var_membership":      VarPermPosArc,
	"neg_membership":      ConstPermNegArc,
	"var_neg_membership":  VarPermNegArc,
	"temp_membership":     ConstTempPosArc,
	"var_temp_membership": VarTempPosArc,
	"fuz_membership":      ConstFuzArc,
	"var_fuz_membership":  VarFuzArc,
}

// ParseType resolves a type name such as "class" or "var_membership".
func ParseType(name string) (Type, error) {
	t, ok := typeNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown element type %q", name)
	}
	return t, nil
}

// TypeNames returns every name accepted by ParseType, sorted.
func TypeNames() []string {
	names := make([]string, 0, len(typeNames))
	for name := range typeNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String returns the canonical name of a known composite type, or the list of
// set bits otherwise.
func (t Type) String() string {
	best := ""
	for name, v := range typeNames {
		if v == t && (best == "" || name < best) {
			best = name
		}
	}
	if best != "" {
		return best
	}
	if t == 0 {
		return "unknown"
	}

	bits := []struct {
		bit  Type
		name string
	}{
		{Node, "node"}, {Link, "link"}, {CommonEdge, "edge"}, {CommonArc, "arc"}, {MembershipArc, "membership"},
		{Const, "const"}, {Var, "var"}, {Pos, "pos"}, {Neg, "neg"}, {Fuz, "fuz"}, {Perm, "perm"}, {Temp, "temp"},
		{Class, "class"}, {Structure, "structure"}, {Tuple, "tuple"}, {Role, "role"}, {NoRole, "norole"},
	}
	var parts []string
	for _, b := range bits {
		if t&b.bit != 0 {
			parts = append(parts, b.name)
		}
	}
	return strings.Join(parts, "|")
}

// IsNode reports whether the type describes a node.
func (t Type) IsNode() bool { return t&Node != 0 }

// IsLink reports whether the type describes a link.
func (t Type) IsLink() bool { return t&Link != 0 }

// IsConnector reports whether the type describes an edge or an arc.
func (t Type) IsConnector() bool { return t&connectorMask != 0 }

// IsMembershipArc reports whether the type describes a membership arc.
func (t Type) IsMembershipArc() bool { return t&MembershipArc != 0 }

// IsConst reports whether the type is constant.
func (t Type) IsConst() bool { return t&Const != 0 }

// IsVar reports whether the type is variable.
func (t Type) IsVar() bool { return t&Var != 0 }

// HasClass reports whether exactly one element class bit is set.
func (t Type) HasClass() bool {
	c := t & classMask
	return c != 0 && c&(c-1) == 0
}

// IsValidNodeType reports whether t can be used to create a node: the node
// class with at most one subtype and no connector-only properties.
func (t Type) IsValidNodeType() bool {
	if t&classMask != Node {
		return false
	}
	if t&(Pos|Neg|Fuz|Perm|Temp) != 0 {
		return false
	}
	s := t & subtypeMask
	return s&(s-1) == 0
}

// IsValidLinkType reports whether t can be used to create a link.
func (t Type) IsValidLinkType() bool {
	return t&classMask == Link && t&^(Link|constancyMask) == 0
}

// IsValidConnectorType reports whether t can be used to create a connector.
func (t Type) IsValidConnectorType() bool {
	c := t & classMask
	if c != CommonEdge && c != CommonArc && c != MembershipArc {
		return false
	}
	if t&subtypeMask != 0 {
		return false
	}
	if c != MembershipArc && t&(Pos|Neg|Fuz|Perm|Temp) != 0 {
		return false
	}
	return true
}

// AsConst returns the constant counterpart of a variable type. Types that are
// not variable are returned unchanged.
func (t Type) AsConst() Type {
	if t&Var == 0 {
		return t
	}
	return (t &^ Var) | Const
}

// Matches reports whether an element of type actual can be bound to a
// pattern element of type t: actual must carry every bit of t.AsConst(). The
// zero type matches everything.
func (t Type) Matches(actual Type) bool {
	mask := t.AsConst()
	return actual&mask == mask
}
