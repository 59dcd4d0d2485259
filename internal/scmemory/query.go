package scmemory

import (
	"context"
	"fmt"

	"github.com/vk/scagents/internal/sc"
)

// Quintuple is one connector together with an attribute arc that points at it
// from a relation or role element.
type Quintuple struct {
	sc.Triple
	AttrArc  sc.Addr
	Relation sc.Addr
}

// Iterate5 returns every connector matching (source, connectorType, target)
// that is itself the target of an attribute connector of attrType coming from
// an element accepted by relation. This is the role-based configuration
// lookup, e.g. `template -> rrel_structure: structure`.
func Iterate5(ctx context.Context, s Store, source sc.Filter, connectorType sc.Type, target sc.Filter, attrType sc.Type, relation sc.Filter) ([]Quintuple, error) {
	triples, err := s.Iterate3(ctx, source, connectorType, target)
	if err != nil {
		return nil, err
	}

	var out []Quintuple
	for _, tr := range triples {
		attrs, err := s.Iterate3(ctx, relation, attrType, sc.Fixed(tr.Connector))
		if err != nil {
			return nil, err
		}
		for _, attr := range attrs {
			out = append(out, Quintuple{Triple: tr, AttrArc: attr.Connector, Relation: attr.Source})
		}
	}
	return out, nil
}

// HasMembership reports whether a positive constant membership arc connects
// set to elem.
func HasMembership(ctx context.Context, s Store, set, elem sc.Addr) (bool, error) {
	if !set.IsValid() || !elem.IsValid() {
		return false, nil
	}
	triples, err := s.Iterate3(ctx, sc.Fixed(set), sc.ConstPermPosArc, sc.Fixed(elem))
	if err != nil {
		return false, err
	}
	return len(triples) > 0, nil
}

// Members returns the targets of every positive constant membership arc
// leaving set, in arc order. Elements reached by several arcs are listed once.
func Members(ctx context.Context, s Store, set sc.Addr) ([]sc.Addr, error) {
	triples, err := MembershipArcs(ctx, s, set)
	if err != nil {
		return nil, err
	}
	seen := make(map[sc.Addr]struct{}, len(triples))
	out := make([]sc.Addr, 0, len(triples))
	for _, tr := range triples {
		if _, ok := seen[tr.Target]; ok {
			continue
		}
		seen[tr.Target] = struct{}{}
		out = append(out, tr.Target)
	}
	return out, nil
}

// MembershipArcs returns every positive constant membership arc leaving set.
func MembershipArcs(ctx context.Context, s Store, set sc.Addr) ([]sc.Triple, error) {
	if !set.IsValid() {
		return nil, nil
	}
	return s.Iterate3(ctx, sc.Fixed(set), sc.ConstPermPosArc, sc.Any)
}

// RoleTarget returns the element reached from source by a membership arc that
// carries the given role, `source -> role: target`. When several match, the
// oldest wins. The boolean is false when no such element exists.
func RoleTarget(ctx context.Context, s Store, source, role sc.Addr) (sc.Addr, bool, error) {
	if !source.IsValid() || !role.IsValid() {
		return sc.EmptyAddr, false, nil
	}
	found, err := Iterate5(ctx, s, sc.Fixed(source), sc.ConstPermPosArc, sc.Any, sc.ConstPermPosArc, sc.Fixed(role))
	if err != nil {
		return sc.EmptyAddr, false, err
	}
	if len(found) == 0 {
		return sc.EmptyAddr, false, nil
	}
	return found[0].Target, true, nil
}

// RelationTarget returns the element reached from source by a common arc that
// belongs to the given non-role relation, `source => relation: target`.
func RelationTarget(ctx context.Context, s Store, source, relation sc.Addr) (sc.Addr, bool, error) {
	if !source.IsValid() || !relation.IsValid() {
		return sc.EmptyAddr, false, nil
	}
	found, err := Iterate5(ctx, s, sc.Fixed(source), sc.ConstCommonArc, sc.Any, sc.ConstPermPosArc, sc.Fixed(relation))
	if err != nil {
		return sc.EmptyAddr, false, err
	}
	if len(found) == 0 {
		return sc.EmptyAddr, false, nil
	}
	return found[0].Target, true, nil
}

// Text returns the human-readable text of an element: the content of a link,
// otherwise the content of the link reached by mainIdtf. Elements without
// resolvable text yield the empty string.
func Text(ctx context.Context, s Store, a, mainIdtf sc.Addr) (string, error) {
	t, err := s.ElementType(ctx, a)
	if err != nil {
		return "", err
	}
	if t.IsLink() {
		content, _, err := s.LinkContent(ctx, a)
		return content, err
	}

	link, ok, err := RelationTarget(ctx, s, a, mainIdtf)
	if err != nil || !ok {
		return "", err
	}
	lt, err := s.ElementType(ctx, link)
	if err != nil {
		return "", err
	}
	if !lt.IsLink() {
		return "", nil
	}
	content, _, err := s.LinkContent(ctx, link)
	return content, err
}

// FindOrCreateNode resolves a system identifier, creating a node of type t
// bound to it when the identifier is unknown.
func FindOrCreateNode(ctx context.Context, s Store, idtf string, t sc.Type) (sc.Addr, error) {
	a, ok, err := s.ResolveSystemIdentifier(ctx, idtf)
	if err != nil {
		return sc.EmptyAddr, fmt.Errorf("resolving %q: %w", idtf, err)
	}
	if ok {
		return a, nil
	}

	a, err = s.CreateNode(ctx, t)
	if err != nil {
		return sc.EmptyAddr, fmt.Errorf("creating node %q: %w", idtf, err)
	}
	if err := s.SetSystemIdentifier(ctx, a, idtf); err != nil {
		return sc.EmptyAddr, fmt.Errorf("naming node %q: %w", idtf, err)
	}
	return a, nil
}

// Connect creates a positive constant membership arc `set -> elem` unless one
// already exists, and returns the arc.
func Connect(ctx context.Context, s Store, set, elem sc.Addr) (sc.Addr, error) {
	existing, err := s.Iterate3(ctx, sc.Fixed(set), sc.ConstPermPosArc, sc.Fixed(elem))
	if err != nil {
		return sc.EmptyAddr, err
	}
	if len(existing) > 0 {
		return existing[0].Connector, nil
	}
	return s.CreateConnector(ctx, sc.ConstPermPosArc, set, elem)
}

// Disconnect erases every positive constant membership arc `set -> elem`.
func Disconnect(ctx context.Context, s Store, set, elem sc.Addr) error {
	existing, err := s.Iterate3(ctx, sc.Fixed(set), sc.ConstPermPosArc, sc.Fixed(elem))
	if err != nil {
		return err
	}
	for _, tr := range existing {
		if err := s.EraseElement(ctx, tr.Connector); err != nil {
			return err
		}
	}
	return nil
}

// Label renders an element for humans: its system identifier when it has one,
// otherwise its address.
func Label(ctx context.Context, s Store, a sc.Addr) string {
	if !a.IsValid() {
		return ""
	}
	if idtf, ok, err := s.SystemIdentifier(ctx, a); err == nil && ok {
		return idtf
	}
	return a.String()
}
