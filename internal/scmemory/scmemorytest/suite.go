// Package scmemorytest holds the behavioural contract every scmemory.Store
// implementation must satisfy. Implementations call Run from their own tests.
package scmemorytest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) scmemory.Store

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	cases := []struct {
		name string
		run  func(t *testing.T, ctx context.Context, s scmemory.Store)
	}{
		{"CreateAndType", testCreateAndType},
		{"RejectsInvalidTypes", testRejectsInvalidTypes},
		{"ConnectorEnds", testConnectorEnds},
		{"LinkContent", testLinkContent},
		{"SystemIdentifiers", testSystemIdentifiers},
		{"Iterate3Order", testIterate3Order},
		{"Iterate3Filters", testIterate3Filters},
		{"EraseCascades", testEraseCascades},
		{"QueryHelpers", testQueryHelpers},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.run(t, context.Background(), s)
		})
	}
}

func testCreateAndType(t *testing.T, ctx context.Context, s scmemory.Store) {
	// --- Arrange & Act ---
	node, err := s.CreateNode(ctx, sc.ConstClass)
	require.NoError(t, err)
	link, err := s.CreateLink(ctx, sc.ConstLink)
	require.NoError(t, err)

	// --- Assert ---
	assert.NotEqual(t, node, link)
	assert.True(t, node.IsValid())

	nodeType, err := s.ElementType(ctx, node)
	require.NoError(t, err)
	assert.Equal(t, sc.ConstClass, nodeType)

	ok, err := s.IsElement(ctx, link)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsElement(ctx, sc.Addr(987654))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.ElementType(ctx, sc.Addr(987654))
	assert.ErrorIs(t, err, scmemory.ErrElementNotFound)
}

func testRejectsInvalidTypes(t *testing.T, ctx context.Context, s scmemory.Store) {
	node, err := s.CreateNode(ctx, sc.ConstNode)
	require.NoError(t, err)

	_, err = s.CreateNode(ctx, sc.ConstPermPosArc)
	assert.ErrorIs(t, err, scmemory.ErrInvalidType)

	_, err = s.CreateLink(ctx, sc.ConstNode)
	assert.ErrorIs(t, err, scmemory.ErrInvalidType)

	_, err = s.CreateConnector(ctx, sc.ConstNode, node, node)
	assert.ErrorIs(t, err, scmemory.ErrInvalidType)

	_, err = s.CreateConnector(ctx, sc.ConstPermPosArc, node, sc.Addr(987654))
	assert.ErrorIs(t, err, scmemory.ErrElementNotFound)
}

func testConnectorEnds(t *testing.T, ctx context.Context, s scmemory.Store) {
	a := mustNode(t, ctx, s)
	b := mustNode(t, ctx, s)
	arc, err := s.CreateConnector(ctx, sc.ConstCommonArc, a, b)
	require.NoError(t, err)

	// Connectors may target connectors.
	attr, err := s.CreateConnector(ctx, sc.ConstPermPosArc, a, arc)
	require.NoError(t, err)

	src, tgt, err := s.ConnectorEnds(ctx, arc)
	require.NoError(t, err)
	assert.Equal(t, a, src)
	assert.Equal(t, b, tgt)

	_, tgt, err = s.ConnectorEnds(ctx, attr)
	require.NoError(t, err)
	assert.Equal(t, arc, tgt)

	_, _, err = s.ConnectorEnds(ctx, a)
	assert.ErrorIs(t, err, scmemory.ErrNotConnector)
}

func testLinkContent(t *testing.T, ctx context.Context, s scmemory.Store) {
	link, err := s.CreateLink(ctx, sc.ConstLink)
	require.NoError(t, err)

	_, ok, err := s.LinkContent(ctx, link)
	require.NoError(t, err)
	assert.False(t, ok, "fresh link has no content")

	require.NoError(t, s.SetLinkContent(ctx, link, "42"))
	content, ok, err := s.LinkContent(ctx, link)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", content)

	node := mustNode(t, ctx, s)
	assert.ErrorIs(t, s.SetLinkContent(ctx, node, "x"), scmemory.ErrNotLink)
}

func testSystemIdentifiers(t *testing.T, ctx context.Context, s scmemory.Store) {
	a := mustNode(t, ctx, s)
	b := mustNode(t, ctx, s)

	require.NoError(t, s.SetSystemIdentifier(ctx, a, "alpha"))
	require.NoError(t, s.SetSystemIdentifier(ctx, b, "beta"))
	assert.ErrorIs(t, s.SetSystemIdentifier(ctx, b, "alpha"), scmemory.ErrIdentifierInUse)

	got, ok, err := s.ResolveSystemIdentifier(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, a, got)

	// Renaming frees the old identifier.
	require.NoError(t, s.SetSystemIdentifier(ctx, a, "gamma"))
	_, ok, err = s.ResolveSystemIdentifier(ctx, "alpha")
	require.NoError(t, err)
	assert.False(t, ok)

	idtf, ok, err := s.SystemIdentifier(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gamma", idtf)

	all, err := s.SystemIdentifiers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"beta", "gamma"}, all)
}

func testIterate3Order(t *testing.T, ctx context.Context, s scmemory.Store) {
	set := mustNode(t, ctx, s)
	var want []sc.Triple
	for i := 0; i < 5; i++ {
		elem := mustNode(t, ctx, s)
		arc, err := s.CreateConnector(ctx, sc.ConstPermPosArc, set, elem)
		require.NoError(t, err)
		want = append(want, sc.Triple{Source: set, Connector: arc, Target: elem})
	}

	got, err := s.Iterate3(ctx, sc.Fixed(set), sc.ConstPermPosArc, sc.Any)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = s.Iterate3(ctx, sc.Any, sc.ConstPermPosArc, sc.Any)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func testIterate3Filters(t *testing.T, ctx context.Context, s scmemory.Store) {
	class, err := s.CreateNode(ctx, sc.ConstClass)
	require.NoError(t, err)
	node := mustNode(t, ctx, s)
	link, err := s.CreateLink(ctx, sc.ConstLink)
	require.NoError(t, err)

	toNode, err := s.CreateConnector(ctx, sc.ConstPermPosArc, class, node)
	require.NoError(t, err)
	toLink, err := s.CreateConnector(ctx, sc.ConstPermPosArc, class, link)
	require.NoError(t, err)
	common, err := s.CreateConnector(ctx, sc.ConstCommonArc, node, link)
	require.NoError(t, err)

	tests := []struct {
		name          string
		source        sc.Filter
		connectorType sc.Type
		target        sc.Filter
		want          []sc.Addr
	}{
		{"fixed source any type", sc.Fixed(class), 0, sc.Any, []sc.Addr{toNode, toLink}},
		{"target type link", sc.Fixed(class), sc.ConstPermPosArc, sc.OfType(sc.ConstLink), []sc.Addr{toLink}},
		{"variable type matches constant", sc.Any, sc.VarPermPosArc, sc.Fixed(node), []sc.Addr{toNode}},
		{"common arc by target", sc.Any, sc.ConstCommonArc, sc.Fixed(link), []sc.Addr{common}},
		{"source type class", sc.OfType(sc.ConstClass), 0, sc.Any, []sc.Addr{toNode, toLink}},
		{"no negative arcs", sc.Any, sc.ConstPermNegArc, sc.Any, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.Iterate3(ctx, tc.source, tc.connectorType, tc.target)
			require.NoError(t, err)
			assert.Equal(t, tc.want, connectors(got))
		})
	}
}

func testEraseCascades(t *testing.T, ctx context.Context, s scmemory.Store) {
	// --- Arrange ---
	a := mustNode(t, ctx, s)
	b := mustNode(t, ctx, s)
	require.NoError(t, s.SetSystemIdentifier(ctx, b, "doomed"))
	arc, err := s.CreateConnector(ctx, sc.ConstCommonArc, a, b)
	require.NoError(t, err)
	attr, err := s.CreateConnector(ctx, sc.ConstPermPosArc, a, arc)
	require.NoError(t, err)

	// --- Act ---
	require.NoError(t, s.EraseElement(ctx, b))

	// --- Assert ---
	for _, gone := range []sc.Addr{b, arc, attr} {
		ok, err := s.IsElement(ctx, gone)
		require.NoError(t, err)
		assert.False(t, ok, "element %s should be erased", gone)
	}
	ok, err := s.IsElement(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = s.ResolveSystemIdentifier(ctx, "doomed")
	require.NoError(t, err)
	assert.False(t, ok)

	left, err := s.Iterate3(ctx, sc.Fixed(a), 0, sc.Any)
	require.NoError(t, err)
	assert.Empty(t, left)

	assert.ErrorIs(t, s.EraseElement(ctx, b), scmemory.ErrElementNotFound)
}

func testQueryHelpers(t *testing.T, ctx context.Context, s scmemory.Store) {
	mainIdtf, err := scmemory.FindOrCreateNode(ctx, s, "nrel_main_idtf", sc.ConstNoRole)
	require.NoError(t, err)
	again, err := scmemory.FindOrCreateNode(ctx, s, "nrel_main_idtf", sc.ConstNoRole)
	require.NoError(t, err)
	assert.Equal(t, mainIdtf, again)

	role, err := scmemory.FindOrCreateNode(ctx, s, "rrel_key", sc.ConstRole)
	require.NoError(t, err)
	set := mustNode(t, ctx, s)
	elem := mustNode(t, ctx, s)

	// set -> rrel_key: elem
	arc, err := scmemory.Connect(ctx, s, set, elem)
	require.NoError(t, err)
	same, err := scmemory.Connect(ctx, s, set, elem)
	require.NoError(t, err)
	assert.Equal(t, arc, same, "Connect is idempotent")
	_, err = s.CreateConnector(ctx, sc.ConstPermPosArc, role, arc)
	require.NoError(t, err)

	got, ok, err := scmemory.RoleTarget(ctx, s, set, role)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, elem, got)

	member, err := scmemory.HasMembership(ctx, s, set, elem)
	require.NoError(t, err)
	assert.True(t, member)

	// elem => nrel_main_idtf: [Label]
	link, err := s.CreateLink(ctx, sc.ConstLink)
	require.NoError(t, err)
	require.NoError(t, s.SetLinkContent(ctx, link, "Label"))
	rel, err := s.CreateConnector(ctx, sc.ConstCommonArc, elem, link)
	require.NoError(t, err)
	_, err = s.CreateConnector(ctx, sc.ConstPermPosArc, mainIdtf, rel)
	require.NoError(t, err)

	text, err := scmemory.Text(ctx, s, elem, mainIdtf)
	require.NoError(t, err)
	assert.Equal(t, "Label", text)

	text, err = scmemory.Text(ctx, s, set, mainIdtf)
	require.NoError(t, err)
	assert.Empty(t, text)

	assert.Equal(t, "nrel_main_idtf", scmemory.Label(ctx, s, mainIdtf))
	assert.Equal(t, set.String(), scmemory.Label(ctx, s, set))

	require.NoError(t, scmemory.Disconnect(ctx, s, set, elem))
	member, err = scmemory.HasMembership(ctx, s, set, elem)
	require.NoError(t, err)
	assert.False(t, member)
}

func mustNode(t *testing.T, ctx context.Context, s scmemory.Store) sc.Addr {
	t.Helper()
	a, err := s.CreateNode(ctx, sc.ConstNode)
	require.NoError(t, err)
	return a
}

func connectors(triples []sc.Triple) []sc.Addr {
	if len(triples) == 0 {
		return nil
	}
	out := make([]sc.Addr, len(triples))
	for i, tr := range triples {
		out[i] = tr.Connector
	}
	return out
}
