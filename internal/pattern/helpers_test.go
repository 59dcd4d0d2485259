package pattern

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/scagents/internal/inmemorygraph"
	"github.com/vk/scagents/internal/sc"
)

type graph struct {
	t     *testing.T
	ctx   context.Context
	store *inmemorygraph.Store
}

func newGraph(t *testing.T) *graph {
	t.Helper()
	return &graph{t: t, ctx: context.Background(), store: inmemorygraph.New()}
}

func (g *graph) node(typ sc.Type) sc.Addr {
	g.t.Helper()
	a, err := g.store.CreateNode(g.ctx, typ)
	require.NoError(g.t, err)
	return a
}

func (g *graph) arc(typ sc.Type, src, tgt sc.Addr) sc.Addr {
	g.t.Helper()
	a, err := g.store.CreateConnector(g.ctx, typ, src, tgt)
	require.NoError(g.t, err)
	return a
}

// structure creates a structure containing members.
func (g *graph) structure(members ...sc.Addr) sc.Addr {
	g.t.Helper()
	s := g.node(sc.ConstStructure)
	for _, m := range members {
		g.arc(sc.ConstPermPosArc, s, m)
	}
	return s
}

func (g *graph) pattern(members ...sc.Addr) *Pattern {
	g.t.Helper()
	p, err := FromStructure(g.ctx, g.store, g.structure(members...))
	require.NoError(g.t, err)
	return p
}

func values(t *testing.T, matches []Match, v sc.Addr) []sc.Addr {
	t.Helper()
	out := make([]sc.Addr, len(matches))
	for i, m := range matches {
		val, ok := m.Get(v)
		require.True(t, ok)
		out[i] = val
	}
	return out
}
