package template

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/scagents/internal/inmemorygraph"
	"github.com/vk/scagents/internal/kbload"
	"github.com/vk/scagents/internal/keynodes"
	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
)

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   scmemory.Store
	kn      *keynodes.Keynodes
	kb      *kbload.KB
	builder *Builder
}

// newFixture loads src into a fresh in-memory store.
func newFixture(t *testing.T, src string, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	store := inmemorygraph.New()
	kn, err := keynodes.Resolve(ctx, store)
	require.NoError(t, err)
	kb, err := kbload.New(store, kn).LoadSource(ctx, t.Name()+".hcl", []byte(src))
	require.NoError(t, err)
	return &fixture{t: t, ctx: ctx, store: store, kn: kn, kb: kb, builder: NewBuilder(store, kn, opts...)}
}

func (f *fixture) addr(name string) sc.Addr {
	f.t.Helper()
	a := f.kb.Addr(name)
	require.True(f.t, a.IsValid(), "unknown name %q", name)
	return a
}

func (f *fixture) build(name string) *Template {
	f.t.Helper()
	tpl, err := f.builder.Build(f.ctx, f.addr(name))
	require.NoError(f.t, err)
	return tpl
}

// args binds each class to an element through the connector named arcName.
func (f *fixture) args(arcNames ...string) *Arguments {
	f.t.Helper()
	args := NewArguments(f.store)
	for _, name := range arcNames {
		arc := f.addr(name)
		class, elem, err := f.store.ConnectorEnds(f.ctx, arc)
		require.NoError(f.t, err)
		args.Add(class, arc, elem)
	}
	return args
}

func (f *fixture) apply(name string, args *Arguments) (bool, *Results) {
	f.t.Helper()
	tpl := f.build(name)
	results := tpl.NewResults()
	ok, err := tpl.Apply(f.ctx, args, results)
	require.NoError(f.t, err)
	return ok, results
}

func (f *fixture) labels(addrs []sc.Addr) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = scmemory.Label(f.ctx, f.store, a)
	}
	return out
}

// universityKB: universities with their cities, a search template with a
// required university input and an unconstrained one.
const universityKB = `
node "concept_university" { type = "class" }
node "concept_city" { type = "class" }

connector "arg_bsuir" {
  from = "concept_university"
  to   = "bsuir"
}
connector "u_bsu" {
  from = "concept_university"
  to   = "bsu"
}
connector "c_minsk" {
  from = "concept_city"
  to   = "minsk"
}
connector "c_grodno" {
  from = "concept_city"
  to   = "grodno"
}

connector "bsuir_city" {
  type  = "common_arc"
  from  = "bsuir"
  to    = "minsk"
  attrs = ["nrel_city"]
}
connector "bsu_city" {
  type  = "common_arc"
  from  = "bsu"
  to    = "grodno"
  attrs = ["nrel_city"]
}

connector "_u_arc" {
  type = "var_membership"
  from = "concept_university"
  to   = "_university"
}
connector "_c_arc" {
  type = "var_membership"
  from = "concept_city"
  to   = "_city"
}
connector "_rel" {
  type  = "var_common_arc"
  from  = "_university"
  to    = "_city"
  attrs = ["nrel_city"]
}

set "city_struct" {
  type    = "structure"
  members = ["_u_arc", "_c_arc", "_rel"]
}
set "input_university" { members = ["concept_university"] }

template "find_city" {
  kind      = "search"
  structure = "city_struct"
  input     = "input_university"
}
template "all_cities" {
  kind      = "search"
  structure = "city_struct"
}
template "no_city" {
  kind      = "not_search"
  structure = "city_struct"
  input     = "input_university"
}
template "city_filter" {
  kind      = "filter"
  structure = "city_struct"
}
template "city_not_filter" {
  kind      = "not_filter"
  structure = "city_struct"
}
`
