package template

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/scagents/internal/ctxlog"
	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
)

func TestApply_FindsCityOfUniversity(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t, universityKB)

	// --- Act ---
	ok, results := f.apply("find_city", f.args("arg_bsuir"))

	// --- Assert ---
	require.True(t, ok)
	require.Equal(t, 1, results.Size())
	r := results.Result(results.IDs()[0])

	u, _ := r.Binding(f.addr("concept_university"))
	assert.Equal(t, Binding{Arc: f.addr("arg_bsuir"), Element: f.addr("bsuir")}, u)
	city, _ := r.Binding(f.addr("concept_city"))
	assert.Equal(t, Binding{Arc: f.addr("c_minsk"), Element: f.addr("minsk")}, city)
}

func TestApply_UnboundInputFails(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t, universityKB)
	var buf bytes.Buffer
	ctx := ctxlog.WithLogger(f.ctx, slog.New(slog.NewTextHandler(&buf, nil)))
	tpl := f.build("find_city")
	results := tpl.NewResults()

	// --- Act ---
	ok, err := tpl.Apply(ctx, NewArguments(f.store), results)

	// --- Assert ---
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, results.Size())
	assert.Contains(t, buf.String(), "Required template parameter is not bound.")
	assert.Contains(t, buf.String(), "class=concept_university")
}

func TestApply_UnconstrainedSearchReturnsAllMatches(t *testing.T) {
	f := newFixture(t, universityKB)

	ok, results := f.apply("all_cities", nil)

	require.True(t, ok)
	assert.Equal(t, 2, results.Size())
	want := []string{"minsk", "grodno"}
	if diff := cmp.Diff(want, f.labels(results.Values(f.addr("concept_city")))); diff != "" {
		t.Errorf("cities mismatch (-want +got):\n%s", diff)
	}
}

func TestApply_GroundedSearchSucceedsWithoutResults(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t, `
connector "x_member" {
  from = "concept_x"
  to   = "x_elem"
}
connector "_x_arc" {
  type = "var_membership"
  from = "concept_x"
  to   = "_x"
}
set "x_struct" {
  type    = "structure"
  members = ["_x_arc"]
}
template "find_x" {
  kind      = "search"
  structure = "x_struct"
}
node "unrelated" {}
`)
	args := NewArguments(f.store)
	// The binding does not even exist in the graph.
	args.Add(f.addr("concept_x"), f.addr("unrelated"), f.addr("unrelated"))

	// --- Act ---
	ok, results := f.apply("find_x", args)

	// --- Assert ---
	assert.True(t, ok)
	assert.Equal(t, 0, results.Size())
}

func TestApply_FilterDuality(t *testing.T) {
	tests := []struct {
		name    string
		args    func(f *fixture) *Arguments
		present bool
	}{
		{
			name:    "pattern present",
			args:    func(f *fixture) *Arguments { return f.args("arg_bsuir") },
			present: true,
		},
		{
			name: "pattern absent",
			args: func(f *fixture) *Arguments {
				args := NewArguments(f.store)
				args.Add(f.addr("concept_university"), sc.EmptyAddr, f.addr("grodno"))
				return args
			},
			present: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			f := newFixture(t, universityKB)
			args := tc.args(f)
			search := f.build("find_city")

			// --- Act ---
			found, _ := f.apply("find_city", args)
			absent, _ := f.apply("no_city", args)
			filterKind, _ := f.apply("city_filter", args)
			notFilterKind, _ := f.apply("city_not_filter", args)
			filter, err := search.Filter(f.ctx, f.addr("find_city"), args)
			require.NoError(t, err)
			notFilter, err := search.NotFilter(f.ctx, f.addr("find_city"), args)
			require.NoError(t, err)

			// --- Assert ---
			assert.Equal(t, tc.present, found)
			assert.Equal(t, !found, absent)
			assert.Equal(t, !found, filterKind)
			assert.Equal(t, found, notFilterKind)
			assert.Equal(t, !found, filter, "Filter ignores the kind class of the template")
			assert.Equal(t, found, notFilter)
		})
	}
}

func TestFilter_UnboundInputFails(t *testing.T) {
	f := newFixture(t, universityKB)
	tpl := f.build("all_cities")

	ok, err := tpl.Filter(f.ctx, f.addr("no_city"), NewArguments(f.store))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = tpl.NotFilter(f.ctx, f.addr("no_city"), NewArguments(f.store))
	require.NoError(t, err)
	assert.False(t, ok)
}

const flaggedKB = universityKB + `
node "bsuir" { classes = ["concept_flagged"] }

connector "_f_arc" {
  type = "var_membership"
  from = "concept_university"
  to   = "_fu"
}
connector "_flag_arc" {
  type = "var_membership"
  from = "concept_flagged"
  to   = "_fu"
}
set "flag_struct" {
  type    = "structure"
  members = ["_f_arc", "_flag_arc"]
}
template "is_flagged" {
  kind      = "filter"
  structure = "flag_struct"
}
set "flag_filters" { members = ["is_flagged"] }

template "unflagged_cities" {
  kind             = "search"
  structure        = "city_struct"
  positive_filters = "flag_filters"
}
template "flagged_cities" {
  kind             = "search"
  structure        = "city_struct"
  negative_filters = "flag_filters"
}
`

func TestApply_PositiveAndNegativeFilters(t *testing.T) {
	tests := []struct {
		template string
		want     []string
	}{
		{"unflagged_cities", []string{"bsu"}},
		{"flagged_cities", []string{"bsuir"}},
	}
	for _, tc := range tests {
		t.Run(tc.template, func(t *testing.T) {
			f := newFixture(t, flaggedKB)

			ok, results := f.apply(tc.template, nil)

			require.True(t, ok)
			assert.Equal(t, tc.want, f.labels(results.Values(f.addr("concept_university"))))
		})
	}
}

func TestApply_FiltersRejectingEverythingFail(t *testing.T) {
	f := newFixture(t, flaggedKB+`
node "bsu" { classes = ["concept_flagged"] }
`)

	ok, results := f.apply("unflagged_cities", nil)

	assert.False(t, ok)
	assert.Equal(t, 0, results.Size())
}

func TestApply_OutputParametersLimitFilterCandidates(t *testing.T) {
	// Only the city reaches the filter, so its university variable stays
	// free and the flag pattern matches for every candidate.
	f := newFixture(t, flaggedKB+`
set "city_output" { members = ["concept_city"] }
template "unflagged_by_city" {
  kind             = "search"
  structure        = "city_struct"
  output           = "city_output"
  positive_filters = "flag_filters"
}
template "flagged_by_city" {
  kind             = "search"
  structure        = "city_struct"
  output           = "city_output"
  negative_filters = "flag_filters"
}
`)

	ok, results := f.apply("unflagged_by_city", nil)
	assert.False(t, ok)
	assert.Equal(t, 0, results.Size())

	ok, results = f.apply("flagged_by_city", nil)
	assert.True(t, ok)
	assert.Equal(t, 2, results.Size())
}

const sortKB = `
link "n_10" { content = "10" }
link "n_2" { content = "2" }
link "n_1" { content = 1 }
link "_n" { type = "var_link" }

connector "num_10" {
  from = "concept_num"
  to   = "n_10"
}
connector "num_2" {
  from = "concept_num"
  to   = "n_2"
}
connector "num_1" {
  from = "concept_num"
  to   = "n_1"
}
connector "_n_arc" {
  type = "var_membership"
  from = "concept_num"
  to   = "_n"
}
set "num_struct" {
  type    = "structure"
  members = ["_n_arc"]
}
template "numbers" {
  kind      = "search"
  structure = "num_struct"
  sort      = "concept_num"
}
template "numbers_unsorted" {
  kind      = "search"
  structure = "num_struct"
}

connector "st1" {
  from = "concept_step"
  to   = "s1"
}
connector "st2" {
  from = "concept_step"
  to   = "s2"
}
connector "st3" {
  from = "concept_step"
  to   = "s3"
}
set "concept_step" {
  type     = "class"
  members  = ["s3", "s1", "s2"]
  oriented = true
}
connector "_s_arc" {
  type = "var_membership"
  from = "concept_step"
  to   = "_s"
}
set "step_struct" {
  type    = "structure"
  members = ["_s_arc"]
}
template "steps" {
  kind      = "search"
  structure = "step_struct"
  sort      = "concept_step"
}

connector "ph1" {
  from = "concept_phase"
  to   = "p1"
}
connector "ph2" {
  from = "concept_phase"
  to   = "p2"
}
connector "ph3" {
  from = "concept_phase"
  to   = "p3"
}
set "concept_phase" {
  type     = "class"
  members  = ["p2", "p1"]
  oriented = true
}
connector "_p_arc" {
  type = "var_membership"
  from = "concept_phase"
  to   = "_p"
}
set "phase_struct" {
  type    = "structure"
  members = ["_p_arc"]
}
template "phases" {
  kind      = "search"
  structure = "phase_struct"
  sort      = "concept_phase"
}
`

func TestApply_Sort(t *testing.T) {
	tests := []struct {
		name     string
		template string
		class    string
		want     []string
	}{
		{"numeric text order", "numbers", "concept_num", []string{"n_1", "n_2", "n_10"}},
		{"no sort parameter keeps match order", "numbers_unsorted", "concept_num", []string{"n_10", "n_2", "n_1"}},
		{"oriented set order", "steps", "concept_step", []string{"s3", "s1", "s2"}},
		{"partial oriented coverage falls back to text", "phases", "concept_phase", []string{"p1", "p2", "p3"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, sortKB)

			ok, results := f.apply(tc.template, nil)

			require.True(t, ok)
			assert.Equal(t, tc.want, f.labels(results.Values(f.addr(tc.class))))
		})
	}
}

const eraseKB = `
connector "task_arc" {
  from = "concept_task"
  to   = "task1"
}
connector "tag_a" {
  from = "concept_tag"
  to   = "tag1"
}
connector "tag_b" {
  from = "concept_tag"
  to   = "tag2"
}
connector "_t_arc" {
  type = "var_membership"
  from = "concept_task"
  to   = "_t"
}
connector "_g_arc" {
  type = "var_membership"
  from = "concept_tag"
  to   = "_g"
}
set "task_struct" {
  type    = "structure"
  members = ["_t_arc", "_g_arc"]
}
set "erase_task" { members = ["concept_task"] }
template "take_task" {
  kind      = "search"
  structure = "task_struct"
  erase     = "erase_task"
}
`

func TestApply_ErasesParameterArcsOnce(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t, eraseKB)

	// --- Act ---
	ok, results := f.apply("take_task", nil)

	// --- Assert ---
	require.True(t, ok)
	require.Equal(t, 2, results.Size(), "both matches share the erased arc")

	alive, err := f.store.IsElement(f.ctx, f.addr("task_arc"))
	require.NoError(t, err)
	assert.False(t, alive)
	for _, tag := range []string{"tag_a", "tag_b"} {
		alive, err := f.store.IsElement(f.ctx, f.addr(tag))
		require.NoError(t, err)
		assert.True(t, alive, tag)
	}

	for _, r := range results.Flatten() {
		b, ok := r.Binding(f.addr("concept_task"))
		require.True(t, ok)
		assert.Equal(t, Binding{Element: f.addr("task1")}, b)
		tag, _ := r.Binding(f.addr("concept_tag"))
		assert.True(t, tag.Arc.IsValid())
	}

	ok, _ = f.apply("take_task", nil)
	assert.False(t, ok, "the erased task is no longer found")
}

const generateKB = `
connector "c_minsk" {
  from = "concept_city"
  to   = "minsk"
}
connector "_nc_arc" {
  type = "var_membership"
  from = "concept_city"
  to   = "_new_city"
}
connector "_nc_rel" {
  type  = "var_common_arc"
  from  = "_new_city"
  to    = "belarus"
  attrs = ["nrel_country"]
}
set "gen_struct" {
  type    = "structure"
  members = ["_nc_arc", "_nc_rel"]
}
template "make_city" {
  kind      = "generate"
  structure = "gen_struct"
}
`

func TestApply_Generate(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t, generateKB)

	// --- Act ---
	ok, results := f.apply("make_city", nil)

	// --- Assert ---
	require.True(t, ok)
	require.Equal(t, 1, results.Size())
	city, ok := results.Get(f.addr("concept_city"))
	require.True(t, ok)
	assert.NotEqual(t, f.addr("minsk"), city)

	member, err := scmemory.HasMembership(f.ctx, f.store, f.addr("concept_city"), city)
	require.NoError(t, err)
	assert.True(t, member)
	country, ok, err := scmemory.RelationTarget(f.ctx, f.store, city, f.addr("nrel_country"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.addr("belarus"), country)
}

func TestApply_GenerateReusesBoundParameters(t *testing.T) {
	f := newFixture(t, generateKB)

	ok, results := f.apply("make_city", f.args("c_minsk"))

	require.True(t, ok)
	city, _ := results.Get(f.addr("concept_city"))
	assert.Equal(t, f.addr("minsk"), city)

	members, err := scmemory.Members(f.ctx, f.store, f.addr("concept_city"))
	require.NoError(t, err)
	assert.Len(t, members, 1)
	country, ok, err := scmemory.RelationTarget(f.ctx, f.store, f.addr("minsk"), f.addr("nrel_country"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.addr("belarus"), country)
}

const waitKB = `
connector "_r_arc" {
  type = "var_membership"
  from = "concept_ready"
  to   = "_r"
}
set "ready_struct" {
  type    = "structure"
  members = ["_r_arc"]
}
template "wait_now" {
  kind      = "wait"
  structure = "ready_struct"
  wait_time = 0
}
template "wait_long" {
  kind      = "wait"
  structure = "ready_struct"
  wait_time = 5000
}
template "wait_default" {
  kind      = "wait"
  structure = "ready_struct"
}
`

func TestWait_ZeroTimeoutPollsOnce(t *testing.T) {
	f := newFixture(t, waitKB)

	start := time.Now()
	ok, results := f.apply("wait_now", nil)

	assert.False(t, ok)
	assert.Equal(t, 0, results.Size())
	assert.Less(t, time.Since(start), time.Second)
}

func TestWait_SucceedsWhenPatternAppears(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t, waitKB, WithWaitInterval(5*time.Millisecond))
	go func() {
		time.Sleep(20 * time.Millisecond)
		node, err := f.store.CreateNode(context.Background(), sc.ConstNode)
		if err != nil {
			return
		}
		_, _ = scmemory.Connect(context.Background(), f.store, f.addr("concept_ready"), node)
	}()

	// --- Act ---
	ok, results := f.apply("wait_long", nil)

	// --- Assert ---
	assert.True(t, ok)
	assert.Equal(t, 1, results.Size())
}

func TestWait_StopsOnCancel(t *testing.T) {
	f := newFixture(t, waitKB, WithWaitInterval(5*time.Millisecond))
	tpl := f.build("wait_long")
	ctx, cancel := context.WithTimeout(f.ctx, 30*time.Millisecond)
	defer cancel()

	ok, err := tpl.Apply(ctx, nil, nil)

	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWait_Timeouts(t *testing.T) {
	f := newFixture(t, waitKB, WithWaitTimeout(time.Second))

	assert.Equal(t, time.Duration(0), f.build("wait_now").Config().WaitTimeout)
	assert.Equal(t, 5*time.Second, f.build("wait_long").Config().WaitTimeout)
	assert.Equal(t, time.Second, f.build("wait_default").Config().WaitTimeout)
}

const fixedTemplates = `
connector "_o_arc" {
  type = "var_membership"
  from = "concept_lab_owner"
  to   = "_o"
}
set "owner_struct" {
  type    = "structure"
  members = ["_o_arc"]
}
template "owners" {
  kind      = "search"
  structure = "owner_struct"
}
template "owners_set" {
  kind      = "search_set"
  structure = "owner_struct"
}

connector "_no_arc" {
  type = "var_membership"
  from = "concept_lab_owner"
  to   = "_no"
}
connector "_lab_rel" {
  type  = "var_common_arc"
  from  = "_no"
  to    = "_lab"
  attrs = ["nrel_lab"]
}
connector "_cl_arc" {
  type = "var_membership"
  from = "concept_lab"
  to   = "_lab"
}
set "lab_struct" {
  type    = "structure"
  members = ["_no_arc", "_lab_rel", "_cl_arc"]
}
template "labs" {
  kind      = "search"
  structure = "lab_struct"
}
set "erase_owner" { members = ["concept_lab_owner"] }
template "labs_erasing" {
  kind      = "search"
  structure = "lab_struct"
  erase     = "erase_owner"
}

template "owner_labs" {
  kind = "fixed_strategy"
  init = "owners"
  next = "labs"
}
template "owner_labs_set" {
  kind = "fixed_strategy"
  init = "owners_set"
  next = "labs"
}
template "owner_labs_erasing" {
  kind = "fixed_strategy"
  init = "owners"
  next = "labs_erasing"
}
template "owners_only" {
  kind = "fixed_strategy"
  init = "owners"
}
`

// oneOwnerKB gives owner1 three labs.
const oneOwnerKB = `
connector "own_1" {
  from = "concept_lab_owner"
  to   = "owner1"
}
node "lab1" { classes = ["concept_lab"] }
node "lab2" { classes = ["concept_lab"] }
node "lab3" { classes = ["concept_lab"] }
connector "owns_1" {
  type  = "common_arc"
  from  = "owner1"
  to    = "lab1"
  attrs = ["nrel_lab"]
}
connector "owns_2" {
  type  = "common_arc"
  from  = "owner1"
  to    = "lab2"
  attrs = ["nrel_lab"]
}
connector "owns_3" {
  type  = "common_arc"
  from  = "owner1"
  to    = "lab3"
  attrs = ["nrel_lab"]
}
`

// threeOwnersKB gives a lab to owner1 and owner3 but none to owner2.
const threeOwnersKB = `
connector "own_1" {
  from = "concept_lab_owner"
  to   = "owner1"
}
connector "own_2" {
  from = "concept_lab_owner"
  to   = "owner2"
}
connector "own_3" {
  from = "concept_lab_owner"
  to   = "owner3"
}
node "lab1" { classes = ["concept_lab"] }
node "lab3" { classes = ["concept_lab"] }
connector "owns_1" {
  type  = "common_arc"
  from  = "owner1"
  to    = "lab1"
  attrs = ["nrel_lab"]
}
connector "owns_3" {
  type  = "common_arc"
  from  = "owner3"
  to    = "lab3"
  attrs = ["nrel_lab"]
}
`

func TestFixedStrategy_SetInitConnectsResults(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t, oneOwnerKB+fixedTemplates)

	// --- Act ---
	ok, results := f.apply("owner_labs_set", nil)

	// --- Assert ---
	require.True(t, ok)
	require.Equal(t, 1, results.Size())
	head := results.Result(results.IDs()[0])
	assert.Equal(t, Collection, head.Kind())
	assert.Equal(t, 3, head.Size())

	rows := results.Flatten()
	require.Len(t, rows, 3)
	for _, r := range rows {
		owner, _ := r.Get(f.addr("concept_lab_owner"))
		assert.Equal(t, f.addr("owner1"), owner)
	}
	assert.ElementsMatch(t, []string{"lab1", "lab2", "lab3"}, f.labels(results.Values(f.addr("concept_lab"))))
}

func TestFixedStrategy_TupleInitMergesFirstResult(t *testing.T) {
	f := newFixture(t, oneOwnerKB+fixedTemplates)

	ok, results := f.apply("owner_labs", nil)

	require.True(t, ok)
	require.Equal(t, 1, results.Size())
	head := results.Result(results.IDs()[0])
	assert.Equal(t, 0, head.Size())
	assert.Len(t, results.Values(f.addr("concept_lab")), 1)
	owner, _ := head.Get(f.addr("concept_lab_owner"))
	assert.Equal(t, f.addr("owner1"), owner)
}

func TestFixedStrategy_StopsAtFirstFailure(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t, threeOwnersKB+fixedTemplates)

	// --- Act ---
	ok, results := f.apply("owner_labs_erasing", nil)

	// --- Assert ---
	assert.False(t, ok)
	assert.Equal(t, 0, results.Size())

	alive := func(name string) bool {
		t.Helper()
		ok, err := f.store.IsElement(f.ctx, f.addr(name))
		require.NoError(t, err)
		return ok
	}
	assert.False(t, alive("own_1"), "owner1 was processed")
	assert.True(t, alive("own_2"), "owner2 failed")
	assert.True(t, alive("own_3"), "owner3 was never processed")
}

func TestFixedStrategy_WithoutNextReturnsInitResults(t *testing.T) {
	f := newFixture(t, threeOwnersKB+fixedTemplates)

	ok, results := f.apply("owners_only", nil)

	require.True(t, ok)
	assert.Equal(t, []string{"owner1", "owner2", "owner3"}, f.labels(results.Values(f.addr("concept_lab_owner"))))
}

func TestFixedStrategy_InitFailurePropagates(t *testing.T) {
	f := newFixture(t, fixedTemplates)

	ok, results := f.apply("owner_labs", nil)

	assert.False(t, ok)
	assert.Equal(t, 0, results.Size())
}
