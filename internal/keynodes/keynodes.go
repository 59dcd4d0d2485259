// Package keynodes resolves the well-known graph elements the template
// engine and the agent depend on. A Keynodes value is resolved once per store
// and passed into every constructor that needs it.
package keynodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
)

// ErrUnresolved wraps every failure to resolve a keynode.
var ErrUnresolved = errors.New("keynode could not be resolved")

// Keynodes holds the addresses of the well-known elements.
type Keynodes struct {
	// Template kinds.
	SearchTemplate              sc.Addr
	SearchSetTemplate           sc.Addr
	NotSearchTemplate           sc.Addr
	FilterTemplate              sc.Addr
	NotFilterTemplate           sc.Addr
	GenerateTemplate            sc.Addr
	WaitTemplate                sc.Addr
	FixedStrategySearchTemplate sc.Addr

	// Template configuration roles.
	RrelStructure        sc.Addr
	RrelWaitTime         sc.Addr
	RrelSortParameter    sc.Addr
	RrelInputParameters  sc.Addr
	RrelEraseParameters  sc.Addr
	RrelOutputParameters sc.Addr
	RrelPositiveFilters  sc.Addr
	RrelNegativeFilters  sc.Addr
	RrelInitTemplate     sc.Addr
	RrelNextTemplate     sc.Addr

	// Ordered sets and text.
	Rrel1              sc.Addr
	Rrel2              sc.Addr
	NrelBasicSequence  sc.Addr
	NrelMainIdentifier sc.Addr

	// Actions.
	ActionApplyTemplate          sc.Addr
	ActionInitiated              sc.Addr
	ActionFinished               sc.Addr
	ActionFinishedSuccessfully   sc.Addr
	ActionFinishedUnsuccessfully sc.Addr
	ActionFinishedWithError      sc.Addr
	NrelResult                   sc.Addr
}

type entry struct {
	idtf string
	typ  sc.Type
	dst  *sc.Addr
}

func (k *Keynodes) entries() []entry {
	return []entry{
		{"concept_search_template", sc.ConstClass, &k.SearchTemplate},
		{"concept_search_set_template", sc.ConstClass, &k.SearchSetTemplate},
		{"concept_not_search_template", sc.ConstClass, &k.NotSearchTemplate},
		{"concept_filter_template", sc.ConstClass, &k.FilterTemplate},
		{"concept_not_filter_template", sc.ConstClass, &k.NotFilterTemplate},
		{"concept_generate_template", sc.ConstClass, &k.GenerateTemplate},
		{"concept_wait_template", sc.ConstClass, &k.WaitTemplate},
		{"concept_fixed_strategy_search_template", sc.ConstClass, &k.FixedStrategySearchTemplate},

		{"rrel_structure", sc.ConstRole, &k.RrelStructure},
		{"rrel_wait_time", sc.ConstRole, &k.RrelWaitTime},
		{"rrel_sort_parameter", sc.ConstRole, &k.RrelSortParameter},
		{"rrel_input_parameters", sc.ConstRole, &k.RrelInputParameters},
		{"rrel_erase_parameters", sc.ConstRole, &k.RrelEraseParameters},
		{"rrel_output_parameters", sc.ConstRole, &k.RrelOutputParameters},
		{"rrel_positive_filters", sc.ConstRole, &k.RrelPositiveFilters},
		{"rrel_negative_filters", sc.ConstRole, &k.RrelNegativeFilters},
		{"rrel_init_template", sc.ConstRole, &k.RrelInitTemplate},
		{"rrel_next_template", sc.ConstRole, &k.RrelNextTemplate},

		{"rrel_1", sc.ConstRole, &k.Rrel1},
		{"rrel_2", sc.ConstRole, &k.Rrel2},
		{"nrel_basic_sequence", sc.ConstNoRole, &k.NrelBasicSequence},
		{"nrel_main_idtf", sc.ConstNoRole, &k.NrelMainIdentifier},

		{"action_apply_template", sc.ConstClass, &k.ActionApplyTemplate},
		{"action_initiated", sc.ConstClass, &k.ActionInitiated},
		{"action_finished", sc.ConstClass, &k.ActionFinished},
		{"action_finished_successfully", sc.ConstClass, &k.ActionFinishedSuccessfully},
		{"action_finished_unsuccessfully", sc.ConstClass, &k.ActionFinishedUnsuccessfully},
		{"action_finished_with_error", sc.ConstClass, &k.ActionFinishedWithError},
		{"nrel_result", sc.ConstNoRole, &k.NrelResult},
	}
}

// Resolve looks every keynode up by system identifier, creating the ones the
// store does not know yet.
func Resolve(ctx context.Context, s scmemory.Store) (*Keynodes, error) {
	k := &Keynodes{}
	for _, e := range k.entries() {
		a, err := scmemory.FindOrCreateNode(ctx, s, e.idtf, e.typ)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnresolved, e.idtf, err)
		}
		*e.dst = a
	}
	return k, nil
}

// Identifiers returns the system identifiers of every keynode in declaration
// order.
func Identifiers() []string {
	var k Keynodes
	es := k.entries()
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.idtf
	}
	return out
}
