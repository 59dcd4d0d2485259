package template

import (
	"context"
	"time"

	"github.com/vk/scagents/internal/ctxlog"
	"github.com/vk/scagents/internal/pattern"
	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
)

// Config is the configuration a Builder reads from a template entity. Empty
// addresses mean the feature is off.
type Config struct {
	Template         sc.Addr
	Structure        sc.Addr
	SortParameter    sc.Addr
	InputParameters  sc.Addr
	EraseParameters  sc.Addr
	OutputParameters sc.Addr
	InitTemplate     sc.Addr
	NextTemplate     sc.Addr
	PositiveFilters  []sc.Addr
	NegativeFilters  []sc.Addr
	// SearchSet is set when the template belongs to the search-set class,
	// whatever its evaluated kind.
	SearchSet bool
	// WaitTimeout is the configured wait time, or the builder default.
	WaitTimeout time.Duration
}

// strategy evaluates a configured template. Implementations add their
// results to results and report success.
type strategy interface {
	apply(ctx context.Context, t *Template, params pattern.Params, args *Arguments, results *Results, filters []FilterFunc) (bool, error)
}

// Template is a configured, ready-to-apply template.
type Template struct {
	builder  *Builder
	cfg      Config
	kind     Kind
	pattern  *pattern.Pattern
	strategy strategy
}

// Addr returns the template entity.
func (t *Template) Addr() sc.Addr { return t.cfg.Template }

// Kind returns the evaluated kind.
func (t *Template) Kind() Kind { return t.kind }

// Config returns the loaded configuration.
func (t *Template) Config() Config { return t.cfg }

// Pattern returns the template's pattern. Fixed strategy templates have none.
func (t *Template) Pattern() *pattern.Pattern { return t.pattern }

// NewResults returns an empty collection configured by this template.
func (t *Template) NewResults() *Results {
	return NewResults(t.builder.store, t.builder.kn, ResultsConfig{
		Template:         t.cfg.Template,
		SortParameter:    t.cfg.SortParameter,
		EraseParameters:  t.cfg.EraseParameters,
		OutputParameters: t.cfg.OutputParameters,
	})
}

// Apply evaluates the template against args and adds what it finds to
// results. A false result with a nil error means unbound required inputs, no
// match, or a timeout; errors are configuration or store failures.
func (t *Template) Apply(ctx context.Context, args *Arguments, results *Results) (bool, error) {
	logger := ctxlog.FromContext(ctx).With("template", scmemory.Label(ctx, t.builder.store, t.cfg.Template), "kind", t.kind.String())
	ctx = ctxlog.WithLogger(ctx, logger)

	if args == nil {
		args = NewArguments(t.builder.store)
	}
	if results == nil {
		results = t.NewResults()
	}
	filters := t.filterCallbacks(args)

	params := pattern.Params{}
	ok, err := args.GetTemplateParams(ctx, t.pattern, t.cfg.InputParameters, params)
	if err != nil || !ok {
		return false, err
	}

	ok, err = t.strategy.apply(ctx, t, params, args, results, filters)
	if err != nil {
		return false, err
	}
	logger.Debug("Template applied.", "success", ok, "results", results.Size())
	return ok, nil
}

// filterCallbacks closes each declared filter template over the caller's
// arguments. A candidate's own bindings take precedence over the caller's.
func (t *Template) filterCallbacks(callerArgs *Arguments) []FilterFunc {
	var filters []FilterFunc
	for _, addr := range t.cfg.PositiveFilters {
		addr := addr
		filters = append(filters, func(ctx context.Context, candidate *Arguments) (bool, error) {
			merged := candidate.Clone()
			merged.Merge(callerArgs)
			return t.Filter(ctx, addr, merged)
		})
	}
	for _, addr := range t.cfg.NegativeFilters {
		addr := addr
		filters = append(filters, func(ctx context.Context, candidate *Arguments) (bool, error) {
			merged := candidate.Clone()
			merged.Merge(callerArgs)
			return t.NotFilter(ctx, addr, merged)
		})
	}
	return filters
}

// Filter evaluates the template at addr as an inclusion filter: it passes
// when the filter's pattern is absent.
func (t *Template) Filter(ctx context.Context, addr sc.Addr, args *Arguments) (bool, error) {
	return t.evaluateAs(ctx, addr, KindFilter, args)
}

// NotFilter evaluates the template at addr as an exclusion filter: it passes
// when the filter's pattern is present.
func (t *Template) NotFilter(ctx context.Context, addr sc.Addr, args *Arguments) (bool, error) {
	return t.evaluateAs(ctx, addr, KindNotFilter, args)
}

// evaluateAs runs a template with the given strategy and no filters of its
// own. Unbound required inputs make the filter fail.
func (t *Template) evaluateAs(ctx context.Context, addr sc.Addr, kind Kind, args *Arguments) (bool, error) {
	ft, err := t.builder.buildAs(ctx, addr, &kind)
	if err != nil {
		return false, err
	}
	params := pattern.Params{}
	ok, err := args.GetTemplateParams(ctx, ft.pattern, ft.cfg.InputParameters, params)
	if err != nil || !ok {
		return false, err
	}
	return ft.strategy.apply(ctx, ft, params, args, ft.NewResults(), nil)
}
