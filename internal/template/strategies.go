package template

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/scagents/internal/ctxlog"
	"github.com/vk/scagents/internal/pattern"
)

type searchStrategy struct{}

// apply succeeds without searching when params ground every variable.
func (searchStrategy) apply(ctx context.Context, t *Template, params pattern.Params, _ *Arguments, results *Results, filters []FilterFunc) (bool, error) {
	if len(t.pattern.FreeVars(params)) == 0 {
		return true, nil
	}

	matches, err := pattern.Search(ctx, t.builder.store, t.pattern, params)
	if err != nil {
		return false, err
	}
	if len(matches) == 0 {
		ctxlog.FromContext(ctx).Debug("Template pattern not found.")
		return false, nil
	}
	return results.CollectFromSearchResult(ctx, t.pattern, matches, filters)
}

// negate runs a search into a scratch collection and inverts it.
func negate(ctx context.Context, t *Template, params pattern.Params, args *Arguments, filters []FilterFunc) (bool, error) {
	found, err := searchStrategy{}.apply(ctx, t, params, args, t.NewResults(), filters)
	if err != nil {
		return false, err
	}
	return !found, nil
}

type notSearchStrategy struct{}

func (notSearchStrategy) apply(ctx context.Context, t *Template, params pattern.Params, args *Arguments, _ *Results, filters []FilterFunc) (bool, error) {
	return negate(ctx, t, params, args, filters)
}

type filterStrategy struct{}

func (filterStrategy) apply(ctx context.Context, t *Template, params pattern.Params, args *Arguments, _ *Results, filters []FilterFunc) (bool, error) {
	return negate(ctx, t, params, args, filters)
}

type notFilterStrategy struct{}

func (notFilterStrategy) apply(ctx context.Context, t *Template, params pattern.Params, args *Arguments, results *Results, filters []FilterFunc) (bool, error) {
	absent, err := notSearchStrategy{}.apply(ctx, t, params, args, results, filters)
	if err != nil {
		return false, err
	}
	return !absent, nil
}

type generateStrategy struct{}

func (generateStrategy) apply(ctx context.Context, t *Template, params pattern.Params, _ *Arguments, results *Results, _ []FilterFunc) (bool, error) {
	m, err := pattern.Generate(ctx, t.builder.store, t.pattern, params)
	if err != nil {
		return false, err
	}
	if err := results.CollectFromGenResult(ctx, t.pattern, m); err != nil {
		return false, err
	}
	return true, nil
}

type waitStrategy struct{}

// apply polls the search at least once, then until the wait time elapses.
func (waitStrategy) apply(ctx context.Context, t *Template, params pattern.Params, args *Arguments, results *Results, filters []FilterFunc) (bool, error) {
	logger := ctxlog.FromContext(ctx)
	deadline := time.Now().Add(t.cfg.WaitTimeout)

	for attempt := 1; ; attempt++ {
		found, err := searchStrategy{}.apply(ctx, t, params, args, results, filters)
		if err != nil || found {
			return found, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			logger.Debug("Wait template timed out.", "attempts", attempt, "timeout", t.cfg.WaitTimeout)
			return false, nil
		}

		timer := time.NewTimer(min(t.builder.waitInterval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
}

type fixedStrategy struct{}

// apply runs the init template, then the next template once per init result
// in order, stopping at the first failure. Next results are connected under
// their init result for search-set init templates and merged into it
// otherwise.
func (fixedStrategy) apply(ctx context.Context, t *Template, _ pattern.Params, args *Arguments, results *Results, filters []FilterFunc) (bool, error) {
	logger := ctxlog.FromContext(ctx)

	initTpl, err := t.builder.Build(ctx, t.cfg.InitTemplate)
	if err != nil {
		return false, fmt.Errorf("building init template: %w", err)
	}
	composed := initTpl.NewResults()
	ok, err := initTpl.Apply(ctx, args, composed)
	if err != nil || !ok {
		return false, err
	}

	if t.cfg.NextTemplate.IsValid() {
		next, err := t.builder.Build(ctx, t.cfg.NextTemplate)
		if err != nil {
			return false, fmt.Errorf("building next template: %w", err)
		}
		setStyle := initTpl.Config().SearchSet

		for i, id := range composed.IDs() {
			nextArgs := args.Clone()
			nextArgs.AddResult(composed.Result(id))

			nextResults := next.NewResults()
			ok, err := next.Apply(ctx, nextArgs, nextResults)
			if err != nil {
				return false, err
			}
			if !ok {
				logger.Debug("Next template failed, aborting.", "init_result", i)
				return false, nil
			}
			if setStyle {
				composed.ConnectTemplateResults(id, nextResults)
			} else {
				composed.MergeTemplateResults(id, nextResults)
			}
		}
	}

	before := composed.Size()
	if err := composed.ApplyFilters(ctx, filters); err != nil {
		return false, err
	}
	results.AddTemplateResults(composed)
	return before == 0 || composed.Size() > 0, nil
}
