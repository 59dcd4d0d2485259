// Package agent runs apply-template actions stored in the graph.
//
// An action is a node in action_apply_template whose rrel_1 member is the
// template to apply and whose optional rrel_2 member is a set of argument
// arcs. The agent builds the template, applies it, records the flattened
// results as a structure of tuples linked by nrel_result and finally moves
// the action from action_initiated to action_finished plus one of the
// outcome classes.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vk/scagents/internal/ctxlog"
	"github.com/vk/scagents/internal/keynodes"
	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
	"github.com/vk/scagents/internal/template"
)

var (
	// ErrNotApplyTemplateAction is returned for actions outside action_apply_template.
	ErrNotApplyTemplateAction = errors.New("action is not an apply-template action")
	// ErrMissingTemplate is returned when an action has no rrel_1 template.
	ErrMissingTemplate = errors.New("action does not name a template")
)

// Status is the outcome class an action finished with.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "error"
	}
}

// Outcome describes one finished invocation.
type Outcome struct {
	InvocationID string
	Status       Status
	Template     sc.Addr
	// Results holds what the template produced; nil unless it was applied.
	Results *template.Results
	// Structure is the result structure written to the graph on success.
	Structure sc.Addr
}

// Agent applies templates on behalf of actions.
type Agent struct {
	store   scmemory.Store
	kn      *keynodes.Keynodes
	builder *template.Builder
	newID   func() string
}

// New creates an agent that builds templates with b.
func New(b *template.Builder) *Agent {
	return &Agent{
		store:   b.Store(),
		kn:      b.Keynodes(),
		builder: b,
		newID:   uuid.NewString,
	}
}

// Run executes action and marks it finished. A template that applies but
// finds nothing is StatusFailed with a nil error. Configuration and store
// errors finish the action with StatusError and are returned.
func (a *Agent) Run(ctx context.Context, action sc.Addr) (Outcome, error) {
	out := Outcome{InvocationID: a.newID()}
	logger := ctxlog.FromContext(ctx).With("invocation_id", out.InvocationID, "action", scmemory.Label(ctx, a.store, action))
	ctx = ctxlog.WithLogger(ctx, logger)

	isAction, err := scmemory.HasMembership(ctx, a.store, a.kn.ActionApplyTemplate, action)
	if err != nil {
		return out, fmt.Errorf("checking action %s: %w", action, err)
	}
	if !isAction {
		return out, fmt.Errorf("%w: %s", ErrNotApplyTemplateAction, scmemory.Label(ctx, a.store, action))
	}
	logger.Debug("Action started.")

	ok, err := a.apply(ctx, action, &out)
	switch {
	case err != nil:
		out.Status = StatusError
		logger.Error("Action finished with error.", "error", err)
	case ok:
		out.Status = StatusSucceeded
	default:
		out.Status = StatusFailed
	}

	if ferr := a.finish(ctx, action, out.Status); ferr != nil {
		return out, errors.Join(err, ferr)
	}
	logger.Info("Action finished.", "status", out.Status.String())
	return out, err
}

func (a *Agent) apply(ctx context.Context, action sc.Addr, out *Outcome) (bool, error) {
	tplAddr, ok, err := scmemory.RoleTarget(ctx, a.store, action, a.kn.Rrel1)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrMissingTemplate
	}
	out.Template = tplAddr

	args := template.NewArguments(a.store)
	if set, ok, err := scmemory.RoleTarget(ctx, a.store, action, a.kn.Rrel2); err != nil {
		return false, err
	} else if ok {
		if err := args.CollectFromSet(ctx, set); err != nil {
			return false, err
		}
	}

	tpl, err := a.builder.Build(ctx, tplAddr)
	if err != nil {
		return false, err
	}
	out.Results = tpl.NewResults()
	ok, err = tpl.Apply(ctx, args, out.Results)
	if err != nil || !ok {
		return false, err
	}

	out.Structure, err = a.writeResults(ctx, action, out.Results)
	if err != nil {
		return false, fmt.Errorf("writing results: %w", err)
	}
	return true, nil
}

// writeResults records one tuple per flattened result inside a new
// structure and links it as `action => nrel_result: structure`.
func (a *Agent) writeResults(ctx context.Context, action sc.Addr, results *template.Results) (sc.Addr, error) {
	structure, err := a.store.CreateNode(ctx, sc.ConstStructure)
	if err != nil {
		return sc.EmptyAddr, err
	}

	for _, r := range results.Flatten() {
		tuple, err := a.store.CreateNode(ctx, sc.ConstTuple)
		if err != nil {
			return sc.EmptyAddr, err
		}
		if _, err := scmemory.Connect(ctx, a.store, structure, tuple); err != nil {
			return sc.EmptyAddr, err
		}
		for _, class := range r.Classes() {
			b, _ := r.Binding(class)
			for _, e := range []sc.Addr{b.Arc, b.Element} {
				if !e.IsValid() {
					continue
				}
				if _, err := scmemory.Connect(ctx, a.store, tuple, e); err != nil {
					return sc.EmptyAddr, err
				}
			}
		}
	}

	rel, err := a.store.CreateConnector(ctx, sc.ConstCommonArc, action, structure)
	if err != nil {
		return sc.EmptyAddr, err
	}
	if _, err := a.store.CreateConnector(ctx, sc.ConstPermPosArc, a.kn.NrelResult, rel); err != nil {
		return sc.EmptyAddr, err
	}
	return structure, nil
}

func (a *Agent) finish(ctx context.Context, action sc.Addr, status Status) error {
	class := a.kn.ActionFinishedSuccessfully
	switch status {
	case StatusFailed:
		class = a.kn.ActionFinishedUnsuccessfully
	case StatusError:
		class = a.kn.ActionFinishedWithError
	}

	if err := scmemory.Disconnect(ctx, a.store, a.kn.ActionInitiated, action); err != nil {
		return fmt.Errorf("finishing action: %w", err)
	}
	for _, c := range []sc.Addr{a.kn.ActionFinished, class} {
		if _, err := scmemory.Connect(ctx, a.store, c, action); err != nil {
			return fmt.Errorf("finishing action: %w", err)
		}
	}
	return nil
}
