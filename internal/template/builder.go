package template

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vk/scagents/internal/keynodes"
	"github.com/vk/scagents/internal/pattern"
	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
)

const (
	// DefaultWaitInterval is the pause between polls of a wait template.
	DefaultWaitInterval = 200 * time.Millisecond
	// DefaultWaitTimeout applies to wait templates without rrel_wait_time.
	DefaultWaitTimeout = 200 * time.Millisecond
)

// Builder reads template entities from the graph and configures them.
type Builder struct {
	store        scmemory.Store
	kn           *keynodes.Keynodes
	waitInterval time.Duration
	waitTimeout  time.Duration
}

// Option configures a Builder.
type Option func(*Builder)

// WithWaitInterval sets the poll interval of wait templates.
func WithWaitInterval(d time.Duration) Option {
	return func(b *Builder) { b.waitInterval = d }
}

// WithWaitTimeout sets the timeout of wait templates that do not configure
// their own.
func WithWaitTimeout(d time.Duration) Option {
	return func(b *Builder) { b.waitTimeout = d }
}

// NewBuilder creates a Builder over store.
func NewBuilder(store scmemory.Store, kn *keynodes.Keynodes, opts ...Option) *Builder {
	b := &Builder{
		store:        store,
		kn:           kn,
		waitInterval: DefaultWaitInterval,
		waitTimeout:  DefaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Store returns the graph the builder reads from.
func (b *Builder) Store() scmemory.Store { return b.store }

// Keynodes returns the keynodes the builder was created with.
func (b *Builder) Keynodes() *keynodes.Keynodes { return b.kn }

// Build reads the template at addr and selects its strategy from its kind
// class.
func (b *Builder) Build(ctx context.Context, addr sc.Addr) (*Template, error) {
	return b.buildAs(ctx, addr, nil)
}

type kindClass struct {
	class sc.Addr
	kind  Kind
}

// kindPriority decides between kind classes when a template belongs to
// several.
func (b *Builder) kindPriority() []kindClass {
	return []kindClass{
		{b.kn.FixedStrategySearchTemplate, KindFixedStrategySearch},
		{b.kn.WaitTemplate, KindWait},
		{b.kn.GenerateTemplate, KindGenerate},
		{b.kn.NotFilterTemplate, KindNotFilter},
		{b.kn.FilterTemplate, KindFilter},
		{b.kn.NotSearchTemplate, KindNotSearch},
		{b.kn.SearchTemplate, KindSearch},
		{b.kn.SearchSetTemplate, KindSearchSet},
	}
}

// buildAs builds the template with a forced kind when override is set.
func (b *Builder) buildAs(ctx context.Context, addr sc.Addr, override *Kind) (*Template, error) {
	if !addr.IsValid() {
		return nil, fmt.Errorf("%w: empty template address", ErrInvalidTemplate)
	}
	exists, err := b.store.IsElement(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("building template %s: %w", addr, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: element %s does not exist", ErrInvalidTemplate, addr)
	}
	label := scmemory.Label(ctx, b.store, addr)

	cfg, err := b.load(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("loading template %s: %w", label, err)
	}

	var (
		kind  Kind
		known bool
	)
	if override != nil {
		kind, known = *override, true
	} else {
		for _, k := range b.kindPriority() {
			member, err := scmemory.HasMembership(ctx, b.store, k.class, addr)
			if err != nil {
				return nil, fmt.Errorf("classifying template %s: %w", label, err)
			}
			if member {
				kind, known = k.kind, true
				break
			}
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplateType, label)
	}

	t := &Template{builder: b, cfg: cfg, kind: kind, strategy: strategyFor(kind)}
	if kind == KindFixedStrategySearch {
		if !cfg.InitTemplate.IsValid() {
			return nil, fmt.Errorf("%w: %s", ErrMissingInitTemplate, label)
		}
		return t, nil
	}

	t.pattern, err = pattern.FromStructure(ctx, b.store, cfg.Structure)
	if err != nil {
		return nil, fmt.Errorf("loading template %s: %w", label, err)
	}
	if len(t.pattern.Triples()) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingStructure, label)
	}
	return t, nil
}

// load reads every configuration role once.
func (b *Builder) load(ctx context.Context, addr sc.Addr) (Config, error) {
	cfg := Config{Template: addr, WaitTimeout: b.waitTimeout}

	roles := []struct {
		role sc.Addr
		dst  *sc.Addr
	}{
		{b.kn.RrelStructure, &cfg.Structure},
		{b.kn.RrelSortParameter, &cfg.SortParameter},
		{b.kn.RrelInputParameters, &cfg.InputParameters},
		{b.kn.RrelEraseParameters, &cfg.EraseParameters},
		{b.kn.RrelOutputParameters, &cfg.OutputParameters},
		{b.kn.RrelInitTemplate, &cfg.InitTemplate},
		{b.kn.RrelNextTemplate, &cfg.NextTemplate},
	}
	for _, r := range roles {
		target, _, err := scmemory.RoleTarget(ctx, b.store, addr, r.role)
		if err != nil {
			return cfg, err
		}
		*r.dst = target
	}
	if !cfg.Structure.IsValid() {
		cfg.Structure = addr
	}

	var err error
	if cfg.PositiveFilters, err = b.filterSet(ctx, addr, b.kn.RrelPositiveFilters); err != nil {
		return cfg, err
	}
	if cfg.NegativeFilters, err = b.filterSet(ctx, addr, b.kn.RrelNegativeFilters); err != nil {
		return cfg, err
	}
	if cfg.SearchSet, err = scmemory.HasMembership(ctx, b.store, b.kn.SearchSetTemplate, addr); err != nil {
		return cfg, err
	}

	waitLink, ok, err := scmemory.RoleTarget(ctx, b.store, addr, b.kn.RrelWaitTime)
	if err != nil {
		return cfg, err
	}
	if ok {
		if cfg.WaitTimeout, err = b.waitTime(ctx, waitLink); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func (b *Builder) filterSet(ctx context.Context, addr, role sc.Addr) ([]sc.Addr, error) {
	set, ok, err := scmemory.RoleTarget(ctx, b.store, addr, role)
	if err != nil || !ok {
		return nil, err
	}
	return scmemory.Members(ctx, b.store, set)
}

// waitTime parses a link holding a non-negative number of milliseconds.
func (b *Builder) waitTime(ctx context.Context, link sc.Addr) (time.Duration, error) {
	text, err := scmemory.Text(ctx, b.store, link, b.kn.NrelMainIdentifier)
	if err != nil {
		return 0, err
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("%w: wait time %q is not a number of milliseconds", ErrInvalidTemplate, text)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
