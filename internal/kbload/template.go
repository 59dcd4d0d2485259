package kbload

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vk/scagents/internal/sc"
)

// kindClass maps a template block's kind to its kind class.
func (st *loadState) kindClass(kind string) (sc.Addr, bool) {
	kn := st.l.kn
	classes := map[string]sc.Addr{
		"search":         kn.SearchTemplate,
		"search_set":     kn.SearchSetTemplate,
		"not_search":     kn.NotSearchTemplate,
		"filter":         kn.FilterTemplate,
		"not_filter":     kn.NotFilterTemplate,
		"generate":       kn.GenerateTemplate,
		"wait":           kn.WaitTemplate,
		"fixed_strategy": kn.FixedStrategySearchTemplate,
	}
	c, ok := classes[kind]
	return c, ok
}

func (st *loadState) configureTemplate(ctx context.Context, name string, b *templateBlock) error {
	tpl := st.names[name]
	kn := st.l.kn

	class, ok := st.kindClass(b.Kind)
	if !ok {
		return fmt.Errorf("template %q: unknown kind %q", name, b.Kind)
	}
	if _, err := st.ensureArc(ctx, sc.ConstPermPosArc, class, tpl); err != nil {
		return fmt.Errorf("template %q: %w", name, err)
	}

	roles := []struct {
		role   sc.Addr
		target *string
	}{
		{kn.RrelStructure, b.Structure},
		{kn.RrelInputParameters, b.Input},
		{kn.RrelOutputParameters, b.Output},
		{kn.RrelEraseParameters, b.Erase},
		{kn.RrelSortParameter, b.Sort},
		{kn.RrelPositiveFilters, b.PositiveFilters},
		{kn.RrelNegativeFilters, b.NegativeFilters},
		{kn.RrelInitTemplate, b.Init},
		{kn.RrelNextTemplate, b.Next},
	}
	for _, r := range roles {
		if r.target == nil {
			continue
		}
		target, err := st.resolve(ctx, *r.target)
		if err != nil {
			return fmt.Errorf("template %q: %w", name, err)
		}
		if err := st.attachRole(ctx, tpl, r.role, target); err != nil {
			return fmt.Errorf("template %q: %w", name, err)
		}
	}

	if b.WaitTime != nil {
		link, err := st.waitLink(ctx, name+"_wait_time", *b.WaitTime)
		if err != nil {
			return fmt.Errorf("template %q: %w", name, err)
		}
		if err := st.attachRole(ctx, tpl, kn.RrelWaitTime, link); err != nil {
			return fmt.Errorf("template %q: %w", name, err)
		}
	}
	return nil
}

// attachRole creates `src -> role: target`.
func (st *loadState) attachRole(ctx context.Context, src, role, target sc.Addr) error {
	arc, err := st.ensureArc(ctx, sc.ConstPermPosArc, src, target)
	if err != nil {
		return err
	}
	_, err = st.ensureArc(ctx, sc.ConstPermPosArc, role, arc)
	return err
}

// waitLink finds or creates the named link holding a wait time in
// milliseconds.
func (st *loadState) waitLink(ctx context.Context, idtf string, ms int64) (sc.Addr, error) {
	if ms < 0 {
		return sc.EmptyAddr, fmt.Errorf("wait_time must not be negative, got %d", ms)
	}
	store := st.l.store
	link, ok, err := store.ResolveSystemIdentifier(ctx, idtf)
	if err != nil {
		return sc.EmptyAddr, err
	}
	if !ok {
		if link, err = store.CreateLink(ctx, sc.ConstLink); err != nil {
			return sc.EmptyAddr, err
		}
		if err := store.SetSystemIdentifier(ctx, link, idtf); err != nil {
			return sc.EmptyAddr, err
		}
	}
	if err := store.SetLinkContent(ctx, link, strconv.FormatInt(ms, 10)); err != nil {
		return sc.EmptyAddr, err
	}
	st.names[idtf] = link
	return link, nil
}
