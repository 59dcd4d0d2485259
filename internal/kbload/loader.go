package kbload

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"golang.org/x/sync/errgroup"

	"github.com/vk/scagents/internal/ctxlog"
	"github.com/vk/scagents/internal/keynodes"
	"github.com/vk/scagents/internal/sc"
	"github.com/vk/scagents/internal/scmemory"
)

// Loader writes HCL knowledge bases into a store.
type Loader struct {
	store scmemory.Store
	kn    *keynodes.Keynodes
}

// New creates a loader for store. kn must have been resolved against the
// same store.
func New(store scmemory.Store, kn *keynodes.Keynodes) *Loader {
	return &Loader{store: store, kn: kn}
}

// KB describes what a load produced.
type KB struct {
	// Files lists the sources in load order.
	Files []string
	// Names maps every identifier the load touched to its element.
	Names map[string]sc.Addr
	// Templates lists declared templates in declaration order.
	Templates []string
}

// Addr returns the element named idtf, or the empty address.
func (kb *KB) Addr(idtf string) sc.Addr {
	return kb.Names[idtf]
}

// LoadFiles parses the files concurrently and applies them in the given
// order.
func (l *Loader) LoadFiles(ctx context.Context, paths ...string) (*KB, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Knowledge base load started.", "file_count", len(paths))

	roots := make([]*fileRoot, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading knowledge base file %s: %w", path, err)
			}
			roots[i], err = parse(path, src)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return l.apply(ctx, paths, roots)
}

// LoadSource loads a single in-memory source. filename is used in
// diagnostics only.
func (l *Loader) LoadSource(ctx context.Context, filename string, src []byte) (*KB, error) {
	root, err := parse(filename, src)
	if err != nil {
		return nil, err
	}
	return l.apply(ctx, []string{filename}, []*fileRoot{root})
}

func parse(filename string, src []byte) (*fileRoot, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, nil, &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	return &root, nil
}

type declKind int

const (
	declNode declKind = iota
	declLink
	declConnector
	declSet
	declTemplate
)

type decl struct {
	kind      declKind
	file      string
	node      *nodeBlock
	link      *linkBlock
	connector *connectorBlock
	set       *setBlock
	template  *templateBlock
}

// loadState resolves names into elements during one load.
type loadState struct {
	l         *Loader
	decls     map[string]*decl
	order     []string
	names     map[string]sc.Addr
	resolving map[string]bool
}

func (l *Loader) apply(ctx context.Context, files []string, roots []*fileRoot) (*KB, error) {
	st := &loadState{
		l:         l,
		decls:     make(map[string]*decl),
		names:     make(map[string]sc.Addr),
		resolving: make(map[string]bool),
	}
	kb := &KB{Files: files, Names: st.names}

	for i, root := range roots {
		file := files[i]
		for _, b := range root.Nodes {
			if err := st.declare(b.Name, &decl{kind: declNode, file: file, node: b}); err != nil {
				return nil, err
			}
		}
		for _, b := range root.Links {
			if err := st.declare(b.Name, &decl{kind: declLink, file: file, link: b}); err != nil {
				return nil, err
			}
		}
		for _, b := range root.Connectors {
			if err := st.declare(b.Name, &decl{kind: declConnector, file: file, connector: b}); err != nil {
				return nil, err
			}
		}
		for _, b := range root.Sets {
			if err := st.declare(b.Name, &decl{kind: declSet, file: file, set: b}); err != nil {
				return nil, err
			}
		}
		for _, b := range root.Templates {
			if err := st.declare(b.Name, &decl{kind: declTemplate, file: file, template: b}); err != nil {
				return nil, err
			}
			kb.Templates = append(kb.Templates, b.Name)
		}
	}

	for _, name := range st.order {
		if _, err := st.resolve(ctx, name); err != nil {
			return nil, err
		}
	}

	attrArcs, err := st.linkAttributes(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range st.order {
		d := st.decls[name]
		var err error
		switch d.kind {
		case declNode:
			err = st.classify(ctx, name, d.node.Classes)
		case declSet:
			err = st.fillSet(ctx, name, d.set, attrArcs)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.file, err)
		}
	}
	for _, name := range st.order {
		d := st.decls[name]
		if d.kind != declTemplate {
			continue
		}
		if err := st.configureTemplate(ctx, name, d.template); err != nil {
			return nil, fmt.Errorf("%s: %w", d.file, err)
		}
	}

	ctxlog.FromContext(ctx).Debug("Knowledge base loaded.", "files", len(files), "names", len(st.names), "templates", len(kb.Templates))
	return kb, nil
}

func (st *loadState) declare(name string, d *decl) error {
	if name == "" {
		return fmt.Errorf("%s: block with an empty name", d.file)
	}
	if prev, ok := st.decls[name]; ok {
		return fmt.Errorf("%s: duplicate declaration of %q, first declared in %s", d.file, name, prev.file)
	}
	st.decls[name] = d
	st.order = append(st.order, name)
	return nil
}

// implicitType types a name that is used without being declared.
func implicitType(name string) sc.Type {
	switch {
	case strings.HasPrefix(name, "_"):
		return sc.VarNode
	case strings.HasPrefix(name, "concept_"):
		return sc.ConstClass
	case strings.HasPrefix(name, "rrel_"):
		return sc.ConstRole
	case strings.HasPrefix(name, "nrel_"):
		return sc.ConstNoRole
	default:
		return sc.ConstNode
	}
}

func declaredType(raw *string, def sc.Type) (sc.Type, error) {
	if raw == nil {
		return def, nil
	}
	return sc.ParseType(*raw)
}

// resolve returns the element named name, creating it when needed.
func (st *loadState) resolve(ctx context.Context, name string) (sc.Addr, error) {
	if a, ok := st.names[name]; ok {
		return a, nil
	}
	store := st.l.store

	existing, ok, err := store.ResolveSystemIdentifier(ctx, name)
	if err != nil {
		return sc.EmptyAddr, err
	}
	if ok {
		st.names[name] = existing
		return existing, nil
	}

	d, declared := st.decls[name]
	var a sc.Addr
	switch {
	case !declared:
		a, err = store.CreateNode(ctx, implicitType(name))
	case d.kind == declNode:
		a, err = st.createNode(ctx, d.node.Type, sc.ConstNode)
	case d.kind == declSet:
		a, err = st.createNode(ctx, d.set.Type, sc.ConstNode)
	case d.kind == declTemplate:
		a, err = store.CreateNode(ctx, sc.ConstNode)
	case d.kind == declLink:
		a, err = st.createLink(ctx, d.link)
	case d.kind == declConnector:
		a, err = st.createConnector(ctx, name, d.connector)
	}
	if err != nil {
		if declared {
			return sc.EmptyAddr, fmt.Errorf("%s: %q: %w", d.file, name, err)
		}
		return sc.EmptyAddr, fmt.Errorf("%q: %w", name, err)
	}

	if err := store.SetSystemIdentifier(ctx, a, name); err != nil {
		return sc.EmptyAddr, fmt.Errorf("naming %q: %w", name, err)
	}
	st.names[name] = a
	return a, nil
}

func (st *loadState) createNode(ctx context.Context, raw *string, def sc.Type) (sc.Addr, error) {
	typ, err := declaredType(raw, def)
	if err != nil {
		return sc.EmptyAddr, err
	}
	return st.l.store.CreateNode(ctx, typ)
}

func (st *loadState) createLink(ctx context.Context, b *linkBlock) (sc.Addr, error) {
	typ, err := declaredType(b.Type, sc.ConstLink)
	if err != nil {
		return sc.EmptyAddr, err
	}
	a, err := st.l.store.CreateLink(ctx, typ)
	if err != nil {
		return sc.EmptyAddr, err
	}

	content, ok, err := linkContent(b.Content)
	if err != nil {
		return sc.EmptyAddr, err
	}
	if ok {
		if err := st.l.store.SetLinkContent(ctx, a, content); err != nil {
			return sc.EmptyAddr, err
		}
	}
	return a, nil
}

// linkContent evaluates the content attribute and renders any primitive
// value as a string.
func linkContent(expr hcl.Expression) (string, bool, error) {
	if expr == nil {
		return "", false, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return "", false, fmt.Errorf("evaluating link content: %w", diags)
	}
	if val.IsNull() {
		return "", false, nil
	}
	str, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", false, fmt.Errorf("link content must be a string, number or bool: %w", err)
	}
	if !str.IsKnown() || str.IsNull() {
		return "", false, nil
	}
	return str.AsString(), true, nil
}

func (st *loadState) createConnector(ctx context.Context, name string, b *connectorBlock) (sc.Addr, error) {
	if st.resolving[name] {
		return sc.EmptyAddr, fmt.Errorf("connector %q depends on itself", name)
	}
	st.resolving[name] = true
	defer delete(st.resolving, name)

	typ, err := declaredType(b.Type, sc.ConstPermPosArc)
	if err != nil {
		return sc.EmptyAddr, err
	}
	from, err := st.resolve(ctx, b.From)
	if err != nil {
		return sc.EmptyAddr, err
	}
	to, err := st.resolve(ctx, b.To)
	if err != nil {
		return sc.EmptyAddr, err
	}
	return st.l.store.CreateConnector(ctx, typ, from, to)
}

// ensureArc returns an existing connector of exactly typ from src to tgt, or
// creates one.
func (st *loadState) ensureArc(ctx context.Context, typ sc.Type, src, tgt sc.Addr) (sc.Addr, error) {
	store := st.l.store
	existing, err := store.Iterate3(ctx, sc.Fixed(src), typ, sc.Fixed(tgt))
	if err != nil {
		return sc.EmptyAddr, err
	}
	for _, tr := range existing {
		t, err := store.ElementType(ctx, tr.Connector)
		if err != nil {
			return sc.EmptyAddr, err
		}
		if t == typ {
			return tr.Connector, nil
		}
	}
	return store.CreateConnector(ctx, typ, src, tgt)
}

// linkAttributes creates the attribute arcs of every connector and returns
// them per connector.
func (st *loadState) linkAttributes(ctx context.Context) (map[sc.Addr][]sc.Addr, error) {
	out := make(map[sc.Addr][]sc.Addr)
	for _, name := range st.order {
		d := st.decls[name]
		if d.kind != declConnector || len(d.connector.Attrs) == 0 {
			continue
		}
		conn := st.names[name]
		typ, err := st.l.store.ElementType(ctx, conn)
		if err != nil {
			return nil, err
		}
		attrType := sc.ConstPermPosArc
		if typ.IsVar() {
			attrType = sc.VarPermPosArc
		}
		for _, attr := range d.connector.Attrs {
			rel, err := st.resolve(ctx, attr)
			if err != nil {
				return nil, err
			}
			arc, err := st.ensureArc(ctx, attrType, rel, conn)
			if err != nil {
				return nil, fmt.Errorf("%s: attribute %q of %q: %w", d.file, attr, name, err)
			}
			out[conn] = append(out[conn], arc)
		}
	}
	return out, nil
}

func (st *loadState) classify(ctx context.Context, name string, classes []string) error {
	for _, class := range classes {
		c, err := st.resolve(ctx, class)
		if err != nil {
			return err
		}
		if _, err := st.ensureArc(ctx, sc.ConstPermPosArc, c, st.names[name]); err != nil {
			return fmt.Errorf("classifying %q as %q: %w", name, class, err)
		}
	}
	return nil
}

func (st *loadState) fillSet(ctx context.Context, name string, b *setBlock, attrArcs map[sc.Addr][]sc.Addr) error {
	set := st.names[name]
	var memberArcs []sc.Addr
	for _, m := range b.Members {
		elem, err := st.resolve(ctx, m)
		if err != nil {
			return err
		}
		arc, err := st.ensureArc(ctx, sc.ConstPermPosArc, set, elem)
		if err != nil {
			return fmt.Errorf("adding %q to set %q: %w", m, name, err)
		}
		memberArcs = append(memberArcs, arc)

		for _, attr := range attrArcs[elem] {
			if _, err := st.ensureArc(ctx, sc.ConstPermPosArc, set, attr); err != nil {
				return fmt.Errorf("adding attributes of %q to set %q: %w", m, name, err)
			}
		}
	}

	if !b.Oriented || len(memberArcs) == 0 {
		return nil
	}
	kn := st.l.kn
	if _, err := st.ensureArc(ctx, sc.ConstPermPosArc, kn.Rrel1, memberArcs[0]); err != nil {
		return fmt.Errorf("ordering set %q: %w", name, err)
	}
	for i := 1; i < len(memberArcs); i++ {
		seq, err := st.ensureArc(ctx, sc.ConstCommonArc, memberArcs[i-1], memberArcs[i])
		if err != nil {
			return fmt.Errorf("ordering set %q: %w", name, err)
		}
		if _, err := st.ensureArc(ctx, sc.ConstPermPosArc, kn.NrelBasicSequence, seq); err != nil {
			return fmt.Errorf("ordering set %q: %w", name, err)
		}
	}
	return nil
}
