package app

import (
	"context"
	"fmt"

	"github.com/vk/scagents/internal/agent"
	"github.com/vk/scagents/internal/ctxlog"
	"github.com/vk/scagents/internal/fsutil"
	"github.com/vk/scagents/internal/kbload"
	"github.com/vk/scagents/internal/keynodes"
	"github.com/vk/scagents/internal/scmemory"
	"github.com/vk/scagents/internal/template"
)

// kbExtension is the file extension of knowledge base sources.
const kbExtension = ".hcl"

// Run executes the main application logic based on the provided configuration.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close store: %w", cerr)
		}
	}()

	kn, err := keynodes.Resolve(ctx, store)
	if err != nil {
		return err
	}
	if err := a.loadKB(ctx, store, kn); err != nil {
		return err
	}

	var opts []template.Option
	if a.config.WaitInterval > 0 {
		opts = append(opts, template.WithWaitInterval(a.config.WaitInterval))
	}
	if a.config.WaitTimeout > 0 {
		opts = append(opts, template.WithWaitTimeout(a.config.WaitTimeout))
	}
	builder := template.NewBuilder(store, kn, opts...)

	var rep *report
	if a.config.Action != "" {
		rep, err = a.runAction(ctx, builder)
	} else {
		rep, err = a.applyTemplate(ctx, builder)
	}
	if err != nil {
		return err
	}

	if err := render(a.outW, a.config.Output, rep); err != nil {
		return fmt.Errorf("failed to render results: %w", err)
	}
	a.logger.Debug("App.Run method finished.")
	if !rep.Success {
		return ErrNotApplied
	}
	return nil
}

func (a *App) loadKB(ctx context.Context, store scmemory.Store, kn *keynodes.Keynodes) error {
	files, err := fsutil.Collect(kbExtension, a.config.KBPaths, a.config.KBPatterns)
	if err != nil {
		return fmt.Errorf("failed to find knowledge base files: %w", err)
	}
	if len(files) == 0 {
		a.logger.Warn("No knowledge base files found, using the store as is.")
		return nil
	}

	kb, err := kbload.New(store, kn).LoadFiles(ctx, files...)
	if err != nil {
		return fmt.Errorf("failed to load knowledge base: %w", err)
	}
	a.logger.Info("Knowledge base loaded.", "files", len(kb.Files), "templates", len(kb.Templates))
	return nil
}

func (a *App) applyTemplate(ctx context.Context, builder *template.Builder) (*report, error) {
	store := builder.Store()
	addr, err := resolve(ctx, store, a.config.Template)
	if err != nil {
		return nil, err
	}

	args := template.NewArguments(store)
	if a.config.Arguments != "" {
		set, err := resolve(ctx, store, a.config.Arguments)
		if err != nil {
			return nil, err
		}
		if err := args.CollectFromSet(ctx, set); err != nil {
			return nil, err
		}
	}

	tpl, err := builder.Build(ctx, addr)
	if err != nil {
		return nil, err
	}
	results := tpl.NewResults()
	ok, err := tpl.Apply(ctx, args, results)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Template applied.", "template", a.config.Template, "success", ok, "results", results.Size())
	return newReport(ctx, store, a.config.Template, tpl.Kind().String(), ok, results), nil
}

func (a *App) runAction(ctx context.Context, builder *template.Builder) (*report, error) {
	store := builder.Store()
	action, err := resolve(ctx, store, a.config.Action)
	if err != nil {
		return nil, err
	}

	out, err := agent.New(builder).Run(ctx, action)
	if err != nil {
		return nil, err
	}
	rep := newReport(ctx, store, scmemory.Label(ctx, store, out.Template), "", out.Status == agent.StatusSucceeded, out.Results)
	rep.Action = a.config.Action
	rep.InvocationID = out.InvocationID
	rep.Status = out.Status.String()
	return rep, nil
}
