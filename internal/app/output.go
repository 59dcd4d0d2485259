package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/vk/scagents/internal/scmemory"
	"github.com/vk/scagents/internal/template"
)

// report is the rendered outcome of one run.
type report struct {
	Template     string              `json:"template" yaml:"template"`
	Kind         string              `json:"kind,omitempty" yaml:"kind,omitempty"`
	Action       string              `json:"action,omitempty" yaml:"action,omitempty"`
	InvocationID string              `json:"invocation_id,omitempty" yaml:"invocation_id,omitempty"`
	Status       string              `json:"status,omitempty" yaml:"status,omitempty"`
	Success      bool                `json:"success" yaml:"success"`
	Results      []map[string]string `json:"results" yaml:"results"`
}

// newReport flattens results into rows of class label -> element label.
func newReport(ctx context.Context, store scmemory.Store, tpl, kind string, ok bool, results *template.Results) *report {
	rep := &report{Template: tpl, Kind: kind, Success: ok, Results: []map[string]string{}}
	if results == nil {
		return rep
	}
	results.ForEach(func(r template.Result) {
		row := make(map[string]string)
		for _, class := range r.Classes() {
			elem, _ := r.Get(class)
			row[scmemory.Label(ctx, store, class)] = scmemory.Label(ctx, store, elem)
		}
		rep.Results = append(rep.Results, row)
	})
	return rep
}

func render(w io.Writer, format string, rep *report) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	default:
		return renderText(w, rep)
	}
}

func renderText(w io.Writer, rep *report) error {
	outcome := "applied"
	if !rep.Success {
		outcome = "not applied"
	}
	if rep.Action != "" {
		if _, err := fmt.Fprintf(w, "Action %s (%s): %s\n", rep.Action, rep.InvocationID, rep.Status); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "Template %s %s, %d result(s)\n", rep.Template, outcome, len(rep.Results)); err != nil {
		return err
	}

	for i, row := range rep.Results {
		classes := make([]string, 0, len(row))
		for c := range row {
			classes = append(classes, c)
		}
		sort.Strings(classes)

		if _, err := fmt.Fprintf(w, "  %d.\n", i+1); err != nil {
			return err
		}
		for _, c := range classes {
			if _, err := fmt.Fprintf(w, "    %s -> %s\n", c, row[c]); err != nil {
				return err
			}
		}
	}
	return nil
}
