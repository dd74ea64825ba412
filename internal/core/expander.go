package core

import (
	"fmt"

	"matrixci/pkg/utils"
)

// ExpandOptions tune expansion.
type ExpandOptions struct {
	// DefaultPythonVersion is used when neither the pipeline, the job template
	// nor the matrix entry sets python.version.
	DefaultPythonVersion string
}

// Expand turns a pipeline into its ordered job list: one job per enabled matrix
// entry, templates and entries in declaration order, no cross product.
func Expand(p *Pipeline, opts ExpandOptions) ([]Job, error) {
	if p == nil {
		return nil, &ConfigurationError{Msg: "no pipeline"}
	}

	var base Bindings
	if opts.DefaultPythonVersion != "" {
		base = Bindings{{Name: VarPythonVersion, Value: opts.DefaultPythonVersion}}
	}

	jobs := make([]Job, 0)
	ids := make(map[string]bool)
	for _, tpl := range p.Jobs {
		if err := tpl.validate(); err != nil {
			return nil, err
		}
		params := tpl.Parameters
		for _, entry := range params.Matrix.Entries {
			if !entry.Enabled {
				continue
			}
			env := layer(base, p.Variables, params.Variables, entry.Bindings)
			vars, err := NewVariables(env)
			if err != nil {
				if cfg, ok := err.(*ConfigurationError); ok {
					cfg.Template, cfg.Label, cfg.Line = params.Name, entry.Label, entry.Line
				}
				return nil, err
			}
			if vars.PythonVersion == "" {
				return nil, &ConfigurationError{
					Template: params.Name,
					Label:    entry.Label,
					Line:     entry.Line,
					Msg:      "no python.version and no pipeline-level default",
				}
			}

			id := uniqueID(ids, utils.Slug(params.Name+"_"+entry.Label))

			jobs = append(jobs, Job{
				ID:        id,
				Name:      params.Name + " " + entry.Label,
				Group:     params.Name,
				Label:     entry.Label,
				Template:  tpl.Template,
				VMImage:   params.VMImage,
				Variables: vars,
				Env:       env,
			})
		}
	}
	return jobs, nil
}

// uniqueID returns base, or base-N with the smallest N >= 2 not yet taken, and
// marks the result as taken.
func uniqueID(taken map[string]bool, base string) string {
	id := base
	for n := 2; taken[id]; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	taken[id] = true
	return id
}

// ExpandFor expands p only if it is triggered by event on branch; otherwise it
// returns an empty job list.
func ExpandFor(p *Pipeline, opts ExpandOptions, event Event, branch string) ([]Job, error) {
	ok, err := p.Triggered(event, branch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Job{}, nil
	}
	return Expand(p, opts)
}

func (t JobTemplate) validate() error {
	params := t.Parameters
	fail := func(msg string) error {
		return &ConfigurationError{Template: params.Name, Line: t.Line, Msg: msg}
	}
	switch {
	case t.Template == "":
		return fail("missing template reference")
	case params.Name == "":
		return fail("missing parameters.name")
	case params.VMImage == "":
		return fail("missing parameters.vmImage")
	case len(params.Matrix.Entries) == 0:
		return fail("matrix is empty")
	}
	return nil
}
