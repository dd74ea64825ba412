package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"matrixci/internal/ctxlog"
	"matrixci/pkg/utils"
)

// Plan is the recorded result of one expansion.
type Plan struct {
	ID         string    `json:"id" yaml:"id"`
	Source     string    `json:"source" yaml:"source"`
	SourceHash string    `json:"sourceHash" yaml:"sourceHash"`
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
	Jobs       []Job     `json:"jobs" yaml:"jobs"`
}

// PlanStore persists plans.
type PlanStore interface {
	SavePlan(plan *Plan) (string, error)
}

// Recorder appends an audit record for a plan.
type Recorder interface {
	Record(plan *Plan) error
}

// Runner ties together Parser + Resolver + Expander + storage + ledger.
// Resolver, Store and Recorder are optional.
type Runner struct {
	Options  ExpandOptions
	Resolver TemplateResolver
	Store    PlanStore
	Recorder Recorder

	now   func() time.Time
	newID func() string
}

func NewRunner(opts ExpandOptions) *Runner {
	return &Runner{
		Options: opts,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Run parses and expands a pipeline document, then stores and records the plan.
// Storage and ledger failures are logged and do not fail the run.
func (r *Runner) Run(ctx context.Context, source string, data []byte) (*Plan, error) {
	logger := ctxlog.FromContext(ctx).With("source", source)

	pipeline, err := ParsePipeline(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	if r.Resolver != nil {
		if err := ResolveTemplates(pipeline, r.Resolver); err != nil {
			return nil, fmt.Errorf("resolve templates in %s: %w", source, err)
		}
	}
	jobs, err := Expand(pipeline, r.Options)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", source, err)
	}

	plan := &Plan{
		ID:         r.newID(),
		Source:     source,
		SourceHash: utils.HashBytes(data),
		CreatedAt:  r.now().UTC(),
		Jobs:       jobs,
	}
	logger.Info("Pipeline expanded.", "plan", plan.ID, "templates", len(pipeline.Jobs), "jobs", len(jobs))

	if r.Store != nil {
		if path, err := r.Store.SavePlan(plan); err != nil {
			logger.Warn("Cannot save plan.", "plan", plan.ID, "error", err)
		} else {
			logger.Debug("Plan saved.", "plan", plan.ID, "path", path)
		}
	}
	if r.Recorder != nil {
		if err := r.Recorder.Record(plan); err != nil {
			logger.Warn("Cannot record plan in ledger.", "plan", plan.ID, "error", err)
		} else {
			logger.Debug("Plan recorded in ledger.", "plan", plan.ID)
		}
	}
	return plan, nil
}
