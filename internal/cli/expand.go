package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"matrixci/internal/app"
	"matrixci/internal/core"
	"matrixci/internal/ctxlog"
	"matrixci/internal/output"
)

func newExpandCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expand <pipeline.yml>",
		Short: "Print the jobs a pipeline expands to",
		Long: `Expand every job template's matrix into concrete jobs, in declaration order.

Examples:
  matrixci expand azure-pipelines.yml
  matrixci expand azure-pipelines.yml --format yaml
  matrixci expand azure-pipelines.yml --event pr --branch master
  matrixci expand azure-pipelines.yml --record     # save plan and append to ledger`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatStr, _ := cmd.Flags().GetString("format")
			eventStr, _ := cmd.Flags().GetString("event")
			branch, _ := cmd.Flags().GetString("branch")
			noResolve, _ := cmd.Flags().GetBool("no-resolve")
			record, _ := cmd.Flags().GetBool("record")

			format, err := output.ParseFormat(formatStr)
			if err != nil {
				return err
			}
			path := args[0]
			opts := e.expandOptions(cmd)

			if record {
				if branch != "" {
					return fmt.Errorf("--record cannot be combined with --branch")
				}
				plan, err := e.record(cmd.Context(), path, opts, noResolve)
				if err != nil {
					return err
				}
				return output.PrintJobs(cmd.OutOrStdout(), plan.Jobs, format)
			}

			pipeline, err := loadResolved(path, noResolve)
			if err != nil {
				return err
			}

			var jobs []core.Job
			if branch != "" {
				event, err := core.ParseEvent(eventStr)
				if err != nil {
					return err
				}
				jobs, err = core.ExpandFor(pipeline, opts, event, branch)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					e.logger.Info("Pipeline is not triggered.", "event", event, "branch", branch)
				}
			} else if jobs, err = core.Expand(pipeline, opts); err != nil {
				return err
			}
			return output.PrintJobs(cmd.OutOrStdout(), jobs, format)
		},
	}
	cmd.Flags().StringP("format", "o", "", "Output format: table, json, yaml, env (default table on a terminal, json otherwise)")
	cmd.Flags().String("event", "push", "Trigger event used with --branch: push or pr")
	cmd.Flags().String("branch", "", "Only expand if the pipeline triggers on this branch")
	cmd.Flags().Bool("no-resolve", false, "Do not check that template files exist")
	cmd.Flags().Bool("record", false, "Save the plan and append it to the ledger")
	cmd.Flags().String("default-python", "", "python.version used when nothing else sets one")
	return cmd
}

func (e *env) expandOptions(cmd *cobra.Command) core.ExpandOptions {
	opts := core.ExpandOptions{DefaultPythonVersion: e.cfg.DefaultPython}
	if cmd.Flags().Changed("default-python") {
		opts.DefaultPythonVersion, _ = cmd.Flags().GetString("default-python")
	}
	return opts
}

func (e *env) record(ctx context.Context, path string, opts core.ExpandOptions, noResolve bool) (*core.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rec, err := app.NewRecording(e.cfg, e.logger)
	if err != nil {
		return nil, err
	}
	rec.Runner.Options = opts
	if !noResolve {
		rec.Runner.Resolver = core.DirResolver{Dir: filepath.Dir(path)}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return rec.Runner.Run(ctxlog.WithLogger(ctx, e.logger), path, data)
}

// loadResolved loads a pipeline file and, unless disabled, checks its template references
// relative to the file's directory.
func loadResolved(path string, noResolve bool) (*core.Pipeline, error) {
	pipeline, err := core.LoadPipeline(path)
	if err != nil {
		return nil, err
	}
	if !noResolve {
		if err := core.ResolveTemplates(pipeline, core.DirResolver{Dir: filepath.Dir(path)}); err != nil {
			return nil, err
		}
	}
	return pipeline, nil
}
