package cli

import (
	"os"

	"github.com/spf13/cobra"

	"matrixci/internal/core"
	"matrixci/internal/output"
	"matrixci/internal/storage"
)

func newPlansCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "List and show saved expansion plans",
	}
	cmd.PersistentFlags().String("dir", "", "Plan directory (default $MATRIXCI_PLAN_DIR)")

	planStorage := func(cmd *cobra.Command) *storage.PlanStorage {
		dir := e.cfg.PlanDir
		if cmd.Flags().Changed("dir") {
			dir, _ = cmd.Flags().GetString("dir")
		}
		return storage.NewPlanStorage(dir)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved plans, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ps := planStorage(cmd)
			paths, err := ps.ListPlans()
			if err != nil {
				return err
			}
			plans := make([]*core.Plan, 0, len(paths))
			for _, path := range paths {
				plan, err := ps.LoadPlan(path)
				if err != nil {
					return err
				}
				plans = append(plans, plan)
			}
			output.PrintPlans(cmd.OutOrStdout(), plans)
			return nil
		},
	})

	show := &cobra.Command{
		Use:   "show <plan-id|file>",
		Short: "Print the jobs of a saved plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatStr, _ := cmd.Flags().GetString("format")
			format, err := output.ParseFormat(formatStr)
			if err != nil {
				return err
			}

			ps := planStorage(cmd)
			var plan *core.Plan
			if info, statErr := os.Stat(args[0]); statErr == nil && !info.IsDir() {
				plan, err = ps.LoadPlan(args[0])
			} else {
				plan, err = ps.FindPlan(args[0])
			}
			if err != nil {
				return err
			}
			return output.PrintJobs(cmd.OutOrStdout(), plan.Jobs, format)
		},
	}
	show.Flags().StringP("format", "o", "", "Output format: table, json, yaml, env")
	cmd.AddCommand(show)
	return cmd
}
