package cli

import (
	"github.com/spf13/cobra"

	"matrixci/internal/core"
	"matrixci/internal/output"
)

func newValidateCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <pipeline.yml>",
		Short: "Check that a pipeline parses, resolves and expands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noResolve, _ := cmd.Flags().GetBool("no-resolve")
			pipeline, err := loadResolved(args[0], noResolve)
			if err != nil {
				return err
			}
			jobs, err := core.Expand(pipeline, e.expandOptions(cmd))
			if err != nil {
				return err
			}
			output.PrintSummary(cmd.OutOrStdout(), len(pipeline.Jobs), jobs)
			return nil
		},
	}
	cmd.Flags().Bool("no-resolve", false, "Do not check that template files exist")
	cmd.Flags().String("default-python", "", "python.version used when nothing else sets one")
	return cmd
}
