package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"matrixci/internal/config"
	"matrixci/internal/logging"
	"matrixci/internal/output"
)

// env is what every command needs: configuration and a logger.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd builds the matrixci command tree.
func NewRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "matrixci",
		Short: "Expand CI build matrices into concrete jobs",
		Long: `matrixci - build-matrix expander for CI pipeline definitions.

Reads a pipeline document (trigger/pr branches, job templates with a platform
image and a named matrix of variables) and produces one job per active matrix
entry. Execution of the jobs is left to the CI runner.

Configuration is read from MATRIXCI_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat, _ = cmd.Flags().GetString("log-format")
			}
			e.cfg = cfg
			e.logger = logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			slog.SetDefault(e.logger)
			return nil
		},
	}
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "", "Log format: text or json")

	root.AddCommand(
		newExpandCmd(e),
		newValidateCmd(e),
		newSubmitCmd(e),
		newLedgerCmd(e),
		newPlansCmd(e),
		newKeygenCmd(e),
		newServeCmd(e),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		output.PrintError(root.ErrOrStderr(), err)
		os.Exit(1)
	}
}
