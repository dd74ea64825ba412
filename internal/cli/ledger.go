package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"matrixci/internal/ledger"
	"matrixci/internal/output"
)

func newLedgerCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and verify the expansion ledger",
	}
	cmd.PersistentFlags().String("path", "", "Ledger file (default $MATRIXCI_LEDGER_PATH)")

	openLedger := func(cmd *cobra.Command) (*ledger.Ledger, error) {
		path := e.cfg.LedgerPath
		if cmd.Flags().Changed("path") {
			path, _ = cmd.Flags().GetString("path")
		}
		// Open creates missing files; a read-only command must not.
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("ledger %s: %w", path, err)
		}
		l, err := ledger.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open ledger %s: %w", path, err)
		}
		return l, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "inspect",
		Short: "List ledger entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger(cmd)
			if err != nil {
				return err
			}
			output.PrintLedger(cmd.OutOrStdout(), l.Entries())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Check hashes, links and signatures of every entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger(cmd)
			if err != nil {
				return err
			}
			if err := l.VerifyChain(); err != nil {
				return fmt.Errorf("ledger verification failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ledger verification OK (%d entries) %s\n", l.NextIndex(), l.Path())
			return nil
		},
	})
	return cmd
}
