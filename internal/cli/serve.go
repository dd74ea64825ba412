package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"matrixci/internal/app"
	"matrixci/internal/server"
)

func newServeCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the expansion and dispatch server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := e.cfg.Addr
			if cmd.Flags().Changed("addr") {
				addr, _ = cmd.Flags().GetString("addr")
			}
			rec, err := app.NewRecording(e.cfg, e.logger)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.New(rec.Runner, rec.Ledger, rec.Storage, e.logger).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default $MATRIXCI_ADDR)")
	return cmd
}
