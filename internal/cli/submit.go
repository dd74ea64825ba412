package cli

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

func newSubmitCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <pipeline.yml>",
		Short: "Send a pipeline to a matrixci server for expansion and dispatch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL := e.cfg.ServerURL
			if cmd.Flags().Changed("server") {
				serverURL, _ = cmd.Flags().GetString("server")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read pipeline file: %w", err)
			}

			endpoint := serverURL + "/pipelines?name=" + url.QueryEscape(filepath.Base(args[0]))
			client := &http.Client{Timeout: 30 * time.Second}
			resp, err := client.Post(endpoint, "application/x-yaml", bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("send request: %w", err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusCreated {
				return fmt.Errorf("server rejected pipeline (%s): %s", resp.Status, bytes.TrimSpace(body))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", bytes.TrimSpace(body))
			return nil
		},
	}
	cmd.Flags().String("server", "", "Server base URL (default $MATRIXCI_SERVER_URL)")
	return cmd
}
