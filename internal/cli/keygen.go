package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"matrixci/internal/security"
)

func newKeygenCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate the ed25519 key pair that signs ledger entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := e.cfg.KeyDir
			if cmd.Flags().Changed("dir") {
				dir, _ = cmd.Flags().GetString("dir")
			}
			force, _ := cmd.Flags().GetBool("force")

			if _, err := os.Stat(filepath.Join(dir, security.PublicKeyFile)); err == nil && !force {
				return errors.New("key pair already exists in " + dir + " (use --force to replace it)")
			}

			kp, err := security.GenerateKeyPair()
			if err != nil {
				return fmt.Errorf("keygen: %w", err)
			}
			if err := kp.Save(dir); err != nil {
				return fmt.Errorf("save keys: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s and %s to %s\n", security.PublicKeyFile, security.PrivateKeyFile, dir)
			fmt.Fprintln(out, "PUBLIC_KEY_BASE64:")
			fmt.Fprintln(out, base64.StdEncoding.EncodeToString(kp.Public))
			return nil
		},
	}
	cmd.Flags().String("dir", "", "Key directory (default $MATRIXCI_KEY_DIR)")
	cmd.Flags().Bool("force", false, "Overwrite an existing key pair")
	return cmd
}
