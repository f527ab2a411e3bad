package main

import (
	"fmt"
	"os"

	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate token signing material",
	}
	cmd.AddCommand(newGenerateEdDSACmd(), newGenerateSecretCmd())
	return cmd
}

func newGenerateEdDSACmd() *cobra.Command {
	var out, pub string

	cmd := &cobra.Command{
		Use:   "generate-eddsa",
		Short: "Write an Ed25519 signing key for the identity service and its public half for the gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := cryptox.GenerateEd25519Key()
			if err != nil {
				return err
			}
			pubPEM, err := cryptox.Ed25519PublicPEM(priv)
			if err != nil {
				return err
			}

			if err := os.WriteFile(out, priv, 0o600); err != nil {
				return fmt.Errorf("write private key: %w", err)
			}
			if err := os.WriteFile(pub, pubPEM, 0o644); err != nil {
				return fmt.Errorf("write public key: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "private key: %s (JWT_PRIVATE_KEY_FILE, identity service)\n", out)
			fmt.Fprintf(w, "public key:  %s (JWT_PUBLIC_KEY_FILE, gateway)\n", pub)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "signing.pem", "private key output path")
	cmd.Flags().StringVar(&pub, "pub", "verify.pem", "public key output path")
	return cmd
}

func newGenerateSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-secret",
		Short: "Print a random 256-bit HS256 secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := cryptox.RandomString(32)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
}
