package main

import (
	"fmt"

	"github.com/aussiebroadwan/tokengate/internal/identity/service"
	"github.com/spf13/cobra"
)

func newSessionCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Revoke sessions and access tokens in the credential store",
	}
	cmd.AddCommand(newRevokeAllCmd(s), newRevokeTokenCmd(s))
	return cmd
}

func newRevokeAllCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke-all <subject>",
		Short: "End every session of a user. Access tokens already issued expire on their own.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := s.Store.Open()
			if err != nil {
				return err
			}
			defer creds.Close()

			tokens := &service.TokenService{Store: creds}
			n, err := tokens.LogoutAll(cmd.Context(), args[0], "")
			if err != nil {
				return fmt.Errorf("revoke sessions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %d sessions\n", n)
			return nil
		},
	}
}

func newRevokeTokenCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke-token <access-token>",
		Short: "Reject an access token at the gateway for the rest of its lifetime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := s.Codec.Codec(false)
			if err != nil {
				return err
			}
			creds, err := s.Store.Open()
			if err != nil {
				return err
			}
			defer creds.Close()

			tokens := &service.TokenService{Codec: codec, Store: creds}
			if err := tokens.RevokeAccess(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("revoke token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "token revoked")
			return nil
		},
	}
}
