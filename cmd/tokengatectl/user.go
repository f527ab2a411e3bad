package main

import (
	"fmt"

	"github.com/aussiebroadwan/tokengate/internal/identity/service"
	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
	"github.com/spf13/cobra"
)

func newUserCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the accounts that can log in",
	}
	cmd.AddCommand(newUserAddCmd(s), newUserPasswdCmd(s), newEnrollTOTPCmd(s), newDisableTOTPCmd(s))
	return cmd
}

func withUsers(s *settings, fn func(*service.UserService) error) error {
	db, err := openUsers(s)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(&service.UserService{Store: db, Issuer: s.TOTPIssuer})
}

func newUserAddCmd(s *settings) *cobra.Command {
	var password, role, tier string

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user. A password is generated when none is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			generated := password == ""
			if generated {
				var err error
				if password, err = cryptox.GeneratePassword(); err != nil {
					return err
				}
			}

			return withUsers(s, func(users *service.UserService) error {
				u, err := users.CreateUser(cmd.Context(), service.NewUser{
					Username: args[0],
					Password: password,
					Role:     role,
					Tier:     tier,
				})
				if err != nil {
					return fmt.Errorf("create user: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "created %s (%s) role=%s tier=%s\n", u.Username, u.ID, u.Role, u.Tier)
				if generated {
					fmt.Fprintf(out, "password: %s\n", password)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", "", "role claim (default USER)")
	cmd.Flags().StringVar(&tier, "tier", "", "subscription tier claim (default FREE)")
	return cmd
}

func newUserPasswdCmd(s *settings) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Set a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(s, func(users *service.UserService) error {
				if err := users.SetPassword(cmd.Context(), args[0], password); err != nil {
					return fmt.Errorf("set password: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "new password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newEnrollTOTPCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "enroll-totp <username>",
		Short: "Require a TOTP code at login and print the enrolment secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(s, func(users *service.UserService) error {
				secret, url, err := users.EnrollTOTP(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("enroll totp: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "secret: %s\n", secret)
				fmt.Fprintf(out, "url:    %s\n", url)
				return nil
			})
		},
	}
}

func newDisableTOTPCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "disable-totp <username>",
		Short: "Remove a user's TOTP second factor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(s, func(users *service.UserService) error {
				if err := users.DisableTOTP(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("disable totp: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "totp disabled for %s\n", args[0])
				return nil
			})
		},
	}
}
