package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSignupCmd(a *app) *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			auth, err := a.client().Signup(cmd.Context(), email, password, name)
			if err != nil {
				return err
			}
			if err := a.saveToken(auth.Token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed up as %s\n", auth.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (at least 6 characters)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			auth, err := a.client().Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := a.saveToken(auth.Token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", auth.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			if err := a.client().Logout(cmd.Context()); err != nil {
				a.log.WithError(err).Warn("server logout failed, clearing local token")
			}
			if err := a.saveToken(""); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newLandingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "landing",
		Short: "Show which screen a logged-in user lands on",
		RunE: func(cmd *cobra.Command, _ []string) error {
			screen, err := a.client().Landing(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), screen)
			return nil
		},
	}
}
