package main

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-authmanager/config"
)

func newLoginCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login [username or email]",
		Short: "Authenticate and print an identity token.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSigningKey(); err != nil {
				return err
			}
			token, err := a.manager.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			return a.printToken(cmd, token)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [token]",
		Short: "Exchange a valid identity token for a new one.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSigningKey(); err != nil {
				return err
			}
			token, err := a.manager.RefreshToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printToken(cmd, token)
		},
	}
}

func (a *app) requireSigningKey() error {
	if a.cfg.GetSigningKey() == "" {
		return goerrors.New(config.KeySigningKey+" is required to issue tokens", goerrors.CategoryValidation)
	}
	return nil
}

func (a *app) printToken(cmd *cobra.Command, token string) error {
	identity, err := a.manager.IdentityFromToken(cmd.Context(), token)
	if err != nil {
		return err
	}
	view := identityView(identity)
	view["token"] = token
	a.print(view)
	return nil
}
