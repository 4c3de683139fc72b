package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	authmanager "github.com/goliatone/go-authmanager"
)

func newAPIKeyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Issue, list, revoke and verify api keys.",
	}

	var label string
	issue := &cobra.Command{
		Use:   "issue [username]",
		Short: "Issue a key. The secret is printed once and never stored.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.manager.UserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			key, err := a.manager.APIKeys().Issue(cmd.Context(), user.ID, label)
			if err != nil {
				return err
			}
			a.print(map[string]any{
				"id":           key.ID,
				"api_identity": key.Identity,
				"api_secret":   key.Secret,
				"header":       key.Header(),
			})
			return nil
		},
	}
	issue.Flags().StringVar(&label, "label", "", "free-form label")

	cmd.AddCommand(
		issue,
		&cobra.Command{
			Use:   "list [username]",
			Short: "List a user's keys.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				user, err := a.manager.UserByUsername(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				// the operator lists on behalf of the owner
				keys, err := a.manager.APIKeys().ListFor(cmd.Context(), authmanager.NewIdentityFromUser(user), user.ID)
				if err != nil {
					return err
				}
				a.print(keys)
				return nil
			},
		},
		&cobra.Command{
			Use:   "revoke [id]",
			Short: "Revoke a key by id.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return err
				}
				if err := a.manager.APIKeys().Revoke(cmd.Context(), authmanager.SystemIdentity(), id); err != nil {
					return err
				}
				a.print(map[string]any{"revoked": id})
				return nil
			},
		},
		&cobra.Command{
			Use:   "verify [identity.secret]",
			Short: "Check a key and print the identity it resolves to.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				identity, err := a.manager.Authenticator().AuthenticateAPIKeyHeader(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				a.print(identityView(identity))
				return nil
			},
		},
	)
	return cmd
}

func identityView(identity authmanager.Identity) map[string]any {
	return map[string]any{
		"id":       identity.ID(),
		"username": identity.Username(),
		"email":    identity.Email(),
	}
}
