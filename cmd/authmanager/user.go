package main

import (
	"github.com/spf13/cobra"

	authmanager "github.com/goliatone/go-authmanager"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Create, inspect and transition users.",
	}
	cmd.AddCommand(
		newUserCreateCmd(a),
		newUserGetCmd(a),
		newUserListCmd(a),
		newUserPasswdCmd(a),
		newUserTransitionCmd(a, "activate", "Reactivate an inactive user.", authmanager.TriggerActivate),
		newUserTransitionCmd(a, "deactivate", "Deactivate an active user.", authmanager.TriggerDeactivate),
		newUserTransitionCmd(a, "delete", "Delete a user with its memberships and grants.", authmanager.TriggerDelete),
		newUserRolesCmd(a),
	)
	return cmd
}

func newUserCreateCmd(a *app) *cobra.Command {
	var msg authmanager.RegisterUserMessage
	cmd := &cobra.Command{
		Use:     "create [username]",
		Short:   "Register a user.",
		Example: "authmanager user create alice --email alice@example.com --password s3cret",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				msg.Username = args[0]
			}
			if msg.PasswordConfirm == "" {
				msg.PasswordConfirm = msg.Password
			}
			user, err := a.manager.Register(cmd.Context(), msg)
			if err != nil {
				return err
			}
			a.print(user)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&msg.Email, "email", "", "email address")
	f.StringVar(&msg.Phone, "phone", "", "phone number")
	f.StringVar(&msg.Password, "password", "", "password")
	f.BoolVar(&msg.IsAdministrator, "admin", false, "grant the global administrator flag")
	f.BoolVar(&msg.UseHashid, "hashid", false, "derive the user id from the email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get [username]",
		Short: "Show a user with its groups and roles.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.manager.UserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			profile, err := a.manager.Profile(cmd.Context(), user.ID)
			if err != nil {
				return err
			}
			a.print(profile)
			return nil
		},
	}
}

func newUserListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := a.manager.Users(cmd.Context())
			if err != nil {
				return err
			}
			a.print(users)
			return nil
		},
	}
}

func newUserPasswdCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "passwd [username]",
		Short: "Set a user's password.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.manager.UserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.manager.Credentials().ChangeCredential(cmd.Context(), authmanager.SystemIdentity(), user.ID, "", password); err != nil {
				return err
			}
			a.print(map[string]any{"user_id": user.ID, "password_changed": true})
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserTransitionCmd(a *app, use, short string, trigger authmanager.Trigger) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   use + " [username]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.manager.UserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			updated, err := a.manager.StateMachine().Transition(
				cmd.Context(),
				authmanager.SystemIdentity(),
				user.ID,
				trigger,
				authmanager.WithTransitionReason(reason),
			)
			if err != nil {
				return err
			}
			a.print(updated)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded with the transition")
	return cmd
}

func newUserRolesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "roles [username]",
		Short: "Show the roles a user holds in each group.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.manager.UserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			roles, err := a.manager.Groups().UserRoles(cmd.Context(), user.ID)
			if err != nil {
				return err
			}
			a.print(roles)
			return nil
		},
	}
}
