package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newGroupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups, memberships and role grants.",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "create [name]",
			Short: "Create a group.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				group, err := a.manager.Groups().Create(cmd.Context(), args[0], nil)
				if err != nil {
					return err
				}
				a.print(group)
				return nil
			},
		},
		&cobra.Command{
			Use:   "get [name]",
			Short: "Show a group.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				group, err := a.manager.Groups().Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				a.print(group)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List groups.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				groups, err := a.manager.Groups().List(cmd.Context())
				if err != nil {
					return err
				}
				a.print(groups)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete [name]",
			Short: "Delete a group.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.manager.Groups().Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.print(map[string]any{"deleted": args[0]})
				return nil
			},
		},
		&cobra.Command{
			Use:   "add [group] [username...]",
			Short: "Add users to a group.",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				ids, err := a.userIDs(cmd.Context(), args[1:])
				if err != nil {
					return err
				}
				return a.manager.Groups().AddMembers(cmd.Context(), args[0], ids)
			},
		},
		&cobra.Command{
			Use:   "remove [group] [username...]",
			Short: "Remove users, and their roles, from a group.",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				ids, err := a.userIDs(cmd.Context(), args[1:])
				if err != nil {
					return err
				}
				return a.manager.Groups().RemoveMembers(cmd.Context(), args[0], ids)
			},
		},
		&cobra.Command{
			Use:     "grant [group] [username] [role...]",
			Short:   "Grant roles, adding the user to the group when needed.",
			Example: "authmanager group grant staff alice editor reviewer",
			Args:    cobra.MinimumNArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.manager.Groups().GrantMapping(cmd.Context(), args[0], map[string][]string{args[1]: args[2:]})
			},
		},
		&cobra.Command{
			Use:   "revoke [group] [username] [role...]",
			Short: "Revoke roles; a member left without roles leaves the group.",
			Args:  cobra.MinimumNArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.manager.Groups().RevokeMapping(cmd.Context(), args[0], map[string][]string{args[1]: args[2:]})
			},
		},
		&cobra.Command{
			Use:   "members [group]",
			Short: "List the members of a group with their roles.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				members, err := a.manager.Groups().Members(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				a.print(members)
				return nil
			},
		},
	)
	return cmd
}

func (a *app) userIDs(ctx context.Context, usernames []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(usernames))
	for _, name := range usernames {
		user, err := a.manager.UserByUsername(ctx, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, user.ID)
	}
	return ids, nil
}
