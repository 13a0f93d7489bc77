package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/contiapp/conti-server/internal/domain"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newUsersListCommand(ctx))
	cmd.AddCommand(newUsersRoleCommand(ctx, "promote", "Grant manager rights", domain.RoleManager))
	cmd.AddCommand(newUsersRoleCommand(ctx, "demote", "Revoke manager rights", domain.RoleUser))
	return cmd
}

func newUsersListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := ctx.userService()
			if err != nil {
				return err
			}
			list, err := users.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, u := range list {
				lastLogin := "-"
				if !u.LastLoginAt.IsZero() {
					lastLogin = u.LastLoginAt.Local().Format("2006-01-02 15:04")
				}
				rows = append(rows, []string{u.ID, u.DisplayName, u.Email, string(u.Role), lastLogin})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(out, []string{"ID", "Name", "Email", "Role", "Last Login"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newUsersRoleCommand(ctx *commandContext, use, short string, role domain.Role) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := ctx.userService()
			if err != nil {
				return err
			}
			user, err := users.SetRole(cmd.Context(), args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.ID, user.Role)
			return nil
		},
	}
}
