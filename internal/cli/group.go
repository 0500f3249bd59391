package cli

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/trickstertwo/xstream"
)

// newGroupCommand constructs the `group` command group.
func newGroupCommand(open Opener) *cobra.Command {
	groupCmd := &cobra.Command{Use: "group", Short: "Consumer group operations"}
	groupCmd.AddCommand(
		newGroupCreateCommand(open),
		newGroupDestroyCommand(open),
	)
	return groupCmd
}

// newGroupCreateCommand constructs the `group create` subcommand.
func newGroupCreateCommand(open Opener) *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a consumer group, creating the stream if needed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stream, _ := cmd.Flags().GetString("stream")
			group, _ := cmd.Flags().GetString("group")
			start, _ := cmd.Flags().GetString("start")
			strict, _ := cmd.Flags().GetBool("fail-if-exists")

			opts := []xstream.GroupOption{xstream.WithStartID(start)}
			if strict {
				opts = append(opts, xstream.WithGroupExistsPolicy(xstream.GroupExistsFail))
			}
			return withClient(cmd, open, func(c *xstream.Client) error {
				if err := c.CreateGroup(cmd.Context(), stream, group, opts...); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
				return nil
			})
		},
	}
	createCmd.Flags().String("stream", "", "Stream")
	createCmd.Flags().String("group", "", "Consumer group")
	createCmd.Flags().String("start", "0", "Start id: 0 for the whole stream, $ for new entries only")
	createCmd.Flags().Bool("fail-if-exists", false, "Fail when the group already exists")
	return createCmd
}

// newGroupDestroyCommand constructs the `group destroy` subcommand.
func newGroupDestroyCommand(open Opener) *cobra.Command {
	destroyCmd := &cobra.Command{
		Use:   "destroy",
		Short: "Delete a consumer group with its pending list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stream, _ := cmd.Flags().GetString("stream")
			group, _ := cmd.Flags().GetString("group")
			return withClient(cmd, open, func(c *xstream.Client) error {
				if err := c.RemoveGroup(cmd.Context(), stream, group); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
				return nil
			})
		},
	}
	destroyCmd.Flags().String("stream", "", "Stream")
	destroyCmd.Flags().String("group", "", "Consumer group")
	return destroyCmd
}

// newPendingCommand constructs the `pending` command.
func newPendingCommand(open Opener) *cobra.Command {
	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "Summarize a group's pending entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stream, _ := cmd.Flags().GetString("stream")
			group, _ := cmd.Flags().GetString("group")
			return withClient(cmd, open, func(c *xstream.Client) error {
				ps, err := c.Pending(cmd.Context(), stream, group)
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"count":     ps.Count,
					"lower":     ps.Lower,
					"higher":    ps.Higher,
					"consumers": ps.Consumers,
				})
			})
		},
	}
	pendingCmd.Flags().String("stream", "", "Stream")
	pendingCmd.Flags().String("group", "", "Consumer group")
	return pendingCmd
}
