package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"streamrelay/internal/admin"
)

var adminAddress string

func clientCommands() []*cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show connection state, rule counts and recipients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := newAdminClient().Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "connected:    %t (%s)\n", status.Connected, status.Source)
			fmt.Fprintf(out, "actions:      %d\n", status.Actions)
			fmt.Fprintf(out, "placeholders: %d\n", status.CustomPlaceholders)
			fmt.Fprintf(out, "recipients:   %s\n", strings.Join(status.Recipients, ", "))
			fmt.Fprintf(out, "queue depth:  %d\n", status.QueueDepth)
			fmt.Fprintf(out, "events:       %d received, %d processed, %d ignored, %d malformed\n",
				status.Stats.EventsReceived, status.Stats.EventsProcessed,
				status.Stats.EventsIgnored, status.Stats.EventsMalformed)
			fmt.Fprintf(out, "uptime:       %s\n", status.Stats.Uptime)
			return nil
		},
	}

	recipientCmd := &cobra.Command{
		Use:   "recipient",
		Short: "Manage the players {player} expands to",
	}
	recipientCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List affected players",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				names, err := newAdminClient().Recipients(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			},
		},
		messageCommand("add <player>", "Add an affected player", cobra.ExactArgs(1),
			func(ctx context.Context, c *admin.Client, args []string) (string, error) {
				return c.AddRecipient(ctx, args[0])
			}),
		messageCommand("remove <player>", "Remove an affected player", cobra.ExactArgs(1),
			func(ctx context.Context, c *admin.Client, args []string) (string, error) {
				return c.RemoveRecipient(ctx, args[0])
			}),
	)

	cmds := []*cobra.Command{
		statusCmd,
		messageCommand("connect", "Connect to the Streamlabs feed", cobra.NoArgs,
			func(ctx context.Context, c *admin.Client, _ []string) (string, error) {
				return c.Connect(ctx)
			}),
		messageCommand("disconnect", "Disconnect from the Streamlabs feed", cobra.NoArgs,
			func(ctx context.Context, c *admin.Client, _ []string) (string, error) {
				return c.Disconnect(ctx)
			}),
		messageCommand("reload", "Reload actions and recipients from the config file", cobra.NoArgs,
			func(ctx context.Context, c *admin.Client, _ []string) (string, error) {
				return c.Reload(ctx)
			}),
		recipientCmd,
	}
	for _, c := range cmds {
		c.PersistentFlags().StringVarP(&adminAddress, "address", "a", defaultAdminAddress(), "admin server address")
	}
	return cmds
}

func messageCommand(use, short string, args cobra.PositionalArgs, call func(context.Context, *admin.Client, []string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, a []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			msg, err := call(ctx, newAdminClient(), a)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newAdminClient() *admin.Client {
	return admin.NewClient(adminAddress)
}

func defaultAdminAddress() string {
	if addr := os.Getenv("STREAMRELAY_ADMIN_ADDRESS"); addr != "" {
		return addr
	}
	return "127.0.0.1:8089"
}
