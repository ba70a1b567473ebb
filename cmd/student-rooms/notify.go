package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const defaultTestMessage = "Student Rooms notification test 🏠"

func notifyCmd(a *app) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test message through the configured notifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.notifier()
			if err != nil {
				return err
			}
			if err := n.Send(cmd.Context(), message); err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "Notification dispatched via %s.\n", n.Name())
			return nil
		},
	}
	cmd.Flags().StringVar(&message, "message", defaultTestMessage, "Message text")
	return cmd
}
