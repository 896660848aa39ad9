package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"beatshop/internal/notifications"
	"beatshop/internal/preflight"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if check := preflight.CheckNotifications(cfg); check.Detail == "Disabled" {
				fmt.Fprintln(out, "Notifications are not configured; set notifications.ntfy_topic or enable notifications.email")
				return nil
			}
			if err := notifications.NewService(cfg).Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(out, "Test notification sent")
			return nil
		},
	}
}
