package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <id>",
		Short: "Start uploading a downloaded item to the configured provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(client queueClient) error {
				item, err := resolveItem(cmd.Context(), client, args[0])
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %s not found", args[0])
				}
				if err := client.TriggerUpload(cmd.Context(), item.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Upload started for item %s\n", shortID(item.ID))
				return nil
			})
		},
	}
}

func newRestartEncodingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart-encoding <id>",
		Short: "Ask the provider to re-run encoding for an uploaded item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(client queueClient) error {
				item, err := resolveItem(cmd.Context(), client, args[0])
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %s not found", args[0])
				}
				if err := client.RestartEncoding(cmd.Context(), item.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Encoding restart requested for item %s\n", shortID(item.ID))
				return nil
			})
		},
	}
}
