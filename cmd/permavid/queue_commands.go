package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"permavid/internal/api"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the archival queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))

	return queueCmd
}

// resolveItem looks up an item by full ID first, then by unique ID prefix so
// the short IDs printed in tables remain usable as arguments. Returns
// (nil, nil) when nothing matches.
func resolveItem(ctx context.Context, client queueClient, ref string) (*api.QueueItem, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("item id is required")
	}

	item, err := client.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if item != nil {
		return item, nil
	}
	if len(ref) < 4 {
		return nil, nil
	}

	items, err := client.List(ctx)
	if err != nil {
		return nil, err
	}
	var match *api.QueueItem
	for i := range items {
		if !strings.HasPrefix(items[i].ID, ref) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("item id %q is ambiguous", ref)
		}
		match = &items[i]
	}
	return match, nil
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(client queueClient) error {
				items, err := client.List(cmd.Context(), listStatuses...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Title", "Status", "Added", "Message"},
					buildQueueListRows(items),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queue item in full",
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
				if asJSON {
					return writeJSON(cmd, item)
				}
				printItemDetail(cmd, *item)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of key/value lines")
	return cmd
}

func printItemDetail(cmd *cobra.Command, item api.QueueItem) {
	out := cmd.OutOrStdout()
	write := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(out, "%-12s %s\n", label+":", value)
	}

	write("ID", item.ID)
	write("URL", item.URL)
	write("Title", item.Title)
	write("Status", formatStatusLabel(item.Status))
	write("Message", item.Message)
	write("Local path", item.LocalPath)
	write("Thumbnail", item.ThumbnailURL)
	write("Provider", formatProvider(item.Provider))
	write("Ref", item.ProviderRef)
	if item.EncodingProgress > 0 {
		write("Progress", fmt.Sprintf("%d%%", item.EncodingProgress))
	}
	write("Added", formatDisplayTime(item.AddedAt))
	write("Updated", formatDisplayTime(item.UpdatedAt))
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearStatuses []string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue items by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(clearStatuses) == 0 {
				return errors.New("at least one --status filter is required")
			}
			return ctx.withQueue(cmd.Context(), func(client queueClient) error {
				removed, err := client.Clear(cmd.Context(), clearStatuses...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d items\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&clearStatuses, "status", "s", nil, "Status to clear (repeatable)")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id> [id...]",
		Short: "Re-queue failed items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(client queueClient) error {
				out := cmd.OutOrStdout()
				for _, ref := range args {
					item, err := resolveItem(cmd.Context(), client, ref)
					if err != nil {
						return err
					}
					if item == nil {
						fmt.Fprintf(out, "Item %s not found\n", ref)
						continue
					}
					updated, err := client.Retry(cmd.Context(), item.ID)
					if err != nil {
						fmt.Fprintf(out, "Item %s not retried: %s\n", shortID(item.ID), retryFailureDetail(err))
						continue
					}
					fmt.Fprintf(out, "Item %s re-queued for processing\n", shortID(updated.ID))
				}
				return nil
			})
		},
	}
}

// retryFailureDetail strips transport framing so ineligibility reads the same
// through the API and the store.
func retryFailureDetail(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return err.Error()
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id> [id...]",
		Short: "Cancel items and stop any in-flight download",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(client queueClient) error {
				out := cmd.OutOrStdout()
				for _, ref := range args {
					item, err := resolveItem(cmd.Context(), client, ref)
					if err != nil {
						return err
					}
					if item == nil {
						fmt.Fprintf(out, "Item %s not found\n", ref)
						continue
					}
					if err := client.Cancel(cmd.Context(), item.ID); err != nil {
						return err
					}
					fmt.Fprintf(out, "Item %s cancelled\n", shortID(item.ID))
				}
				return nil
			})
		},
	}
}
