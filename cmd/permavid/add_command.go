package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <url> [url...]",
		Short: "Add source URLs to the archival queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := make([]string, 0, len(args))
			for _, arg := range args {
				trimmed := strings.TrimSpace(arg)
				if trimmed == "" {
					return errors.New("URL cannot be empty")
				}
				if parsed, err := url.Parse(trimmed); err != nil || parsed.Scheme == "" || parsed.Host == "" {
					return fmt.Errorf("invalid URL %q", arg)
				}
				urls = append(urls, trimmed)
			}

			return ctx.withQueue(cmd.Context(), func(client queueClient) error {
				out := cmd.OutOrStdout()
				for _, sourceURL := range urls {
					item, err := client.Add(cmd.Context(), sourceURL)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Queued %s as item %s\n", sourceURL, shortID(item.ID))
				}
				return nil
			})
		},
	}
}
