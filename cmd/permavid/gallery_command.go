package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGalleryCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "List archived items (downloaded or fully encoded)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(client queueClient) error {
				items, err := client.Gallery(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Gallery is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Title", "Status", "Provider", "Ref"},
					buildGalleryRows(items),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
