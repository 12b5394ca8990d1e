package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"permavid/internal/api"
	"permavid/internal/config"
	"permavid/internal/uploading"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change runtime settings",
	}

	settingsCmd.AddCommand(newSettingsShowCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))

	return settingsCmd
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(client queueClient) error {
				settings, err := client.GetSettings(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, settings)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-22s %s\n", "filemoon-api-key:", maskSecret(settings.FilemoonAPIKey))
				fmt.Fprintf(out, "%-22s %s\n", "filesvc-api-key:", maskSecret(settings.FilesVCAPIKey))
				fmt.Fprintf(out, "%-22s %s\n", "download-directory:", valueOrDefault(settings.DownloadDirectory))
				fmt.Fprintf(out, "%-22s %s\n", "delete-after-upload:", yesNo(settings.DeleteAfterUpload))
				fmt.Fprintf(out, "%-22s %s\n", "auto-upload:", yesNo(settings.AutoUpload))
				fmt.Fprintf(out, "%-22s %s\n", "upload-target:", uploading.NormalizeTarget(settings.UploadTarget))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON (including secrets) instead of text")
	return cmd
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Long: `Change one setting. Recognized keys:

  filemoon-api-key     Filemoon API key
  filesvc-api-key      Files.vc API key
  download-directory   where finished downloads are stored
  delete-after-upload  remove the local file once a provider has it (true/false)
  auto-upload          upload automatically after each download (true/false)
  upload-target        filemoon, files_vc, or both`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(client queueClient) error {
				settings, err := client.GetSettings(cmd.Context())
				if err != nil {
					return err
				}
				if err := applySetting(&settings, args[0], args[1]); err != nil {
					return err
				}
				if _, err := client.SaveSettings(cmd.Context(), settings); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", strings.ToLower(strings.TrimSpace(args[0])))
				return nil
			})
		},
	}
}

func applySetting(settings *api.Settings, key, value string) error {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "filemoon-api-key":
		settings.FilemoonAPIKey = strings.TrimSpace(value)
	case "filesvc-api-key":
		settings.FilesVCAPIKey = strings.TrimSpace(value)
	case "download-directory":
		expanded, err := config.ExpandPath(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		settings.DownloadDirectory = expanded
	case "delete-after-upload":
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("delete-after-upload wants true or false, got %q", value)
		}
		settings.DeleteAfterUpload = parsed
	case "auto-upload":
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("auto-upload wants true or false, got %q", value)
		}
		settings.AutoUpload = parsed
	case "upload-target":
		target := uploading.NormalizeTarget(value)
		if target == "" {
			return fmt.Errorf("upload-target wants filemoon, files_vc, or both, got %q", value)
		}
		settings.UploadTarget = target
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func maskSecret(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "(not set)"
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}

func valueOrDefault(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(default)"
	}
	return value
}
