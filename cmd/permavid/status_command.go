package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"permavid/internal/api"
	"permavid/internal/daemonctl"
	"permavid/internal/preflight"
	"permavid/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, provider, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			section := func(title string) {
				for _, line := range renderSectionHeader(title, colorize) {
					fmt.Fprintln(stdout, line)
				}
			}

			section("Daemon")
			if snapshot.Running {
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", snapshot.PID), colorize))
				fmt.Fprintln(stdout, workflowStatusLine(snapshot.Workflow, colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusInfo, "Not running", colorize))
			}
			fmt.Fprintln(stdout, renderStatusLine("API", statusInfo, cfg.Paths.APIBind, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Queue DB", statusInfo, snapshot.QueueDBPath, colorize))
			fmt.Fprintln(stdout)

			section("Providers")
			settings, settingsErr := loadSettings(cmd, ctx)
			if settingsErr != nil {
				fmt.Fprintln(stdout, renderStatusLine("Providers", statusWarn, "Settings unavailable: "+settingsErr.Error(), colorize))
			} else {
				filemoon := preflight.CheckFilemoonFromSettings(cmd.Context(), cfg, settings)
				fmt.Fprintln(stdout, renderStatusLine(filemoon.Name, resultKind(filemoon), filemoon.Detail, colorize))
				filesvc := preflight.CheckFilesVCFromSettings(settings)
				fmt.Fprintln(stdout, renderStatusLine(filesvc.Name, resultKind(filesvc), filesvc.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			section("Dependencies")
			for _, line := range dependencyLines(snapshot.Dependencies, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			section("Queue Status")
			rows := buildQueueStatusRows(snapshot.Workflow.QueueStats)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "Queue is empty")
				return nil
			}
			table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
			fmt.Fprintln(stdout, table)
			return nil
		},
	}
}

// loadSettings prefers the daemon's view of settings and falls back to the
// store when it is down.
func loadSettings(cmd *cobra.Command, ctx *commandContext) (queue.Settings, error) {
	var settings queue.Settings
	err := ctx.withQueue(cmd.Context(), func(client queueClient) error {
		payload, err := client.GetSettings(cmd.Context())
		if err != nil {
			return err
		}
		settings = api.ToSettings(payload)
		return nil
	})
	return settings, err
}

func workflowStatusLine(workflow api.WorkflowStatus, colorize bool) string {
	notReady := make([]string, 0, len(workflow.StageHealth))
	for _, health := range workflow.StageHealth {
		if !health.Ready {
			notReady = append(notReady, health.Name)
		}
	}
	switch {
	case !workflow.Running:
		return renderStatusLine("Workflow", statusWarn, "Stopped", colorize)
	case len(notReady) > 0:
		return renderStatusLine("Workflow", statusWarn, "Stages not ready: "+strings.Join(notReady, ", "), colorize)
	case strings.TrimSpace(workflow.LastError) != "":
		return renderStatusLine("Workflow", statusWarn, "Last error: "+workflow.LastError, colorize)
	default:
		return renderStatusLine("Workflow", statusOK, "Processing", colorize)
	}
}

func resultKind(result preflight.Result) statusKind {
	if result.Passed {
		return statusOK
	}
	return statusWarn
}

func dependencyLines(dependencies []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(dependencies)+1)
	missing := make([]string, 0)
	for _, dep := range dependencies {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusWarn, strings.Join(missing, ", ")+" (see README.md for install steps)", colorize))
	}
	return lines
}
