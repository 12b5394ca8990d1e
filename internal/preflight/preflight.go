package preflight

import (
	"context"
	"strings"

	"permavid/internal/config"
	"permavid/internal/queue"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config and
// queue settings. Provider checks only run when the matching API key is set.
func RunAll(ctx context.Context, cfg *config.Config, settings queue.Settings) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// The runtime setting overrides the configured download directory.
	downloadDir := strings.TrimSpace(settings.DownloadDirectory)
	if downloadDir == "" {
		downloadDir = cfg.Paths.DownloadDir
	}
	results = append(results, CheckDirectoryAccess("Download directory", downloadDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if strings.TrimSpace(settings.FilemoonAPIKey) != "" {
		results = append(results, CheckFilemoon(ctx, cfg.Providers.FilemoonBaseURL, settings.FilemoonAPIKey))
	}

	return results
}
