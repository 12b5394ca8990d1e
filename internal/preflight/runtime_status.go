package preflight

import (
	"context"
	"strings"

	"permavid/internal/config"
	"permavid/internal/queue"
)

// CheckFilemoonFromSettings evaluates Filemoon status from stored settings
// and connectivity.
func CheckFilemoonFromSettings(ctx context.Context, cfg *config.Config, settings queue.Settings) Result {
	const name = "Filemoon"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(settings.FilemoonAPIKey) == "" {
		return Result{Name: name, Detail: "Missing API key"}
	}
	return CheckFilemoon(ctx, cfg.Providers.FilemoonBaseURL, settings.FilemoonAPIKey)
}

// CheckFilesVCFromSettings evaluates Files.vc status from stored settings.
// The API offers no cheap authenticated probe, so this reports key presence
// only.
func CheckFilesVCFromSettings(settings queue.Settings) Result {
	const name = "Files.vc"

	if strings.TrimSpace(settings.FilesVCAPIKey) == "" {
		return Result{Name: name, Detail: "Missing API key"}
	}
	return Result{Name: name, Passed: true, Detail: "API key configured"}
}
