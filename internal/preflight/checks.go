package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"permavid/internal/config"
	"permavid/internal/deps"
	"permavid/internal/services"
	"permavid/internal/services/filemoon"
)

// CheckFilemoon verifies that the Filemoon API is reachable and the key is
// accepted. It requests an upload server, the cheapest authenticated call the
// API offers, with a 10-second timeout and a single attempt.
func CheckFilemoon(ctx context.Context, baseURL, apiKey string) Result {
	const name = "Filemoon"

	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := filemoon.New(baseURL, 10, 10)
	if _, err := client.UploadServer(checkCtx, apiKey); err != nil {
		return Result{Name: name, Detail: summarizeProviderError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries PermaVid shells out to.
// Both the daemon status endpoint and the CLI status command use this to
// avoid duplicating the requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	ytdlpBinary := "yt-dlp"
	if cfg != nil {
		ytdlpBinary = cfg.YtDLPBinary()
	}
	results := deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     ytdlpBinary,
			Description: "Required for downloading media",
		},
	})
	return append(results, deps.CheckFFmpegForYtDLP(ytdlpBinary))
}

// summarizeProviderError produces a human-readable summary for provider
// health check failures.
func summarizeProviderError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (Filemoon API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (Filemoon API unreachable)"
	}
	return services.Detail(err)
}
