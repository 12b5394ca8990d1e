package downloading

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"log/slog"

	"permavid/internal/config"
	"permavid/internal/logging"
	"permavid/internal/notifications"
	"permavid/internal/queue"
	"permavid/internal/services"
	"permavid/internal/services/ytdlp"
	"permavid/internal/sidecar"
	"permavid/internal/stage"
)

// Downloader manages the yt-dlp download workflow.
type Downloader struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	client   ytdlp.Downloader
	resolver *sidecar.Resolver
	notifier notifications.Service
}

// NewDownloader constructs the download handler using default dependencies.
func NewDownloader(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Downloader {
	var client ytdlp.Downloader
	if c, err := ytdlp.New(cfg.YtDLPBinary(), cfg.YtDLP.DownloadTimeout); err != nil {
		logger.Warn("yt-dlp client unavailable", logging.Error(err))
	} else {
		client = c
	}
	return NewDownloaderWithDependencies(cfg, store, logger, client, notifications.NewService(cfg))
}

// NewDownloaderWithDependencies allows injecting all collaborators (used in tests).
func NewDownloaderWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client ytdlp.Downloader, notifier notifications.Service) *Downloader {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "downloader"))
	}
	return &Downloader{
		store:    store,
		cfg:      cfg,
		logger:   stageLogger,
		client:   client,
		resolver: sidecar.NewResolver(stageLogger),
		notifier: notifier,
	}
}

func (d *Downloader) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, d.logger)
	if d.client == nil {
		return services.Wrap(
			services.ErrConfiguration,
			"downloading",
			"prepare",
			"yt-dlp client unavailable; check the ytdlp binary setting",
			nil,
		)
	}
	item.Message = "Download starting..."
	logger.Info("starting download preparation", logging.String(logging.FieldURL, item.URL))
	return nil
}

func (d *Downloader) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, d.logger)

	destDir, err := d.destination(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"downloading",
			"ensure download dir",
			"Failed to create download directory; set download_dir to a writable location",
			err,
		)
	}

	logger.Info(
		"starting download execution",
		logging.String(logging.FieldURL, item.URL),
		logging.String("download_dir", destDir),
	)

	progressCB := func(update ytdlp.ProgressUpdate) {
		d.applyProgress(ctx, item, update)
	}
	if err := d.client.Download(ctx, item.URL, destDir, progressCB); err != nil {
		return err
	}

	artifact, err := d.resolver.Resolve(destDir, item.URL)
	if err != nil {
		logger.Warn("sidecar resolution failed", logging.Error(err))
		artifact = sidecar.Artifact{}
	}

	copy := *item
	copy.Status = queue.StatusCompleted
	copy.Message = "Download complete"
	if artifact.Title != "" {
		copy.Title = artifact.Title
	}
	if artifact.ThumbnailURL != "" {
		copy.ThumbnailURL = artifact.ThumbnailURL
	}
	if artifact.LocalPath != "" {
		copy.LocalPath = artifact.LocalPath
	}
	changed, err := d.store.UpdateAfterDownload(ctx, copy.ID, copy.Status, copy.Title, copy.LocalPath, copy.ThumbnailURL, copy.Message)
	if err != nil {
		return services.Wrap(
			services.ErrTransient,
			"downloading",
			"persist outcome",
			"Failed to record download completion",
			err,
		)
	}
	if !changed {
		logger.Info("download outcome discarded, item was cancelled")
		item.Status = queue.StatusCancelled
		return nil
	}
	*item = copy

	logger.Info(
		"download completed",
		logging.String("title", strings.TrimSpace(item.Title)),
		logging.String("local_path", strings.TrimSpace(item.LocalPath)),
	)
	if d.notifier != nil {
		payload := notifications.Payload{"title": item.DisplayTitle(), "url": item.URL}
		if err := d.notifier.Publish(ctx, notifications.EventDownloadCompleted, payload); err != nil {
			logger.Warn("download completion notification failed", logging.Error(err))
		}
	}
	return nil
}

// HealthCheck verifies yt-dlp download dependencies.
func (d *Downloader) HealthCheck(ctx context.Context) stage.Health {
	const name = "downloader"
	if d.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Paths.DownloadDir) == "" {
		return stage.Unhealthy(name, "download directory not configured")
	}
	if d.client == nil {
		return stage.Unhealthy(name, "yt-dlp client unavailable")
	}
	binary := strings.TrimSpace(d.cfg.YtDLPBinary())
	if binary == "" {
		return stage.Unhealthy(name, "yt-dlp binary not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("yt-dlp binary %q not found", binary))
	}
	return stage.Healthy(name)
}

// destination resolves the download directory, preferring the runtime setting
// over the configured default.
func (d *Downloader) destination(ctx context.Context) (string, error) {
	settings, err := d.store.GetSettings(ctx)
	if err != nil {
		return "", services.Wrap(
			services.ErrTransient,
			"downloading",
			"load settings",
			"Failed to load queue settings",
			err,
		)
	}
	if dir := strings.TrimSpace(settings.DownloadDirectory); dir != "" {
		return dir, nil
	}
	return d.cfg.Paths.DownloadDir, nil
}

func (d *Downloader) applyProgress(ctx context.Context, item *queue.Item, update ytdlp.ProgressUpdate) {
	if update.Message == "" {
		return
	}
	logger := logging.WithContext(ctx, d.logger)
	changed, err := d.store.UpdateMessage(ctx, item.ID, update.Message)
	if err != nil {
		logger.Warn("failed to persist progress", logging.Error(err))
		return
	}
	if changed {
		item.Message = update.Message
	}
}
