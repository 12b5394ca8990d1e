package uploading

import (
	"context"
	"fmt"
	"os"
	"strings"

	"log/slog"

	"permavid/internal/config"
	"permavid/internal/logging"
	"permavid/internal/notifications"
	"permavid/internal/queue"
	"permavid/internal/services"
	"permavid/internal/services/filemoon"
	"permavid/internal/services/filesvc"
	"permavid/internal/stage"
)

// Upload targets selectable through Settings.UploadTarget.
const (
	TargetFilemoon = "filemoon"
	TargetFilesVC  = "files_vc"
	TargetBoth     = "both"
)

// NormalizeTarget canonicalizes a stored upload-target value. An empty value
// selects Filemoon; unknown values return "".
func NormalizeTarget(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", TargetFilemoon:
		return TargetFilemoon
	case TargetFilesVC, "filesvc":
		return TargetFilesVC
	case TargetBoth:
		return TargetBoth
	default:
		return ""
	}
}

// FilemoonUploader is the slice of the Filemoon API the orchestrator needs.
type FilemoonUploader interface {
	UploadServer(ctx context.Context, apiKey string) (string, error)
	Upload(ctx context.Context, uploadURL, apiKey, localPath string) (string, error)
}

// FilesVCUploader uploads a local file to Files.vc.
type FilesVCUploader interface {
	Upload(ctx context.Context, apiKey, localPath string) (filesvc.UploadResult, error)
}

// Uploader manages the provider upload workflow.
type Uploader struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	filemoon FilemoonUploader
	filesvc  FilesVCUploader
	notifier notifications.Service
}

// NewUploader constructs the upload handler using default dependencies.
func NewUploader(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Uploader {
	fm := filemoon.New(cfg.Providers.FilemoonBaseURL, cfg.Providers.RequestTimeout, cfg.Providers.UploadTimeout)
	fv := filesvc.New(cfg.Providers.FilesVCBaseURL, cfg.Providers.UploadTimeout)
	return NewUploaderWithDependencies(cfg, store, logger, fm, fv, notifications.NewService(cfg))
}

// NewUploaderWithDependencies allows injecting all collaborators (used in tests).
func NewUploaderWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, fm FilemoonUploader, fv FilesVCUploader, notifier notifications.Service) *Uploader {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "uploader"))
	}
	return &Uploader{
		store:    store,
		cfg:      cfg,
		logger:   stageLogger,
		filemoon: fm,
		filesvc:  fv,
		notifier: notifier,
	}
}

// Prepare checks the upload preconditions against the item's pre-transition
// state and primes the progress message. It never touches the network.
func (u *Uploader) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, u.logger)

	if item.Status != queue.StatusCompleted && item.Status != queue.StatusEncoded {
		return services.Wrap(services.ErrValidation, "uploading", "preconditions",
			fmt.Sprintf("Item %s is not in a completed state (status: %s). Cannot upload.", item.ID, item.Status), nil)
	}
	localPath := strings.TrimSpace(item.LocalPath)
	if localPath == "" {
		return services.Wrap(services.ErrValidation, "uploading", "preconditions",
			"Upload failed: Local file path not found for item.", nil)
	}
	if info, err := os.Stat(localPath); err != nil || info.IsDir() {
		return services.Wrap(services.ErrTransient, "uploading", "preconditions",
			fmt.Sprintf("Local file not found at: %s", localPath), nil)
	}

	settings, err := u.store.GetSettings(ctx)
	if err != nil {
		return services.Wrap(services.ErrTransient, "uploading", "load settings",
			"Failed to retrieve settings", err)
	}
	target := NormalizeTarget(settings.UploadTarget)
	switch target {
	case TargetFilemoon, TargetBoth:
		if strings.TrimSpace(settings.FilemoonAPIKey) == "" {
			return services.Wrap(services.ErrConfiguration, "uploading", "preconditions",
				"Filemoon API key not configured", nil)
		}
	case TargetFilesVC:
		if strings.TrimSpace(settings.FilesVCAPIKey) == "" {
			return services.Wrap(services.ErrConfiguration, "uploading", "preconditions",
				"Files.vc API key not configured", nil)
		}
	default:
		return services.Wrap(services.ErrConfiguration, "uploading", "preconditions",
			fmt.Sprintf("Unknown upload target: %s", settings.UploadTarget), nil)
	}

	item.Message = "Starting upload..."
	logger.Info(
		"starting upload preparation",
		logging.String("local_path", localPath),
		logging.String("target", target),
	)
	return nil
}

// Execute pushes the file to the selected provider(s) and persists the
// accepted outcome. Failures are returned for the caller to classify.
func (u *Uploader) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, u.logger)

	settings, err := u.store.GetSettings(ctx)
	if err != nil {
		return services.Wrap(services.ErrTransient, "uploading", "load settings",
			"Failed to retrieve settings", err)
	}
	target := NormalizeTarget(settings.UploadTarget)

	var persisted bool
	var uploadErr error
	switch target {
	case TargetFilemoon:
		persisted, uploadErr = u.uploadFilemoon(ctx, item, settings)
	case TargetFilesVC:
		persisted, uploadErr = u.uploadFilesVC(ctx, item, settings)
	case TargetBoth:
		persisted, uploadErr = u.uploadFilemoon(ctx, item, settings)
		if uploadErr != nil {
			logger.Warn("filemoon upload failed, falling back to files.vc", logging.Error(uploadErr))
			persisted, uploadErr = u.uploadFilesVC(ctx, item, settings)
		}
	default:
		uploadErr = services.Wrap(services.ErrConfiguration, "uploading", "target",
			fmt.Sprintf("Unknown upload target: %s", settings.UploadTarget), nil)
	}
	if uploadErr != nil {
		return uploadErr
	}
	if !persisted {
		logger.Info("upload outcome discarded, item was cancelled mid-transfer")
		item.Status = queue.StatusCancelled
		return nil
	}

	if settings.DeleteAfterUpload {
		if err := os.Remove(item.LocalPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to delete local file after upload",
				logging.String("local_path", item.LocalPath), logging.Error(err))
		} else {
			logger.Info("deleted local file after upload", logging.String("local_path", item.LocalPath))
		}
	}
	if u.notifier != nil {
		payload := notifications.Payload{
			"title":    item.DisplayTitle(),
			"provider": item.Provider,
			"url":      item.URL,
		}
		if err := u.notifier.Publish(ctx, notifications.EventUploadCompleted, payload); err != nil {
			logger.Warn("upload completion notification failed", logging.Error(err))
		}
	}
	return nil
}

// HealthCheck verifies provider upload dependencies.
func (u *Uploader) HealthCheck(ctx context.Context) stage.Health {
	const name = "uploader"
	if u.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if u.filemoon == nil {
		return stage.Unhealthy(name, "filemoon client unavailable")
	}
	if u.filesvc == nil {
		return stage.Unhealthy(name, "files.vc client unavailable")
	}
	return stage.Healthy(name)
}

func (u *Uploader) uploadFilemoon(ctx context.Context, item *queue.Item, settings queue.Settings) (bool, error) {
	logger := logging.WithContext(ctx, u.logger)

	apiKey := strings.TrimSpace(settings.FilemoonAPIKey)
	if apiKey == "" {
		return false, services.Wrap(services.ErrConfiguration, "uploading", "filemoon",
			"Filemoon API key not configured", nil)
	}
	if u.filemoon == nil {
		return false, services.Wrap(services.ErrConfiguration, "uploading", "filemoon",
			"Filemoon client unavailable", nil)
	}

	serverURL, err := u.filemoon.UploadServer(ctx, apiKey)
	if err != nil {
		return false, err
	}
	logger.Info("filemoon upload server acquired", logging.String("upload_url", serverURL))

	fileCode, err := u.filemoon.Upload(ctx, serverURL, apiKey, item.LocalPath)
	if err != nil {
		return false, err
	}

	copy := *item
	copy.Status = queue.StatusTransferring
	copy.Provider = queue.ProviderFilemoon
	copy.ProviderRef = fileCode
	copy.Message = fmt.Sprintf("Filemoon: %s. Awaiting encoding...", fileCode)
	changed, err := u.store.UpdateAfterUpload(ctx, copy.ID, copy.Status, copy.Provider, copy.ProviderRef, copy.EncodingProgress, copy.Message)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "uploading", "filemoon",
			"Failed to record upload outcome", err)
	}
	if !changed {
		return false, nil
	}
	*item = copy
	logger.Info(
		"filemoon upload accepted",
		logging.String(logging.FieldProvider, queue.ProviderFilemoon),
		logging.String("filecode", fileCode),
	)
	return true, nil
}

func (u *Uploader) uploadFilesVC(ctx context.Context, item *queue.Item, settings queue.Settings) (bool, error) {
	logger := logging.WithContext(ctx, u.logger)

	apiKey := strings.TrimSpace(settings.FilesVCAPIKey)
	if apiKey == "" {
		return false, services.Wrap(services.ErrConfiguration, "uploading", "filesvc",
			"Files.vc API key not configured", nil)
	}
	if u.filesvc == nil {
		return false, services.Wrap(services.ErrConfiguration, "uploading", "filesvc",
			"Files.vc client unavailable", nil)
	}

	result, err := u.filesvc.Upload(ctx, apiKey, item.LocalPath)
	if err != nil {
		return false, err
	}

	ref := strings.TrimSpace(result.URL)
	if ref == "" {
		ref = result.FileCode
	}
	copy := *item
	copy.Status = queue.StatusEncoded
	copy.Provider = queue.ProviderFilesVC
	copy.ProviderRef = ref
	copy.EncodingProgress = 100
	copy.Message = fmt.Sprintf("Files.vc: %s", ref)
	changed, err := u.store.UpdateAfterUpload(ctx, copy.ID, copy.Status, copy.Provider, copy.ProviderRef, copy.EncodingProgress, copy.Message)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "uploading", "filesvc",
			"Failed to record upload outcome", err)
	}
	if !changed {
		return false, nil
	}
	*item = copy
	logger.Info(
		"files.vc upload accepted",
		logging.String(logging.FieldProvider, queue.ProviderFilesVC),
		logging.String("remote_url", ref),
	)
	return true, nil
}
