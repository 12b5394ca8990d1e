package readiness

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"permavid/internal/config"
	"permavid/internal/logging"
	"permavid/internal/notifications"
	"permavid/internal/queue"
	"permavid/internal/services"
	"permavid/internal/services/filemoon"
	"permavid/internal/stage"
)

// StatusClient is the slice of the Filemoon API the poller needs.
type StatusClient interface {
	FileInfoFor(ctx context.Context, apiKey, fileCode string) (filemoon.FileInfo, error)
	EncodingStatusFor(ctx context.Context, apiKey, fileCode string) (*filemoon.EncodingStatus, error)
	RestartEncoding(ctx context.Context, apiKey, fileCode string) error
}

// Poller resolves the remote encoding state of items waiting on Filemoon.
type Poller struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	client   StatusClient
	notifier notifications.Service
}

// NewPoller constructs the readiness poller using default dependencies.
func NewPoller(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Poller {
	client := filemoon.New(cfg.Providers.FilemoonBaseURL, cfg.Providers.RequestTimeout, cfg.Providers.UploadTimeout)
	return NewPollerWithDependencies(cfg, store, logger, client, notifications.NewService(cfg))
}

// NewPollerWithDependencies allows injecting all collaborators (used in tests).
func NewPollerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client StatusClient, notifier notifications.Service) *Poller {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "readiness"))
	}
	return &Poller{
		store:    store,
		cfg:      cfg,
		logger:   stageLogger,
		client:   client,
		notifier: notifier,
	}
}

// Check runs the two-tier readiness probe for one remote item. Inconclusive
// provider answers are logged and absorbed; the next sweep retries them. An
// error is returned only when a definite outcome could not be persisted.
func (p *Poller) Check(ctx context.Context, check queue.StatusCheck) error {
	logger := logging.WithContext(ctx, p.logger).With(logging.String(logging.FieldItemID, check.ItemID))

	info, err := p.client.FileInfoFor(ctx, check.APIKey, check.ProviderRef)
	if err == nil && info.CanPlay {
		return p.markEncoded(ctx, check, "Filemoon status: Ready (canplay=1)")
	}
	if err != nil {
		logger.Debug("file info inconclusive, falling back to encoding status", logging.Error(err))
	}

	status, err := p.client.EncodingStatusFor(ctx, check.APIKey, check.ProviderRef)
	if err != nil {
		logger.Warn("encoding status check failed", logging.Error(err))
		return nil
	}
	if status == nil {
		logger.Debug("encoding status empty, retrying next sweep")
		return nil
	}

	next := statusForState(status.State)
	message := "Filemoon status: " + status.State
	if status.Progress >= 0 {
		message += fmt.Sprintf(" (%d%%)", status.Progress)
	}
	if status.Error != "" {
		logger.Warn("provider reported encoding error",
			logging.String("filecode", check.ProviderRef),
			logging.String("provider_error", status.Error))
	}
	if next == queue.StatusEncoded {
		return p.markEncoded(ctx, check, message)
	}

	progress := status.Progress
	if progress < 0 {
		progress = 0
	}
	changed, err := p.store.UpdateEncoding(ctx, check.ItemID, next, progress, message)
	if err != nil {
		return services.Wrap(services.ErrTransient, "readiness", "persist outcome",
			"Failed to record encoding state", err)
	}
	if !changed {
		logger.Info("poll outcome discarded, item was cancelled")
		return nil
	}
	logger.Info(
		"encoding state updated",
		logging.String("state", status.State),
		logging.String("status", string(next)),
		logging.Int("progress", progress),
	)
	return nil
}

// Restart asks Filemoon to re-run encoding for a stuck item. Provider
// rejections mark the item failed; precondition errors leave it untouched.
func (p *Poller) Restart(ctx context.Context, id string) error {
	logger := logging.WithContext(ctx, p.logger).With(logging.String(logging.FieldItemID, id))

	item, err := p.store.Get(ctx, id)
	if err != nil {
		return services.Wrap(services.ErrTransient, "readiness", "restart", "Failed to load item", err)
	}
	if item == nil {
		return services.Wrap(services.ErrNotFound, "readiness", "restart",
			fmt.Sprintf("Restart encoding failed: Item %s not found.", id), nil)
	}
	fileCode := strings.TrimSpace(item.ProviderRef)
	if fileCode == "" || item.Provider != queue.ProviderFilemoon {
		return services.Wrap(services.ErrValidation, "readiness", "restart",
			"Restart encoding failed: Filemoon filecode not found for item.", nil)
	}

	settings, err := p.store.GetSettings(ctx)
	if err != nil {
		return services.Wrap(services.ErrTransient, "readiness", "restart", "Failed to retrieve settings", err)
	}
	apiKey := strings.TrimSpace(settings.FilemoonAPIKey)
	if apiKey == "" {
		return services.Wrap(services.ErrConfiguration, "readiness", "restart",
			"Restart encoding failed: Filemoon API key not configured", nil)
	}

	if err := p.client.RestartEncoding(ctx, apiKey, fileCode); err != nil {
		if changed, markErr := p.store.MarkFailed(ctx, id, services.Detail(err)); markErr != nil {
			logger.Warn("failed to record restart failure", logging.Error(markErr))
		} else if !changed {
			logger.Info("restart failure discarded, item was cancelled")
		}
		return err
	}

	changed, err := p.store.UpdateEncoding(ctx, id, queue.StatusEncoding, 0, "Restarted encoding")
	if err != nil {
		return services.Wrap(services.ErrTransient, "readiness", "restart",
			"Failed to record encoding state", err)
	}
	if !changed {
		logger.Info("restart outcome discarded, item was cancelled")
		return nil
	}
	logger.Info("encoding restart requested", logging.String("filecode", fileCode))
	return nil
}

// HealthCheck verifies readiness-poll dependencies.
func (p *Poller) HealthCheck(ctx context.Context) stage.Health {
	const name = "readiness"
	if p.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if p.client == nil {
		return stage.Unhealthy(name, "filemoon client unavailable")
	}
	return stage.Healthy(name)
}

func (p *Poller) markEncoded(ctx context.Context, check queue.StatusCheck, message string) error {
	logger := logging.WithContext(ctx, p.logger).With(logging.String(logging.FieldItemID, check.ItemID))

	changed, err := p.store.UpdateEncoding(ctx, check.ItemID, queue.StatusEncoded, 100, message)
	if err != nil {
		return services.Wrap(services.ErrTransient, "readiness", "persist outcome",
			"Failed to record encoding state", err)
	}
	if !changed {
		logger.Info("poll outcome discarded, item was cancelled")
		return nil
	}
	logger.Info("item ready to stream", logging.String("filecode", check.ProviderRef))
	p.notifyArchived(ctx, check.ItemID)
	return nil
}

func (p *Poller) notifyArchived(ctx context.Context, id string) {
	if p.notifier == nil {
		return
	}
	item, err := p.store.Get(ctx, id)
	if err != nil || item == nil {
		return
	}
	payload := notifications.Payload{"title": item.DisplayTitle(), "url": item.URL}
	if err := p.notifier.Publish(ctx, notifications.EventArchiveCompleted, payload); err != nil {
		logging.WithContext(ctx, p.logger).Warn("archive notification failed", logging.Error(err))
	}
}

// statusForState maps a provider encoding state onto the local lifecycle.
// Unknown states keep the item in transferring so polling continues.
func statusForState(state string) queue.Status {
	switch state {
	case "ENCODING", "PENDING":
		return queue.StatusEncoding
	case "FINISHED", "ACTIVE":
		return queue.StatusEncoded
	case "ERROR":
		return queue.StatusFailed
	default:
		return queue.StatusTransferring
	}
}
