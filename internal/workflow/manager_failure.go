package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"permavid/internal/logging"
	"permavid/internal/notifications"
	"permavid/internal/queue"
	"permavid/internal/services"
)

// handleStageFailure records a stage error on the item. The failed write is
// guarded, so an item cancelled mid-stage keeps its cancelled status and the
// failure is dropped without a notification.
func (m *Manager) handleStageFailure(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	logger := logging.WithContext(ctx, m.logger)
	message := failureMessage(stageName, stageErr)
	item.SetFailed(message)

	changed, err := m.store.MarkFailed(ctx, item.ID, message)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	} else if !changed {
		item.Status = queue.StatusCancelled
		item.Message = "Cancelled by user"
		logger.Info("stage failure discarded, item was cancelled",
			logging.String(logging.FieldStage, stageName))
		m.setLastItem(item)
		return
	}

	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldStage, stageName),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)
	m.setLastItem(item)
	m.notifyStageError(ctx, item, stageErr)
}

func failureMessage(stageName string, stageErr error) string {
	if stageErr == nil {
		return fmt.Sprintf("%s stage failed", stageName)
	}
	if message := strings.TrimSpace(services.Detail(stageErr)); message != "" {
		return message
	}
	return fmt.Sprintf("%s stage failed", stageName)
}

func (m *Manager) notifyStageError(ctx context.Context, item *queue.Item, stageErr error) {
	if m.notifier == nil || stageErr == nil {
		return
	}
	payload := notifications.Payload{
		"context": item.DisplayTitle(),
		"error":   services.Detail(stageErr),
	}
	if err := m.notifier.Publish(ctx, notifications.EventError, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send error notification")
		} else {
			m.logger.Debug("stage error notification failed", logging.Error(err))
		}
	}
}
