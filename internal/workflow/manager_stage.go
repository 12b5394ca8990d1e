package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"permavid/internal/logging"
	"permavid/internal/queue"
	"permavid/internal/services"
	"permavid/internal/stage"
)

// processQueuedItem runs the download stage for one item and, when
// auto-upload is enabled, hands the finished file to the upload dispatcher.
func (m *Manager) processQueuedItem(ctx context.Context, item *queue.Item) {
	if err := m.runStage(ctx, m.downloader, "download", item, queue.StatusDownloading); err != nil {
		return
	}
	if item.Status != queue.StatusCompleted {
		return
	}

	settings, err := m.store.GetSettings(ctx)
	if err != nil {
		m.logger.Warn("failed to load settings for auto-upload",
			logging.String(logging.FieldItemID, item.ID),
			logging.Error(err))
		return
	}
	if !settings.AutoUpload {
		return
	}
	if err := m.beginUpload(ctx, item); err != nil {
		m.logger.Debug("auto-upload not dispatched",
			logging.String(logging.FieldItemID, item.ID),
			logging.Error(err))
	}
}

// runStage executes one handler against an item: transition to the processing
// status, Prepare, persist the primed message, then Execute with a tracked
// cancel handle. Execute persists its own outcome; failures funnel through
// handleStageFailure.
func (m *Manager) runStage(ctx context.Context, handler stage.Handler, stageName string, item *queue.Item, processing queue.Status) error {
	stageCtx := services.WithStage(services.WithItemID(ctx, item.ID), stageName)
	logger := logging.WithContext(stageCtx, m.logger)
	stageStart := time.Now()

	item.Status = processing
	if err := m.store.Update(stageCtx, item); err != nil {
		wrapped := fmt.Errorf("persist processing transition: %w", err)
		logger.Error("failed to transition item to processing", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	m.setLastItem(item)
	logger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(processing)),
		logging.String(logging.FieldURL, item.URL),
	)

	if err := handler.Prepare(stageCtx, item); err != nil {
		m.handleStageFailure(stageCtx, stageName, item, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(stageCtx, item); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		logger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeTracked(stageCtx, handler, item)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			logger.Debug("stage interrupted", logging.String(logging.FieldStage, stageName))
			return execErr
		}
		m.handleStageFailure(stageCtx, stageName, item, execErr)
		m.setLastError(execErr)
		return execErr
	}

	m.setLastItem(item)
	logger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(item.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	return nil
}

// beginUpload validates preconditions against the item's current state, marks
// it uploading, and dispatches Execute as a tracked goroutine bound to the
// scheduler's run context. The uploading transition is persisted before this
// returns so the scheduler never starts a second transfer.
func (m *Manager) beginUpload(ctx context.Context, item *queue.Item) error {
	runCtx := m.runContext()
	if runCtx == nil {
		return errors.New("workflow not running")
	}

	stageCtx := services.WithStage(services.WithItemID(ctx, item.ID), "upload")
	logger := logging.WithContext(stageCtx, m.logger)

	if err := m.uploader.Prepare(stageCtx, item); err != nil {
		m.handleStageFailure(stageCtx, "upload", item, err)
		m.setLastError(err)
		return err
	}

	item.Status = queue.StatusUploading
	if err := m.store.Update(stageCtx, item); err != nil {
		wrapped := fmt.Errorf("persist upload transition: %w", err)
		logger.Error("failed to transition item to uploading", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	m.setLastItem(item)
	logger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(queue.StatusUploading)),
	)

	m.tasks.Add(1)
	go func() {
		defer m.tasks.Done()
		m.executeUpload(runCtx, item)
	}()
	return nil
}

func (m *Manager) executeUpload(ctx context.Context, item *queue.Item) {
	stageCtx := services.WithStage(services.WithItemID(ctx, item.ID), "upload")
	logger := logging.WithContext(stageCtx, m.logger)
	stageStart := time.Now()

	execErr := m.executeTracked(stageCtx, m.uploader, item)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			logger.Debug("upload interrupted")
			return
		}
		m.handleStageFailure(stageCtx, "upload", item, execErr)
		m.setLastError(execErr)
		return
	}

	m.setLastItem(item)
	logger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(item.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
}

// executeTracked runs Execute under a per-item cancel handle so user
// cancellation can kill the underlying work.
func (m *Manager) executeTracked(ctx context.Context, handler stage.Handler, item *queue.Item) error {
	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.cancels.register(item.ID, cancel)
	defer m.cancels.release(item.ID)
	return handler.Execute(execCtx, item)
}

func (m *Manager) runContext() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runCtx
}
