package workflow

import (
	"context"
	"errors"
	"fmt"

	"permavid/internal/logging"
	"permavid/internal/queue"
	"permavid/internal/services"
	"permavid/internal/stage"
)

// TriggerUpload starts an upload for one item regardless of the scheduler's
// single-flight gate. Preconditions are validated against the item's current
// state before it transitions to uploading; the transfer itself runs on the
// manager's run context so it survives the caller's request scope.
func (m *Manager) TriggerUpload(ctx context.Context, id string) error {
	uploader := m.uploaderHandler()
	if uploader == nil {
		return errors.New("workflow stages not configured")
	}

	item, err := m.store.Get(ctx, id)
	if err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "trigger upload", "Failed to load item", err)
	}
	if item == nil {
		return services.Wrap(services.ErrNotFound, "workflow", "trigger upload",
			fmt.Sprintf("Upload failed: Item %s not found.", id), nil)
	}
	return m.beginUpload(ctx, item)
}

// Cancel marks an item cancelled and tears down any in-flight work for it.
// The status write lands first so a racing stage sees cancelled when it tries
// to record its outcome.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	item, err := m.store.Get(ctx, id)
	if err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "cancel", "Failed to load item", err)
	}
	if item == nil {
		return services.Wrap(services.ErrNotFound, "workflow", "cancel",
			fmt.Sprintf("Cancel failed: Item %s not found.", id), nil)
	}

	if err := m.store.UpdateStatus(ctx, id, queue.StatusCancelled, "Cancelled by user"); err != nil {
		return services.Wrap(services.ErrTransient, "workflow", "cancel", "Failed to cancel item", err)
	}
	if m.cancels.cancel(id) {
		m.logger.Info("cancelled in-flight work", logging.String(logging.FieldItemID, id))
	} else {
		m.logger.Info("item cancelled", logging.String(logging.FieldItemID, id))
	}
	return nil
}

// RestartEncoding asks Filemoon to re-run encoding for an archived transfer.
func (m *Manager) RestartEncoding(ctx context.Context, id string) error {
	poller := m.pollerHandler()
	if poller == nil {
		return errors.New("workflow stages not configured")
	}
	return poller.Restart(ctx, id)
}

func (m *Manager) uploaderHandler() stage.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uploader
}

func (m *Manager) pollerHandler() StatusPoller {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.poller
}
