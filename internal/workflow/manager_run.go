package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"permavid/internal/logging"
	"permavid/internal/queue"
)

// Start recovers interrupted work and begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.downloader == nil || m.uploader == nil || m.poller == nil {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.runCtx = runCtx
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	if recovered, err := m.store.ResetStuckProcessing(runCtx); err != nil {
		m.logger.Warn("startup recovery failed; stuck items may remain", logging.Error(err))
	} else if recovered > 0 {
		m.logger.Info("recovered items left processing by a previous run",
			logging.Int64("count", recovered))
	}

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for in-flight work, up to
// the configured stop timeout.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.runCtx = nil
	m.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		m.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(m.stopTimeout):
		m.logger.Warn("shutdown timed out waiting for in-flight work",
			logging.Duration("stop_timeout", m.stopTimeout))
	}
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		busy := m.iterate(ctx)
		interval := m.idleInterval
		if busy {
			interval = m.busyInterval
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// iterate performs one scheduler pass and reports whether work was found.
func (m *Manager) iterate(ctx context.Context) bool {
	processing, err := m.store.IsAnyInStatus(ctx, queue.StatusDownloading, queue.StatusUploading)
	if err != nil {
		m.absorbLoopError(ctx, "failed to inspect in-flight work", err)
		return false
	}
	if processing {
		return true
	}

	item, err := m.store.NextQueued(ctx)
	if err != nil {
		m.absorbLoopError(ctx, "failed to fetch next queued item", err)
		return false
	}
	if item != nil {
		m.processQueuedItem(ctx, item)
		return true
	}

	return m.sweepRemoteStatuses(ctx)
}

// sweepRemoteStatuses polls every item waiting on remote encoding with a
// bounded worker set, waiting for the sweep to finish before returning. It
// reports whether any checks ran.
func (m *Manager) sweepRemoteStatuses(ctx context.Context) bool {
	checks, err := m.store.ItemsForStatusCheck(ctx)
	if err != nil {
		m.absorbLoopError(ctx, "failed to collect readiness checks", err)
		return false
	}
	if len(checks) == 0 {
		return false
	}

	limit := m.maxChecks
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for _, check := range checks {
		select {
		case <-ctx.Done():
			wg.Wait()
			return true
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(check queue.StatusCheck) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := m.poller.Check(ctx, check); err != nil {
				m.setLastError(err)
				m.logger.Warn("readiness check failed",
					logging.String(logging.FieldItemID, check.ItemID),
					logging.Error(err))
			}
		}(check)
	}
	wg.Wait()
	return true
}

// absorbLoopError records a repository failure without terminating the loop.
func (m *Manager) absorbLoopError(ctx context.Context, message string, err error) {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return
	}
	m.setLastError(err)
	m.logger.Error(message, logging.Error(err))
}
