package workflow

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"permavid/internal/config"
	"permavid/internal/logging"
	"permavid/internal/notifications"
	"permavid/internal/queue"
	"permavid/internal/stage"
)

// StatusPoller resolves remote encoding state for uploaded items.
type StatusPoller interface {
	Check(ctx context.Context, check queue.StatusCheck) error
	Restart(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) stage.Health
}

// StageSet bundles the concrete handlers the manager orchestrates.
type StageSet struct {
	Downloader stage.Handler
	Uploader   stage.Handler
	Poller     StatusPoller
}

// Manager coordinates queue processing across the registered stages.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	downloader stage.Handler
	uploader   stage.Handler
	poller     StatusPoller

	idleInterval time.Duration
	busyInterval time.Duration
	maxChecks    int
	stopTimeout  time.Duration

	cancels *cancelRegistry

	mu       sync.RWMutex
	running  bool
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	tasks    sync.WaitGroup
	lastErr  error
	lastItem *queue.Item
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithPollIntervals overrides the scheduler sleep intervals (used in tests).
func WithPollIntervals(idle, busy time.Duration) ManagerOption {
	return func(m *Manager) {
		if idle > 0 {
			m.idleInterval = idle
		}
		if busy > 0 {
			m.busyInterval = busy
		}
	}
}

// NewManager constructs a workflow manager with the default notifier.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg), opts...)
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier
// (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, opts ...ManagerOption) *Manager {
	managerLogger := logger
	if managerLogger != nil {
		managerLogger = managerLogger.With(logging.String(logging.FieldComponent, "workflow-manager"))
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       managerLogger,
		notifier:     notifier,
		idleInterval: time.Duration(cfg.Workflow.IdlePollInterval) * time.Second,
		busyInterval: time.Duration(cfg.Workflow.BusyPollInterval) * time.Second,
		maxChecks:    cfg.Workflow.MaxConcurrentChecks,
		stopTimeout:  time.Duration(cfg.Workflow.StopTimeout) * time.Second,
		cancels:      newCancelRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (m *Manager) ConfigureStages(set StageSet) {
	m.mu.Lock()
	m.downloader = set.Downloader
	m.uploader = set.Uploader
	m.poller = set.Poller
	m.mu.Unlock()
}
