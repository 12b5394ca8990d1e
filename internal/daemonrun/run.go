package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"log/slog"

	"permavid/internal/config"
	"permavid/internal/daemon"
	"permavid/internal/downloading"
	"permavid/internal/logging"
	"permavid/internal/preflight"
	"permavid/internal/queue"
	"permavid/internal/readiness"
	"permavid/internal/uploading"
	"permavid/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides the configured log level when set.
	LogLevel string
}

// Run starts the permavid daemon runtime loop and blocks until the context
// is cancelled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("permavid-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:    level,
		Format:   cfg.Logging.Format,
		FilePath: logPath,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update permavid.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "permavid-*.log", Exclude: []string{logPath}},
	)

	pidPath := filepath.Join(cfg.Paths.LogDir, "permavid.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	logStartupChecks(signalCtx, logger, cfg, store)

	manager := workflow.NewManager(cfg, store, logger)
	registerStages(manager, cfg, store, logger)

	d, err := daemon.New(cfg, store, logger, manager, logPath)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		return err
	}

	<-signalCtx.Done()
	logger.Info("permavid daemon shutting down")
	d.Stop()
	return nil
}

func registerStages(mgr *workflow.Manager, cfg *config.Config, store *queue.Store, logger *slog.Logger) {
	if mgr == nil || cfg == nil {
		return
	}
	mgr.ConfigureStages(workflow.StageSet{
		Downloader: downloading.NewDownloader(cfg, store, logger),
		Uploader:   uploading.NewUploader(cfg, store, logger),
		Poller:     readiness.NewPoller(cfg, store, logger),
	})
}

// logStartupChecks records the preflight and dependency state once so a
// broken environment is visible in the log before the first item fails.
func logStartupChecks(ctx context.Context, logger *slog.Logger, cfg *config.Config, store *queue.Store) {
	settings := queue.Settings{}
	if store != nil {
		loaded, err := store.GetSettings(ctx)
		if err != nil {
			logger.Warn("failed to load settings for preflight", logging.Error(err))
		} else {
			settings = loaded
		}
	}

	for _, result := range preflight.RunAll(ctx, cfg, settings) {
		attrs := []any{
			logging.String(logging.FieldEventType, "preflight_check"),
			logging.String("check", result.Name),
			logging.Bool("passed", result.Passed),
			logging.String("detail", result.Detail),
		}
		if result.Passed {
			logger.Info("preflight check", attrs...)
		} else {
			logger.Warn("preflight check failed", attrs...)
		}
	}

	for _, dep := range preflight.CheckSystemDeps(cfg) {
		logger.Info("dependency snapshot",
			logging.String(logging.FieldEventType, "dependency_snapshot"),
			logging.String("name", dep.Name),
			logging.String("command", dep.Command),
			logging.Bool("available", dep.Available),
			logging.String("detail", dep.Detail),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "permavid.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
