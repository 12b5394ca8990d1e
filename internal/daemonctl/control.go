// Package daemonctl orchestrates the daemon process from the CLI: launching a
// detached daemon, waiting for its HTTP API to come up, signaling shutdown, and
// assembling status snapshots with offline fallbacks when the daemon is down.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"permavid/internal/api"
	"permavid/internal/config"
	"permavid/internal/preflight"
	"permavid/internal/queue"
)

// ErrDaemonNotRunning indicates no daemon process could be found.
var ErrDaemonNotRunning = errors.New("daemon not running")

const pollInterval = 200 * time.Millisecond

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	APIBind    string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	PID      int
}

// StopResult captures daemon stop outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// PIDFilePath returns the location of the daemon PID file.
func PIDFilePath(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return filepath.Join(cfg.Paths.LogDir, "permavid.pid")
}

// Launch starts a detached permavid daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon", "run"}
	if cfgPath := strings.TrimSpace(opts.ConfigPath); cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	if bind := strings.TrimSpace(opts.APIBind); bind != "" {
		args = append(args, "--api", bind)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForAPI polls the daemon HTTP API until it answers or the timeout expires.
func WaitForAPI(ctx context.Context, cfg *config.Config, timeout time.Duration) (*api.Client, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	client, err := api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		_, healthErr := client.Health(ctx)
		if healthErr == nil {
			return client, nil
		}
		lastErr = healthErr
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon when its API is unreachable and reports
// the resulting state. A reachable API short-circuits to already-running.
func EnsureStarted(ctx context.Context, cfg *config.Config, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if cfg == nil {
		return StartResult{}, errors.New("configuration not available")
	}

	client, err := api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
	if err != nil {
		return StartResult{}, err
	}
	status, statusErr := client.Status(ctx)
	if statusErr == nil {
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
	}
	if !api.IsDaemonUnavailable(statusErr) {
		return StartResult{}, statusErr
	}

	if launchErr := Launch(executablePath, opts); launchErr != nil {
		return StartResult{}, launchErr
	}
	client, err = WaitForAPI(ctx, cfg, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}

	result := StartResult{State: StartStateStarted, Launched: true}
	if status, statusErr := client.Status(ctx); statusErr == nil {
		result.PID = status.PID
	}
	return result, nil
}

// ProcessInfo reports whether the daemon API is reachable and its PID when known.
func ProcessInfo(ctx context.Context, cfg *config.Config) (bool, int, error) {
	if cfg == nil {
		return false, 0, errors.New("configuration not available")
	}
	client, err := api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
	if err != nil {
		return false, 0, err
	}
	status, statusErr := client.Status(ctx)
	if statusErr != nil {
		if api.IsDaemonUnavailable(statusErr) {
			return false, 0, nil
		}
		return true, 0, statusErr
	}
	return true, status.PID, nil
}

// WaitForShutdown waits until the daemon API stops answering and the process
// with the given PID is gone.
func WaitForShutdown(ctx context.Context, cfg *config.Config, pid int, timeout time.Duration) error {
	if cfg == nil {
		return errors.New("configuration not available")
	}
	client, clientErr := api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)

	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		apiDown := true
		if clientErr == nil {
			if _, healthErr := client.Health(ctx); healthErr == nil {
				apiDown = false
				lastErr = fmt.Errorf("daemon still running")
			}
		}
		if apiDown && !processAlive(pid) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for shutdown")
	}
	return fmt.Errorf("daemon did not stop: %w", lastErr)
}

// Stop signals the daemon with SIGTERM and force-kills the process if it is
// still alive after gracePeriod.
func Stop(ctx context.Context, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	if cfg == nil {
		return StopResult{}, errors.New("configuration not available")
	}

	pid := 0
	reachable, livePID, infoErr := ProcessInfo(ctx, cfg)
	if infoErr == nil && reachable {
		pid = livePID
	}
	if pid <= 0 {
		pid = readPIDFile(PIDFilePath(cfg))
	}
	if pid <= 0 {
		return StopResult{}, ErrDaemonNotRunning
	}
	if !processAlive(pid) {
		// Stale PID file left behind by an unclean exit.
		_ = os.Remove(PIDFilePath(cfg))
		return StopResult{}, ErrDaemonNotRunning
	}

	if err := signalProcess(pid, syscall.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	result := StopResult{PID: pid}

	if err := WaitForShutdown(ctx, cfg, pid, gracePeriod); err == nil {
		return result, nil
	}

	killedPID, killErr := ForceKillProcess(PIDFilePath(cfg), cfg.LockFilePath(), pid)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(ctx context.Context, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := Stop(ctx, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(ctx, cfg, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// ForceKillProcess sends SIGKILL to the daemon process and cleans pid and lock files.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid := readPIDFile(pidPath)
	if pid <= 0 {
		pid = fallbackPID
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// BuildStatusSnapshot collects daemon status over HTTP and fills offline
// fallbacks for queue stats and dependency checks when the daemon is down.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (api.DaemonStatus, error) {
	if cfg == nil {
		return api.DaemonStatus{}, errors.New("configuration not available")
	}

	snapshot := api.DaemonStatus{
		QueueDBPath:  cfg.DatabasePath(),
		LockFilePath: cfg.LockFilePath(),
	}
	if client, err := api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken); err == nil {
		if status, statusErr := client.Status(ctx); statusErr == nil {
			snapshot = status
		}
	}

	if !snapshot.Running {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if store, openErr := queue.Open(cfg); openErr == nil {
			stats, statsErr := store.Stats(queryCtx)
			_ = store.Close()
			if statsErr == nil {
				converted := make(map[string]int, len(stats))
				for status, count := range stats {
					converted[string(status)] = count
				}
				snapshot.Workflow.QueueStats = converted
			}
		}
	}

	if len(snapshot.Dependencies) == 0 {
		snapshot.Dependencies = api.FromDependencyStatuses(preflight.CheckSystemDeps(cfg))
	}
	return snapshot, nil
}

func readPIDFile(path string) int {
	if path == "" {
		return 0
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return signalProcess(pid, syscall.Signal(0)) == nil
}

func signalProcess(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(sig)
}
