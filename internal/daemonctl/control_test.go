package daemonctl_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"permavid/internal/config"
	"permavid/internal/daemon"
	"permavid/internal/daemonctl"
	"permavid/internal/logging"
	"permavid/internal/queue"
	"permavid/internal/stage"
	"permavid/internal/testsupport"
	"permavid/internal/workflow"
)

type stubStage struct{ name string }

func (s stubStage) Prepare(ctx context.Context, item *queue.Item) error { return nil }
func (s stubStage) Execute(ctx context.Context, item *queue.Item) error { return nil }
func (s stubStage) HealthCheck(ctx context.Context) stage.Health        { return stage.Healthy(s.name) }

type stubPoller struct{}

func (stubPoller) Check(ctx context.Context, check queue.StatusCheck) error { return nil }
func (stubPoller) Restart(ctx context.Context, id string) error             { return nil }
func (stubPoller) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("readiness")
}

func startTestDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, store, logging.NewNop())
	manager.ConfigureStages(workflow.StageSet{
		Downloader: stubStage{name: "downloader"},
		Uploader:   stubStage{name: "uploader"},
		Poller:     stubPoller{},
	})
	d, err := daemon.New(cfg, store, logging.NewNop(), manager, "")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	_, err := daemonctl.Stop(context.Background(), cfg, time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("Stop error = %v, want ErrDaemonNotRunning", err)
	}
}

func TestStopRemovesStalePIDFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	pidPath := daemonctl.PIDFilePath(cfg)
	// A PID no init system hands out; the process cannot exist.
	if err := os.WriteFile(pidPath, []byte("999999999\n"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	_, err := daemonctl.Stop(context.Background(), cfg, time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("Stop error = %v, want ErrDaemonNotRunning", err)
	}
	if _, statErr := os.Stat(pidPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("stale pid file still present (stat err %v)", statErr)
	}
}

func TestForceKillProcessRefusesSelf(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "permavid.pid")
	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	if _, err := daemonctl.ForceKillProcess(pidPath, "", 0); err == nil || !strings.Contains(err.Error(), "refusing to kill current process") {
		t.Fatalf("ForceKillProcess error = %v, want self-kill refusal", err)
	}
}

func TestForceKillProcessWithoutPID(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "permavid.pid")
	if _, err := daemonctl.ForceKillProcess(pidPath, "", 0); err == nil || !strings.Contains(err.Error(), "unable to determine daemon pid") {
		t.Fatalf("ForceKillProcess error = %v, want missing-pid failure", err)
	}
}

func TestWaitForAPIGivesUp(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = addr

	_, err = daemonctl.WaitForAPI(context.Background(), cfg, 500*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "daemon failed to start") {
		t.Fatalf("WaitForAPI error = %v, want startup failure", err)
	}
}

func TestEnsureStartedDetectsRunningDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	d := startTestDaemon(t, cfg)
	cfg.Paths.APIBind = d.APIAddr()

	result, err := daemonctl.EnsureStarted(context.Background(), cfg, "permavid-test-no-binary", daemonctl.LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if result.State != daemonctl.StartStateAlreadyRunning {
		t.Fatalf("State = %q, want %q", result.State, daemonctl.StartStateAlreadyRunning)
	}
	if result.Launched {
		t.Fatal("Launched = true for an already-running daemon")
	}
	if result.PID != os.Getpid() {
		t.Fatalf("PID = %d, want %d", result.PID, os.Getpid())
	}
}

func TestProcessInfoReportsReachability(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	d := startTestDaemon(t, cfg)
	cfg.Paths.APIBind = d.APIAddr()

	running, pid, err := daemonctl.ProcessInfo(context.Background(), cfg)
	if err != nil {
		t.Fatalf("ProcessInfo: %v", err)
	}
	if !running || pid != os.Getpid() {
		t.Fatalf("ProcessInfo = (%t, %d), want (true, %d)", running, pid, os.Getpid())
	}

	d.Stop()
	running, _, err = daemonctl.ProcessInfo(context.Background(), cfg)
	if err != nil {
		t.Fatalf("ProcessInfo after stop: %v", err)
	}
	if running {
		t.Fatal("ProcessInfo reports running after daemon stop")
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("yt-dlp", "ffmpeg"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	if _, err := store.Add(context.Background(), "https://example.com/video"); err != nil {
		t.Fatalf("seed item: %v", err)
	}

	snapshot, err := daemonctl.BuildStatusSnapshot(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snapshot.Running {
		t.Fatal("snapshot reports running without a daemon")
	}
	if snapshot.QueueDBPath != cfg.DatabasePath() {
		t.Fatalf("QueueDBPath = %q, want %q", snapshot.QueueDBPath, cfg.DatabasePath())
	}
	if got := snapshot.Workflow.QueueStats[string(queue.StatusQueued)]; got != 1 {
		t.Fatalf("queued stat = %d, want 1", got)
	}
	if len(snapshot.Dependencies) == 0 {
		t.Fatal("expected dependency fallback when daemon is down")
	}
	for _, dep := range snapshot.Dependencies {
		if !dep.Available {
			t.Fatalf("dependency %s unavailable with stubbed binaries: %s", dep.Name, dep.Detail)
		}
	}
}
