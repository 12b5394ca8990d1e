package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"permavid/internal/config"
	"permavid/internal/daemon"
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

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	configPath string
	// offlineBind is a loopback address with nothing listening, so commands
	// fall back to the direct store path without waiting out a dial timeout.
	offlineBind string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("yt-dlp", "ffmpeg"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:         cfg,
		store:       store,
		configPath:  configPath,
		offlineBind: unusedAddr(t),
	}
}

// startDaemon brings up a live HTTP API backed by env.store so commands
// exercise the daemon path instead of the store fallback. Returns the bound
// address for the --api flag.
func (env *cliTestEnv) startDaemon(t *testing.T) string {
	t.Helper()

	manager := workflow.NewManager(env.cfg, env.store, logging.NewNop())
	manager.ConfigureStages(workflow.StageSet{
		Downloader: stubStage{name: "downloader"},
		Uploader:   stubStage{name: "uploader"},
		Poller:     stubPoller{},
	})

	d, err := daemon.New(env.cfg, env.store, logging.NewNop(), manager, "")
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
		d.Close()
		cancel()
	})
	return d.APIAddr()
}

func runCLI(t *testing.T, args []string, apiBind, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--api", apiBind}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nstate_dir = %q\nlog_dir = %q\ndownload_dir = %q\napi_bind = %q\n",
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.DownloadDir,
		cfg.Paths.APIBind,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func unusedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	return addr
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
