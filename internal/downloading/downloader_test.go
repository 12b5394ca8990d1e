package downloading_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"permavid/internal/downloading"
	"permavid/internal/logging"
	"permavid/internal/notifications"
	"permavid/internal/queue"
	"permavid/internal/services"
	"permavid/internal/services/ytdlp"
	"permavid/internal/testsupport"
)

type fakeDownloader struct {
	url     string
	destDir string
	updates []ytdlp.ProgressUpdate
	onRun   func(destDir string)
	err     error
}

func (f *fakeDownloader) Download(ctx context.Context, url, destDir string, progress func(ytdlp.ProgressUpdate)) error {
	f.url = url
	f.destDir = destDir
	for _, update := range f.updates {
		if progress != nil {
			progress(update)
		}
	}
	if f.onRun != nil {
		f.onRun(destDir)
	}
	return f.err
}

type stubNotifier struct {
	events []notifications.Event
}

func (s *stubNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	s.events = append(s.events, event)
	return nil
}

func TestDownloaderCompletesItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.AddItem(t, store, "https://www.youtube.com/watch?v=dQw4w9WgXcQ")

	fake := &fakeDownloader{
		updates: []ytdlp.ProgressUpdate{
			{Percent: 42.3, Message: "Downloading... 42.3%"},
			{Percent: 100, Message: "Downloading... 100.0%"},
		},
		onRun: func(destDir string) {
			testsupport.WriteFile(t, filepath.Join(destDir, "dQw4w9WgXcQ.mp4"), 64)
			testsupport.WriteSidecar(t, filepath.Join(destDir, "dQw4w9WgXcQ.info.json"), map[string]any{
				"title":       "Launch Day",
				"channel":     "Rocket Lab",
				"thumbnail":   "https://img.example/launch.jpg",
				"ext":         "mp4",
				"_filename":   "dQw4w9WgXcQ.mp4",
				"webpage_url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			})
		},
	}
	notifier := &stubNotifier{}
	handler := downloading.NewDownloaderWithDependencies(cfg, store, logging.NewNop(), fake, notifier)

	ctx := context.Background()
	item.Status = queue.StatusDownloading
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if item.Message != "Download starting..." {
		t.Fatalf("unexpected prepare message: %q", item.Message)
	}
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update after prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if fake.url != item.URL {
		t.Fatalf("expected downloader to receive %q, got %q", item.URL, fake.url)
	}
	if fake.destDir != cfg.Paths.DownloadDir {
		t.Fatalf("expected default download dir %q, got %q", cfg.Paths.DownloadDir, fake.destDir)
	}

	updated, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Status != queue.StatusCompleted {
		t.Fatalf("expected status completed, got %s", updated.Status)
	}
	if updated.Title != "Launch Day" {
		t.Fatalf("unexpected title: %q", updated.Title)
	}
	if updated.ThumbnailURL != "https://img.example/launch.jpg" {
		t.Fatalf("unexpected thumbnail: %q", updated.ThumbnailURL)
	}
	if !strings.HasSuffix(updated.LocalPath, "dQw4w9WgXcQ.mp4") {
		t.Fatalf("unexpected local path: %q", updated.LocalPath)
	}
	if updated.Message != "Download complete" {
		t.Fatalf("unexpected message: %q", updated.Message)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventDownloadCompleted {
		t.Fatalf("expected download completion notification, got %v", notifier.events)
	}
}

func TestDownloaderHonorsDownloadDirectorySetting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	override := filepath.Join(testsupport.BaseDir(cfg), "custom-downloads")
	testsupport.MustSaveSettings(t, store, queue.Settings{DownloadDirectory: override})
	item := testsupport.AddItem(t, store, "https://example.com/watch?v=abc123def")

	fake := &fakeDownloader{}
	handler := downloading.NewDownloaderWithDependencies(cfg, store, logging.NewNop(), fake, &stubNotifier{})

	ctx := context.Background()
	item.Status = queue.StatusDownloading
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if fake.destDir != override {
		t.Fatalf("expected settings dir %q, got %q", override, fake.destDir)
	}

	updated, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Status != queue.StatusCompleted {
		t.Fatalf("expected degraded completion, got %s", updated.Status)
	}
	if updated.LocalPath != "" {
		t.Fatalf("expected empty local path without sidecar, got %q", updated.LocalPath)
	}
}

func TestDownloaderKeepsLastProgressOnFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.AddItem(t, store, "https://example.com/watch?v=abc123def")

	fake := &fakeDownloader{
		updates: []ytdlp.ProgressUpdate{{Percent: 18.5, Message: "Downloading... 18.5%"}},
		err:     services.Wrap(services.ErrExternalTool, "ytdlp", "download", "Video unavailable", errors.New("exit status 1")),
	}
	handler := downloading.NewDownloaderWithDependencies(cfg, store, logging.NewNop(), fake, &stubNotifier{})

	ctx := context.Background()
	item.Status = queue.StatusDownloading
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}
	err := handler.Execute(ctx, item)
	if err == nil {
		t.Fatal("expected execute error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}

	updated, getErr := store.Get(ctx, item.ID)
	if getErr != nil {
		t.Fatalf("Get: %v", getErr)
	}
	if updated.Status != queue.StatusDownloading {
		t.Fatalf("expected status downloading pending failure handling, got %s", updated.Status)
	}
	if updated.Message != "Downloading... 18.5%" {
		t.Fatalf("expected last progress message, got %q", updated.Message)
	}
}

func TestDownloaderPrepareRequiresClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.AddItem(t, store, "https://example.com/watch?v=abc123def")

	handler := downloading.NewDownloaderWithDependencies(cfg, store, logging.NewNop(), nil, &stubNotifier{})
	err := handler.Prepare(context.Background(), item)
	if err == nil {
		t.Fatal("expected prepare error without client")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDownloaderHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)
	handler := downloading.NewDownloaderWithDependencies(cfg, store, logging.NewNop(), &fakeDownloader{}, &stubNotifier{})

	health := handler.HealthCheck(context.Background())
	if !health.Ready {
		t.Fatalf("expected healthy stage, got %+v", health)
	}

	missing := testsupport.NewConfig(t, testsupport.WithYtDLPBinary(filepath.Join(testsupport.BaseDir(cfg), "missing", "yt-dlp")))
	handler = downloading.NewDownloaderWithDependencies(missing, store, logging.NewNop(), &fakeDownloader{}, &stubNotifier{})
	health = handler.HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected unhealthy stage for missing binary")
	}
	if !strings.Contains(health.Detail, "not found") {
		t.Fatalf("unexpected detail: %q", health.Detail)
	}
}
