package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"permavid/internal/config"
	"permavid/internal/logging"
	"permavid/internal/notifications"
	"permavid/internal/queue"
	"permavid/internal/stage"
	"permavid/internal/workflow"
)

type stubNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (s *stubNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *stubNotifier) published() []notifications.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notifications.Event(nil), s.events...)
}

type fakeStage struct {
	name    string
	prepare func(ctx context.Context, item *queue.Item) error
	execute func(ctx context.Context, item *queue.Item) error

	mu       sync.Mutex
	prepared int
	executed int
}

func (f *fakeStage) Prepare(ctx context.Context, item *queue.Item) error {
	f.mu.Lock()
	f.prepared++
	f.mu.Unlock()
	if f.prepare != nil {
		return f.prepare(ctx, item)
	}
	return nil
}

func (f *fakeStage) Execute(ctx context.Context, item *queue.Item) error {
	f.mu.Lock()
	f.executed++
	f.mu.Unlock()
	if f.execute != nil {
		return f.execute(ctx, item)
	}
	return nil
}

func (f *fakeStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(f.name)
}

func (f *fakeStage) calls() (prepared, executed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prepared, f.executed
}

type fakePoller struct {
	check   func(ctx context.Context, check queue.StatusCheck) error
	restart func(ctx context.Context, id string) error

	mu       sync.Mutex
	checks   []queue.StatusCheck
	restarts []string
}

func (f *fakePoller) Check(ctx context.Context, check queue.StatusCheck) error {
	f.mu.Lock()
	f.checks = append(f.checks, check)
	f.mu.Unlock()
	if f.check != nil {
		return f.check(ctx, check)
	}
	return nil
}

func (f *fakePoller) Restart(ctx context.Context, id string) error {
	f.mu.Lock()
	f.restarts = append(f.restarts, id)
	f.mu.Unlock()
	if f.restart != nil {
		return f.restart(ctx, id)
	}
	return nil
}

func (f *fakePoller) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("readiness")
}

func (f *fakePoller) seenChecks() []queue.StatusCheck {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.StatusCheck(nil), f.checks...)
}

func (f *fakePoller) seenRestarts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.restarts...)
}

// completingDownloader persists the completed outcome the way the real
// download stage does, through the guarded writer.
func completingDownloader(store *queue.Store) *fakeStage {
	return &fakeStage{
		name: "downloader",
		execute: func(ctx context.Context, item *queue.Item) error {
			changed, err := store.UpdateAfterDownload(ctx, item.ID, queue.StatusCompleted,
				"Test Clip", "/tmp/clip.mp4", "", "Download completed")
			if err != nil {
				return err
			}
			if !changed {
				item.Status = queue.StatusCancelled
				return nil
			}
			item.Status = queue.StatusCompleted
			item.Title = "Test Clip"
			item.LocalPath = "/tmp/clip.mp4"
			item.Message = "Download completed"
			return nil
		},
	}
}

// archivingUploader persists the encoded outcome the way the real upload
// stage does for a direct-link provider.
func archivingUploader(store *queue.Store) *fakeStage {
	return &fakeStage{
		name: "uploader",
		execute: func(ctx context.Context, item *queue.Item) error {
			ref := "https://files.example/f/abc"
			changed, err := store.UpdateAfterUpload(ctx, item.ID, queue.StatusEncoded,
				queue.ProviderFilesVC, ref, 100, "Files.vc: "+ref)
			if err != nil {
				return err
			}
			if !changed {
				item.Status = queue.StatusCancelled
				return nil
			}
			item.Status = queue.StatusEncoded
			item.Provider = queue.ProviderFilesVC
			item.ProviderRef = ref
			item.EncodingProgress = 100
			return nil
		},
	}
}

func startManager(t *testing.T, cfg *config.Config, store *queue.Store, set workflow.StageSet, notifier notifications.Service) *workflow.Manager {
	t.Helper()
	if notifier == nil {
		notifier = &stubNotifier{}
	}
	m := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier,
		workflow.WithPollIntervals(10*time.Millisecond, 5*time.Millisecond))
	m.ConfigureStages(set)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(m.Stop)
	return m
}

func waitForStatus(t *testing.T, store *queue.Store, id string, want queue.Status) *queue.Item {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		item, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if item != nil && item.Status == want {
			return item
		}
		if time.Now().After(deadline) {
			got := queue.Status("missing")
			if item != nil {
				got = item.Status
			}
			t.Fatalf("item %s never reached %s (last status %s)", id, want, got)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
