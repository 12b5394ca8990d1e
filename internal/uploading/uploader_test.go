package uploading_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"permavid/internal/logging"
	"permavid/internal/notifications"
	"permavid/internal/queue"
	"permavid/internal/services"
	"permavid/internal/services/filesvc"
	"permavid/internal/testsupport"
	"permavid/internal/uploading"
)

type fakeFilemoon struct {
	apiKey    string
	localPath string
	calls     int
	err       error
}

func (f *fakeFilemoon) UploadServer(_ context.Context, apiKey string) (string, error) {
	f.calls++
	f.apiKey = apiKey
	if f.err != nil {
		return "", f.err
	}
	return "https://s42.filemoon.example/upload/01", nil
}

func (f *fakeFilemoon) Upload(_ context.Context, _, apiKey, localPath string) (string, error) {
	f.apiKey = apiKey
	f.localPath = localPath
	if f.err != nil {
		return "", f.err
	}
	return "fm1a2b3c", nil
}

type fakeFilesVC struct {
	apiKey    string
	localPath string
	calls     int
	result    filesvc.UploadResult
	err       error
}

func (f *fakeFilesVC) Upload(_ context.Context, apiKey, localPath string) (filesvc.UploadResult, error) {
	f.calls++
	f.apiKey = apiKey
	f.localPath = localPath
	if f.err != nil {
		return filesvc.UploadResult{}, f.err
	}
	return f.result, nil
}

type stubNotifier struct {
	events []notifications.Event
}

func (s *stubNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	s.events = append(s.events, event)
	return nil
}

func TestNormalizeTarget(t *testing.T) {
	cases := map[string]string{
		"":          uploading.TargetFilemoon,
		"filemoon":  uploading.TargetFilemoon,
		"FILEMOON":  uploading.TargetFilemoon,
		"files_vc":  uploading.TargetFilesVC,
		"filesvc":   uploading.TargetFilesVC,
		"both":      uploading.TargetBoth,
		" both ":    uploading.TargetBoth,
		"megacloud": "",
	}
	for raw, want := range cases {
		if got := uploading.NormalizeTarget(raw); got != want {
			t.Fatalf("NormalizeTarget(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestUploaderSendsToFilemoon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustSaveSettings(t, store, queue.Settings{FilemoonAPIKey: "fm-key"})

	localPath := filepath.Join(testsupport.BaseDir(cfg), "clips", "abc123def.mp4")
	testsupport.WriteFile(t, localPath, 256)

	item := testsupport.AddItem(t, store, "https://example.com/watch?v=abc123def")
	item.Status = queue.StatusCompleted
	item.LocalPath = localPath

	ctx := context.Background()
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fm := &fakeFilemoon{}
	fv := &fakeFilesVC{}
	notifier := &stubNotifier{}
	handler := uploading.NewUploaderWithDependencies(cfg, store, logging.NewNop(), fm, fv, notifier)

	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if item.Message != "Starting upload..." {
		t.Fatalf("unexpected prepare message: %q", item.Message)
	}
	item.Status = queue.StatusUploading
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update after prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if fm.apiKey != "fm-key" {
		t.Fatalf("expected filemoon key, got %q", fm.apiKey)
	}
	if fm.localPath != localPath {
		t.Fatalf("expected upload of %q, got %q", localPath, fm.localPath)
	}
	if fv.calls != 0 {
		t.Fatalf("expected no files.vc attempt, got %d", fv.calls)
	}

	updated, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Status != queue.StatusTransferring {
		t.Fatalf("expected status transferring, got %s", updated.Status)
	}
	if updated.Provider != queue.ProviderFilemoon {
		t.Fatalf("unexpected provider: %q", updated.Provider)
	}
	if updated.ProviderRef != "fm1a2b3c" {
		t.Fatalf("unexpected provider ref: %q", updated.ProviderRef)
	}
	if updated.Message != "Filemoon: fm1a2b3c. Awaiting encoding..." {
		t.Fatalf("unexpected message: %q", updated.Message)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventUploadCompleted {
		t.Fatalf("expected upload completion notification, got %v", notifier.events)
	}
	if _, err := os.Stat(localPath); err != nil {
		t.Fatalf("expected local file to survive without delete_after_upload: %v", err)
	}
}

func TestUploaderSendsToFilesVC(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustSaveSettings(t, store, queue.Settings{
		FilesVCAPIKey: "fv-key",
		UploadTarget:  "files_vc",
	})

	localPath := filepath.Join(testsupport.BaseDir(cfg), "clips", "abc123def.mp4")
	testsupport.WriteFile(t, localPath, 256)

	item := testsupport.AddItem(t, store, "https://example.com/watch?v=abc123def")
	item.Status = queue.StatusCompleted
	item.LocalPath = localPath

	ctx := context.Background()
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fm := &fakeFilemoon{}
	fv := &fakeFilesVC{result: filesvc.UploadResult{FileCode: "vc9z8y", URL: "https://files.vc/d/vc9z8y"}}
	handler := uploading.NewUploaderWithDependencies(cfg, store, logging.NewNop(), fm, fv, &stubNotifier{})

	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	item.Status = queue.StatusUploading
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update after prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if fm.calls != 0 {
		t.Fatalf("expected no filemoon attempt, got %d", fm.calls)
	}
	if fv.apiKey != "fv-key" {
		t.Fatalf("expected files.vc key, got %q", fv.apiKey)
	}

	updated, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Status != queue.StatusEncoded {
		t.Fatalf("expected status encoded, got %s", updated.Status)
	}
	if updated.Provider != queue.ProviderFilesVC {
		t.Fatalf("unexpected provider: %q", updated.Provider)
	}
	if updated.ProviderRef != "https://files.vc/d/vc9z8y" {
		t.Fatalf("unexpected provider ref: %q", updated.ProviderRef)
	}
	if updated.EncodingProgress != 100 {
		t.Fatalf("unexpected progress: %d", updated.EncodingProgress)
	}
	if updated.Message != "Files.vc: https://files.vc/d/vc9z8y" {
		t.Fatalf("unexpected message: %q", updated.Message)
	}
}

func TestUploaderBothFallsBackToFilesVC(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustSaveSettings(t, store, queue.Settings{
		FilemoonAPIKey: "fm-key",
		FilesVCAPIKey:  "fv-key",
		UploadTarget:   "both",
	})

	localPath := filepath.Join(testsupport.BaseDir(cfg), "clips", "abc123def.mp4")
	testsupport.WriteFile(t, localPath, 256)

	item := testsupport.AddItem(t, store, "https://example.com/watch?v=abc123def")
	item.Status = queue.StatusUploading
	item.LocalPath = localPath

	ctx := context.Background()
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fm := &fakeFilemoon{err: services.Wrap(services.ErrProvider, "filemoon", "upload server", "Filemoon upload server request failed", errors.New("connection refused"))}
	fv := &fakeFilesVC{result: filesvc.UploadResult{URL: "https://files.vc/d/vc9z8y"}}
	handler := uploading.NewUploaderWithDependencies(cfg, store, logging.NewNop(), fm, fv, &stubNotifier{})

	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if fm.calls != 1 {
		t.Fatalf("expected one filemoon attempt, got %d", fm.calls)
	}
	if fv.calls != 1 {
		t.Fatalf("expected one files.vc attempt, got %d", fv.calls)
	}

	updated, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Status != queue.StatusEncoded {
		t.Fatalf("expected fallback to reach encoded, got %s", updated.Status)
	}
	if updated.Provider != queue.ProviderFilesVC {
		t.Fatalf("unexpected provider: %q", updated.Provider)
	}
}

func TestUploaderPrepareRejectsUnreadyItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustSaveSettings(t, store, queue.Settings{FilemoonAPIKey: "fm-key"})
	ctx := context.Background()

	fm := &fakeFilemoon{}
	fv := &fakeFilesVC{}
	handler := uploading.NewUploaderWithDependencies(cfg, store, logging.NewNop(), fm, fv, &stubNotifier{})

	queued := testsupport.AddItem(t, store, "https://example.com/watch?v=abc123def")
	err := handler.Prepare(ctx, queued)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for queued item, got %v", err)
	}
	if !strings.Contains(services.Detail(err), "is not in a completed state") {
		t.Fatalf("unexpected detail: %q", services.Detail(err))
	}

	noPath := testsupport.AddItem(t, store, "https://example.com/watch?v=def456ghi")
	noPath.Status = queue.StatusCompleted
	if updateErr := store.Update(ctx, noPath); updateErr != nil {
		t.Fatalf("Update: %v", updateErr)
	}
	err = handler.Prepare(ctx, noPath)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error without local path, got %v", err)
	}
	if got := services.Detail(err); got != "Upload failed: Local file path not found for item." {
		t.Fatalf("unexpected detail: %q", got)
	}

	missingFile := testsupport.AddItem(t, store, "https://example.com/watch?v=ghi789jkl")
	missingFile.Status = queue.StatusCompleted
	missingFile.LocalPath = filepath.Join(testsupport.BaseDir(cfg), "gone.mp4")
	if updateErr := store.Update(ctx, missingFile); updateErr != nil {
		t.Fatalf("Update: %v", updateErr)
	}
	err = handler.Prepare(ctx, missingFile)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error for missing file, got %v", err)
	}
	if !strings.Contains(services.Detail(err), "Local file not found at:") {
		t.Fatalf("unexpected detail: %q", services.Detail(err))
	}

	if fm.calls != 0 || fv.calls != 0 {
		t.Fatalf("expected no provider traffic during preparation, got filemoon=%d filesvc=%d", fm.calls, fv.calls)
	}
}

func TestUploaderPrepareRequiresAPIKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	localPath := filepath.Join(testsupport.BaseDir(cfg), "clips", "abc123def.mp4")
	testsupport.WriteFile(t, localPath, 64)
	item := testsupport.AddItem(t, store, "https://example.com/watch?v=abc123def")
	item.Status = queue.StatusCompleted
	item.LocalPath = localPath
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	handler := uploading.NewUploaderWithDependencies(cfg, store, logging.NewNop(), &fakeFilemoon{}, &fakeFilesVC{}, &stubNotifier{})

	err := handler.Prepare(ctx, item)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if got := services.Detail(err); got != "Filemoon API key not configured" {
		t.Fatalf("unexpected detail: %q", got)
	}

	testsupport.MustSaveSettings(t, store, queue.Settings{UploadTarget: "files_vc"})
	err = handler.Prepare(ctx, item)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if got := services.Detail(err); got != "Files.vc API key not configured" {
		t.Fatalf("unexpected detail: %q", got)
	}

	testsupport.MustSaveSettings(t, store, queue.Settings{UploadTarget: "megacloud"})
	err = handler.Prepare(ctx, item)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if got := services.Detail(err); got != "Unknown upload target: megacloud" {
		t.Fatalf("unexpected detail: %q", got)
	}
}

func TestUploaderDeletesLocalFileWhenConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustSaveSettings(t, store, queue.Settings{
		FilemoonAPIKey:    "fm-key",
		DeleteAfterUpload: true,
	})

	localPath := filepath.Join(testsupport.BaseDir(cfg), "clips", "abc123def.mp4")
	testsupport.WriteFile(t, localPath, 256)

	item := testsupport.AddItem(t, store, "https://example.com/watch?v=abc123def")
	item.Status = queue.StatusUploading
	item.LocalPath = localPath

	ctx := context.Background()
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	handler := uploading.NewUploaderWithDependencies(cfg, store, logging.NewNop(), &fakeFilemoon{}, &fakeFilesVC{}, &stubNotifier{})
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, err := os.Stat(localPath); !os.IsNotExist(err) {
		t.Fatalf("expected local file removed, stat returned %v", err)
	}
}

func TestUploaderDiscardsOutcomeAfterCancellation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustSaveSettings(t, store, queue.Settings{FilemoonAPIKey: "fm-key", DeleteAfterUpload: true})

	localPath := filepath.Join(testsupport.BaseDir(cfg), "clips", "abc123def.mp4")
	testsupport.WriteFile(t, localPath, 256)

	item := testsupport.AddItem(t, store, "https://example.com/watch?v=abc123def")
	item.Status = queue.StatusUploading
	item.LocalPath = localPath

	ctx := context.Background()
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := store.UpdateStatus(ctx, item.ID, queue.StatusCancelled, "Cancelled by user"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	notifier := &stubNotifier{}
	handler := uploading.NewUploaderWithDependencies(cfg, store, logging.NewNop(), &fakeFilemoon{}, &fakeFilesVC{}, notifier)
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	updated, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Status != queue.StatusCancelled {
		t.Fatalf("expected cancellation to stick, got %s", updated.Status)
	}
	if updated.Provider != "" || updated.ProviderRef != "" {
		t.Fatalf("expected no provider fields on cancelled item, got %q/%q", updated.Provider, updated.ProviderRef)
	}
	if item.Status != queue.StatusCancelled {
		t.Fatalf("expected in-memory item marked cancelled, got %s", item.Status)
	}
	if len(notifier.events) != 0 {
		t.Fatalf("expected no notification for discarded outcome, got %v", notifier.events)
	}
	if _, err := os.Stat(localPath); err != nil {
		t.Fatalf("expected local file kept for cancelled item: %v", err)
	}
}

func TestUploaderHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	handler := uploading.NewUploaderWithDependencies(cfg, store, logging.NewNop(), &fakeFilemoon{}, &fakeFilesVC{}, &stubNotifier{})
	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy stage, got %+v", health)
	}

	handler = uploading.NewUploaderWithDependencies(cfg, store, logging.NewNop(), nil, &fakeFilesVC{}, &stubNotifier{})
	if health := handler.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy stage without filemoon client")
	}
}
