package ytdlp_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"permavid/internal/services"
	"permavid/internal/services/ytdlp"
)

type stubExecutor struct {
	lines []string
	tail  []string
	err   error
	calls int
	args  [][]string
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) ([]string, error) {
	s.calls++
	cloned := append([]string(nil), args...)
	s.args = append(s.args, cloned)
	for _, line := range s.lines {
		onStdout(line)
	}
	return s.tail, s.err
}

func TestDownloadBuildsExpectedArgs(t *testing.T) {
	destDir := filepath.Join(t.TempDir(), "dest")
	exec := &stubExecutor{}
	client, err := ytdlp.New("yt-dlp", 0, ytdlp.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if err := client.Download(context.Background(), "https://example.com/watch?v=abc", destDir, nil); err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if exec.calls != 1 {
		t.Fatalf("expected 1 executor invocation, got %d", exec.calls)
	}
	want := []string{
		"https://example.com/watch?v=abc",
		"--write-info-json",
		"--output", filepath.Join(destDir, "%(id)s.%(ext)s"),
		"--no-simulate",
		"--progress",
		"--newline",
		"--no-warnings",
	}
	got := exec.args[0]
	if len(got) != len(want) {
		t.Fatalf("unexpected arg count: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("arg %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestDownloadForwardsProgress(t *testing.T) {
	exec := &stubExecutor{lines: []string{
		"[youtube] abc: Downloading webpage",
		"[download] Destination: abc.mp4",
		"[download]   0.0% of 10.00MiB at Unknown speed ETA Unknown",
		"[download]  42.3% of 10.00MiB at 1.20MiB/s ETA 00:05",
		"[download] 100% of 10.00MiB in 00:08",
		"[info] Writing video metadata as JSON",
	}}
	client, err := ytdlp.New("yt-dlp", 0, ytdlp.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	var updates []ytdlp.ProgressUpdate
	err = client.Download(context.Background(), "https://example.com/v", t.TempDir(), func(u ytdlp.ProgressUpdate) {
		updates = append(updates, u)
	})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if len(updates) != 3 {
		t.Fatalf("expected 3 progress updates, got %d: %v", len(updates), updates)
	}
	if updates[1].Percent != 42.3 {
		t.Fatalf("expected 42.3%%, got %v", updates[1].Percent)
	}
	if updates[1].Message != "Downloading... 42.3%" {
		t.Fatalf("unexpected message %q", updates[1].Message)
	}
	if updates[2].Message != "Downloading... 100.0%" {
		t.Fatalf("unexpected final message %q", updates[2].Message)
	}
}

func TestDownloadWrapsExecutorFailureWithStderrTail(t *testing.T) {
	exec := &stubExecutor{
		err:  errors.New("exit status 1"),
		tail: []string{"ERROR: [youtube] abc: Video unavailable"},
	}
	client, err := ytdlp.New("yt-dlp", 0, ytdlp.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	err = client.Download(context.Background(), "https://example.com/v", t.TempDir(), nil)
	if err == nil {
		t.Fatal("expected error from executor")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "Video unavailable") {
		t.Fatalf("expected stderr tail in error, got: %v", err)
	}
	if detail := services.Detail(err); !strings.Contains(detail, "Stderr: ERROR: [youtube] abc: Video unavailable") {
		t.Fatalf("expected stderr in user detail, got: %q", detail)
	}
}

func TestDownloadReportsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &stubExecutor{err: errors.New("signal: killed")}
	client, err := ytdlp.New("yt-dlp", 0, ytdlp.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	err = client.Download(ctx, "https://example.com/v", t.TempDir(), nil)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker for cancellation, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled cause, got %v", err)
	}
}

func TestDownloadValidatesInputs(t *testing.T) {
	client, err := ytdlp.New("yt-dlp", 0, ytdlp.WithExecutor(&stubExecutor{}))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := client.Download(context.Background(), "  ", t.TempDir(), nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty url, got %v", err)
	}
	if err := client.Download(context.Background(), "https://example.com/v", "", nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty dest, got %v", err)
	}
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := ytdlp.New("  ", 0); err == nil {
		t.Fatal("expected error for empty binary")
	}
}
