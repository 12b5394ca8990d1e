package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"permavid/internal/services"
)

// stderrTailLimit bounds how many trailing stderr lines survive into error
// messages. yt-dlp can emit thousands of lines on a playlist failure.
const stderrTailLimit = 12

// ProgressUpdate captures a single yt-dlp download progress line.
type ProgressUpdate struct {
	Percent float64
	Message string
}

// Downloader defines the behaviour required by the downloading handler.
type Downloader interface {
	Download(ctx context.Context, url, destDir string, progress func(ProgressUpdate)) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) (stderrTail []string, err error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary          string
	downloadTimeout time.Duration
	exec            Executor
}

// New constructs a yt-dlp client.
func New(binary string, downloadTimeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	timeout := time.Duration(downloadTimeoutSeconds) * time.Second
	client := &Client{
		binary:          binary,
		downloadTimeout: timeout,
		exec:            commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Download executes yt-dlp for a single URL, streaming progress updates until
// the process exits. Media and the .info.json sidecar land in destDir named by
// the extractor's video ID.
func (c *Client) Download(ctx context.Context, url, destDir string, progress func(ProgressUpdate)) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return services.Wrap(services.ErrValidation, "ytdlp", "download", "url required", nil)
	}
	if destDir == "" {
		return services.Wrap(services.ErrValidation, "ytdlp", "download", "destination directory required", nil)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "ytdlp", "download", "create destination", err)
	}

	runCtx := ctx
	if c.downloadTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.downloadTimeout)
		defer cancel()
	}

	args := buildArgs(url, destDir)
	tail, err := c.exec.Run(runCtx, c.binary, args, func(line string) {
		if progress == nil {
			return
		}
		if update, ok := parseProgress(line); ok {
			progress(update)
		}
	})
	if err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return services.Wrap(services.ErrTransient, "ytdlp", "download", "Download interrupted", ctxErr)
		}
		return services.Wrap(services.ErrExternalTool, "ytdlp", "download", failureMessage(tail, err), err)
	}
	return nil
}

// failureMessage mirrors the diagnostics users see in the queue: the exit code
// when the process ran, or a spawn hint when it never started, plus the
// captured stderr tail.
func failureMessage(tail []string, err error) string {
	stderr := strings.Join(tail, "; ")
	if stderr == "" {
		stderr = "None"
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Sprintf("yt-dlp exited with code %d. Stderr: %s", exitErr.ExitCode(), stderr)
	}
	return fmt.Sprintf("Failed to start yt-dlp; is yt-dlp installed and in PATH? Stderr: %s", stderr)
}

func buildArgs(url, destDir string) []string {
	return []string{
		url,
		"--write-info-json",
		"--output", filepath.Join(destDir, "%(id)s.%(ext)s"),
		"--no-simulate",
		"--progress",
		"--newline",
		"--no-warnings",
	}
}

// progressPattern matches yt-dlp's per-line progress output, for example
// "[download]  42.3% of 10.00MiB at 1.20MiB/s ETA 00:05".
var progressPattern = regexp.MustCompile(`\[download\]\s+(\d{1,3}(?:\.\d+)?)%`)

func parseProgress(line string) (ProgressUpdate, bool) {
	match := progressPattern.FindStringSubmatch(line)
	if match == nil {
		return ProgressUpdate{}, false
	}
	percent, err := strconv.ParseFloat(match[1], 64)
	if err != nil || percent < 0 || percent > 100 {
		return ProgressUpdate{}, false
	}
	return ProgressUpdate{
		Percent: percent,
		Message: fmt.Sprintf("Downloading... %.1f%%", percent),
	}, true
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) ([]string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	tail := newTailBuffer(stderrTailLimit)

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout, func(line string) {
		if onStdout != nil {
			onStdout(line)
		}
	})
	go scan(stderr, tail.Append)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return tail.Lines(), fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return tail.Lines(), fmt.Errorf("wait command: %w", err)
	}
	return tail.Lines(), nil
}

// tailBuffer keeps the last N non-empty lines written to it.
type tailBuffer struct {
	limit int
	lines []string
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Append(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *tailBuffer) Lines() []string {
	return t.lines
}
