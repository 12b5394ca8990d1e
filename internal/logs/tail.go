package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// TailOptions controls a single Tail call.
type TailOptions struct {
	// Offset is the byte position to read from. Negative means start from the
	// end of the file, keeping only the last Limit lines.
	Offset int64
	// Limit caps the number of lines returned when Offset is negative. Zero
	// skips straight to the end of the file without returning anything.
	Limit int
	// Follow keeps the call open for up to Wait when no new lines exist yet.
	Follow bool
	// Wait bounds how long a Follow call blocks before returning empty.
	Wait time.Duration
}

// TailResult carries the lines read and the offset where the next call
// should resume.
type TailResult struct {
	Lines  []string
	Offset int64
}

const (
	scanBufferInitial = 64 * 1024
	scanBufferMax     = 1 << 20
	followPollEvery   = 250 * time.Millisecond
)

// Tail reads log lines from path according to opts. A missing file is not an
// error: the result is empty with offset zero so callers can poll again once
// the daemon writes its first line.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	if opts.Wait < 0 {
		opts.Wait = 0
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	var (
		lines  []string
		offset int64
	)
	if opts.Offset < 0 {
		lines, offset, err = lastLines(path, opts.Limit)
	} else {
		start := opts.Offset
		if start > info.Size() {
			// The file shrank under us, most likely rotation. Resume at the
			// new end instead of failing the seek.
			start = info.Size()
		}
		lines, offset, err = linesAfter(path, start)
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, err
	}

	if len(lines) == 0 && opts.Follow && opts.Wait > 0 {
		return awaitLines(ctx, path, offset, opts.Wait)
	}
	return TailResult{Lines: lines, Offset: offset}, nil
}

// lastLines returns the final limit lines of the file and the offset at its
// end. A fixed ring keeps memory bounded no matter how large the file is.
func lastLines(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}
	if limit <= 0 {
		return nil, end, nil
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	ring := make([]string, limit)
	total := 0
	scanner := newLineScanner(file)
	for scanner.Scan() {
		ring[total%limit] = scanner.Text()
		total++
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}

	kept := total
	if kept > limit {
		kept = limit
	}
	lines := make([]string, 0, kept)
	for i := total - kept; i < total; i++ {
		lines = append(lines, ring[i%limit])
	}
	return lines, end, nil
}

// linesAfter returns every line starting at the byte offset, plus the file
// position after the last line consumed.
func linesAfter(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	scanner := newLineScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}

	pos, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}
	return lines, pos, nil
}

// awaitLines polls for growth past offset until lines appear, the wait
// expires, or the context is cancelled.
func awaitLines(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(followPollEvery)
	defer ticker.Stop()

	for {
		lines, pos, err := linesAfter(path, offset)
		if err != nil {
			return TailResult{Offset: offset}, err
		}
		if len(lines) > 0 || !time.Now().Before(deadline) {
			return TailResult{Lines: lines, Offset: pos}, nil
		}
		offset = pos

		select {
		case <-ctx.Done():
			return TailResult{Offset: pos}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, scanBufferInitial), scanBufferMax)
	return scanner
}
