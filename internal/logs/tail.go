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

// pollInterval is how often follow mode rechecks the file.
const pollInterval = 250 * time.Millisecond

// maxLineBytes caps a single log line.
const maxLineBytes = 1 << 20

// TailOptions selects where reading starts. A negative Offset returns the
// last Limit lines; otherwise reading resumes at Offset. With Follow set,
// Tail waits up to Wait for at least one new line.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

// TailResult holds the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from the log file at path. A missing file yields no lines
// and offset zero.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
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

	var res TailResult
	if opts.Offset < 0 {
		res, err = lastLines(path, opts.Limit)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// Truncated or rotated; resume at the end.
			offset = info.Size()
		}
		res, err = readFrom(path, offset)
	}
	if err != nil || len(res.Lines) > 0 || !opts.Follow || opts.Wait <= 0 {
		return res, err
	}
	return follow(ctx, path, res.Offset, opts.Wait)
}

func lastLines(path string, limit int) (TailResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if limit <= 0 {
		end, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			return TailResult{}, fmt.Errorf("seek log file: %w", err)
		}
		return TailResult{Offset: end}, nil
	}

	ring := make([]string, 0, limit)
	start := 0
	end, err := scanLines(f, func(line string) {
		if len(ring) < limit {
			ring = append(ring, line)
			return
		}
		ring[start] = line
		start = (start + 1) % limit
	})
	if err != nil {
		return TailResult{}, err
	}
	lines := append(ring[start:len(ring):len(ring)], ring[:start]...)
	return TailResult{Lines: lines, Offset: end}, nil
}

func readFrom(path string, offset int64) (TailResult, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}
	var lines []string
	end, err := scanLines(f, func(line string) { lines = append(lines, line) })
	if err != nil {
		return TailResult{Offset: offset}, err
	}
	return TailResult{Lines: lines, Offset: end}, nil
}

// scanLines feeds every line of f to fn and returns the file offset reached.
func scanLines(f *os.File, fn func(string)) (int64, error) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read log file: %w", err)
	}
	end, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("determine log offset: %w", err)
	}
	return end, nil
}

func follow(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-deadline.C:
			return TailResult{Offset: offset}, nil
		case <-ticker.C:
		}
		res, err := readFrom(path, offset)
		if err != nil || len(res.Lines) > 0 {
			return res, err
		}
		offset = res.Offset
	}
}
