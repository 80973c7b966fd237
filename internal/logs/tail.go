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

const (
	pollInterval = 250 * time.Millisecond
	maxLineBytes = 1 << 20
)

// TailOptions controls where reading starts and how long a follow waits.
// A negative Offset returns the last Limit matching lines. An Offset past the
// end of the file means the log was truncated, so reading restarts at zero.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
	Filter Filter
}

// TailResult holds the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads matching lines from the log file at path. A missing file is not
// an error; it yields no lines and offset zero.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	var res TailResult
	if opts.Offset < 0 {
		res, err = lastLines(file, opts.Limit, opts.Filter)
	} else {
		start := opts.Offset
		if start > info.Size() {
			start = 0
		}
		res, err = linesFrom(file, start, opts.Filter)
	}
	if err != nil || !opts.Follow || opts.Wait <= 0 || len(res.Lines) > 0 {
		return res, err
	}
	return follow(ctx, file, res.Offset, opts.Wait, opts.Filter)
}

// lastLines keeps the final limit matching lines in a ring while scanning
// the whole file. A non-positive limit returns no lines.
func lastLines(file *os.File, limit int, filter Filter) (TailResult, error) {
	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return TailResult{}, fmt.Errorf("seek log file: %w", err)
		}
		return TailResult{Offset: end}, nil
	}
	ring := make([]string, 0, limit)
	next := 0
	end, err := scanFrom(file, 0, func(line string) {
		if !filter.Match(line) {
			return
		}
		if len(ring) < limit {
			ring = append(ring, line)
			return
		}
		ring[next] = line
		next = (next + 1) % limit
	})
	if err != nil {
		return TailResult{}, err
	}
	lines := append(append([]string(nil), ring[next:]...), ring[:next]...)
	return TailResult{Lines: lines, Offset: end}, nil
}

func linesFrom(file *os.File, offset int64, filter Filter) (TailResult, error) {
	var lines []string
	end, err := scanFrom(file, offset, func(line string) {
		if filter.Match(line) {
			lines = append(lines, line)
		}
	})
	if err != nil {
		return TailResult{Offset: offset}, err
	}
	return TailResult{Lines: lines, Offset: end}, nil
}

// scanFrom feeds each complete line after offset to fn and returns the offset
// just past the last byte consumed.
func scanFrom(file *os.File, offset int64, fn func(string)) (int64, error) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return offset, fmt.Errorf("read log file: %w", err)
	}
	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return offset, fmt.Errorf("determine log offset: %w", err)
	}
	return end, nil
}

// follow polls file until matching lines appear or wait elapses.
func follow(ctx context.Context, file *os.File, offset int64, wait time.Duration, filter Filter) (TailResult, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	res := TailResult{Offset: offset}
	for {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-timer.C:
			return res, nil
		case <-ticker.C:
		}
		next, err := linesFrom(file, res.Offset, filter)
		if err != nil {
			return res, err
		}
		res = next
		if len(res.Lines) > 0 {
			return res, nil
		}
	}
}
