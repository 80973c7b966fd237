package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

func millis(n int) time.Duration  { return time.Duration(n) * time.Millisecond }
func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// EnsureDirectories creates the data, log, scratch, and store directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.ScratchDir, filepath.Dir(c.Store.Path)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MinPollInterval is the poll wait while the queue has work.
func (c *Config) MinPollInterval() time.Duration { return millis(c.Workflow.MinPollIntervalMS) }

// MaxPollInterval caps the idle poll wait.
func (c *Config) MaxPollInterval() time.Duration { return millis(c.Workflow.MaxPollIntervalMS) }

// LeaseTTL is how long a claimed item stays locked to its worker.
func (c *Config) LeaseTTL() time.Duration { return seconds(c.Workflow.LeaseTTLSeconds) }

// ErrorRetryDelay is the pause after a failed queue fetch.
func (c *Config) ErrorRetryDelay() time.Duration { return seconds(c.Workflow.ErrorRetryInterval) }

// ConverterTimeout is the hard per-job conversion limit.
func (c *Config) ConverterTimeout() time.Duration { return seconds(c.Converter.TimeoutSeconds) }

// BackoffSchedule lists the re-queue delay for each failed attempt.
func (c *Config) BackoffSchedule() []time.Duration {
	out := make([]time.Duration, len(c.Workflow.BackoffSeconds))
	for i, s := range c.Workflow.BackoffSeconds {
		out[i] = seconds(s)
	}
	return out
}

// PoolSize is the converter concurrency. Zero in the config means half the
// usable CPUs, at least 1 and at most maxPoolSize.
func (c *Config) PoolSize() int {
	if c.Converter.MaxConcurrency > 0 {
		return c.Converter.MaxConcurrency
	}
	return min(max(runtime.GOMAXPROCS(0)/2, 1), maxPoolSize)
}

// LockPath is the daemon's single-instance lock file.
func (c *Config) LockPath() string { return filepath.Join(c.Paths.DataDir, "docbatchd.lock") }

// PIDPath holds the running daemon's process id.
func (c *Config) PIDPath() string { return filepath.Join(c.Paths.DataDir, "docbatchd.pid") }

// LogPath is the daemon's JSON log file, or "" when there is no log
// directory.
func (c *Config) LogPath() string {
	if c.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "docbatch.log")
}
