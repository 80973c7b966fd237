package convert

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"docbatch/internal/logging"
)

const rootPrefix = "pool-"

// scratchRoot is the per-process directory holding job scratch dirs. Its lock
// file sits next to it and is taken before the directory exists.
type scratchRoot struct {
	dir  string
	lock *flock.Flock
}

func openScratchRoot(base string) (*scratchRoot, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	dir := filepath.Join(base, rootPrefix+uuid.NewString())
	lock := flock.New(dir + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock scratch root: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("scratch root %s is locked by another process", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	return &scratchRoot{dir: dir, lock: lock}, nil
}

func (r *scratchRoot) close() error {
	removeErr := os.RemoveAll(r.dir)
	unlockErr := r.lock.Unlock()
	_ = os.Remove(r.lock.Path())
	if removeErr != nil {
		return fmt.Errorf("remove scratch root: %w", removeErr)
	}
	return unlockErr
}

// sweepScratch removes scratch roots whose owning process is gone: roots
// whose lock can be taken, and roots with no lock file at all.
func sweepScratch(base string, logger *slog.Logger) int {
	entries, err := os.ReadDir(base)
	if err != nil {
		return 0
	}
	swept := 0
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, rootPrefix) {
			continue
		}
		dir := filepath.Join(base, name)
		lock := flock.New(dir + ".lock")
		locked, err := lock.TryLock()
		if err != nil || !locked {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("failed to remove stale scratch root",
				logging.String(logging.FieldEventType, "scratch_sweep_failed"),
				logging.String("path", dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
				logging.String(logging.FieldImpact, "disk space is not reclaimed"),
			)
		} else {
			swept++
		}
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}
	return swept
}
