package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"docbatch/internal/composer"
	"docbatch/internal/config"
	"docbatch/internal/convert"
	"docbatch/internal/logging"
	"docbatch/internal/preflight"
	"docbatch/internal/queue"
	"docbatch/internal/telemetry"
	"docbatch/internal/templatecache"
	"docbatch/internal/workflow"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution per data directory.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	loader   *templatecache.Loader
	pool     *convert.Pool
	workflow *workflow.Manager
	sink     *telemetry.LogSink

	lockPath      string
	lock          *flock.Flock
	skipPreflight bool

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	closed  bool
}

// Option configures optional daemon behavior.
type Option func(*options)

type options struct {
	runner        convert.Runner
	skipPreflight bool
}

// WithRunner replaces the soffice runner used by the conversion pool.
func WithRunner(runner convert.Runner) Option {
	return func(o *options) { o.runner = runner }
}

// WithoutPreflight skips the readiness checks in Start.
func WithoutPreflight() Option {
	return func(o *options) { o.skipPreflight = true }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sink := telemetry.NewLogSink(logger)
	loader := templatecache.NewLoader(templatecache.New(cfg.Cache.MaxBytes, logger), store, sink, logger)

	runner := o.runner
	if runner == nil {
		runner = convert.NewSofficeRunner(
			convert.WithBinary(cfg.Converter.Binary),
			convert.WithExtraArgs(cfg.Converter.ExtraArgs...),
		)
	}
	pool, err := convert.NewPool(convert.Options{
		Size:       cfg.PoolSize(),
		ScratchDir: cfg.Paths.ScratchDir,
		Timeout:    cfg.ConverterTimeout(),
	}, runner, sink, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create conversion pool: %w", err)
	}

	comp := composer.New(composer.Options{
		StrictFields:   cfg.Composer.StrictFields,
		ImageAllowlist: cfg.Composer.ImageAllowlist,
	}, logger)
	renderer := workflow.NewRenderer(loader, comp, pool, cfg.ConverterTimeout())
	manager := workflow.NewManager(cfg, store, renderer, logger, workflow.WithSink(sink))

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:           cfg,
		logger:        logging.NewComponentLogger(logger, "daemon"),
		store:         store,
		loader:        loader,
		pool:          pool,
		workflow:      manager,
		sink:          sink,
		lockPath:      lockPath,
		lock:          flock.New(lockPath),
		skipPreflight: o.skipPreflight,
	}, nil
}

// Start acquires the daemon lock and launches the workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("daemon is closed")
	}
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another docbatch daemon is using %s", d.cfg.Paths.DataDir)
	}

	if !d.skipPreflight {
		results := preflight.RunAll(ctx, d.cfg)
		if failed := preflight.Failed(results); len(failed) > 0 {
			_ = d.lock.Unlock()
			return fmt.Errorf("preflight failed: %s", preflight.Summary(results))
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("docbatch daemon started",
		logging.String("lock", d.lockPath),
		logging.String("store", d.store.Path()),
		logging.Int("pool_size", d.pool.Size()),
		logging.String("scratch_root", d.pool.ScratchRoot()),
	)
	return nil
}

// Stop stops polling, waits for in-flight items, drops cached templates, and
// releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	d.workflow.Stop()
	d.loader.Cache().Purge()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_unlock_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("docbatch daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	poolErr := d.pool.Close()
	storeErr := d.store.Close()
	return errors.Join(poolErr, storeErr)
}

// Running reports whether the workflow is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Store returns the record store.
func (d *Daemon) Store() *queue.Store {
	return d.store
}

// PID returns the daemon's process id.
func (d *Daemon) PID() int {
	return os.Getpid()
}

// LogPath returns the JSON log file the daemon writes, if any.
func (d *Daemon) LogPath() string {
	return d.cfg.LogPath()
}
