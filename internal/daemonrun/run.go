package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"docbatch/internal/config"
	"docbatch/internal/daemon"
	"docbatch/internal/fileutil"
	"docbatch/internal/ipc"
	"docbatch/internal/logging"
	"docbatch/internal/preflight"
)

// Options tune the daemon process.
type Options struct {
	// LogLevel overrides logging.level from the config when set.
	LogLevel string
	// Development adds source locations to every record.
	Development bool
}

// Run hosts the daemon in the current process: it writes the pid file,
// serves IPC, starts the workflow, and blocks until SIGINT, SIGTERM, or ctx
// ends. A workflow that fails to start is logged and the process keeps
// serving IPC so `docbatch start` can retry.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg, opts.LogLevel, opts.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.Info("docbatch daemon starting",
		logging.Int("pid", os.Getpid()),
		logging.String("socket", cfg.Paths.SocketPath),
		logging.String("store", cfg.Store.Path))
	logDependencySnapshot(logger, cfg)

	removePID, err := writePIDFile(cfg.PIDPath())
	if err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer removePID()

	d, err := daemon.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	server, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer server.Close()
	server.Serve()

	if err := d.Start(ctx); err != nil {
		logging.WarnWithContext(logger, "workflow did not start", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "queued items will not be processed"),
			logging.String(logging.FieldErrorHint, "fix the reported problem, then run `docbatch start`"))
	}

	<-ctx.Done()
	logger.Info("docbatch daemon shutting down")
	return nil
}

// writePIDFile records the current pid at path and returns a func that
// removes it. An empty path writes nothing.
func writePIDFile(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	if err := fileutil.WriteFileAtomic(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return nil, err
	}
	return func() { _ = os.Remove(path) }, nil
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Int("pool_size", cfg.PoolSize()),
		logging.Int64("cache_max_bytes", cfg.Cache.MaxBytes),
		logging.Bool("strict_fields", cfg.Composer.StrictFields),
	}
	for _, dep := range preflight.CheckSystemDeps(cfg) {
		prefix := strings.ToLower(strings.ReplaceAll(dep.Name, " ", "_"))
		attrs = append(attrs,
			logging.Bool(prefix+"_available", dep.Available),
			logging.String(prefix+"_binary", dep.Command))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
