package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"docbatch/internal/logging"
	"docbatch/internal/services"
	"docbatch/internal/telemetry"
)

// Options configures a Pool.
type Options struct {
	// Size is the maximum number of concurrent conversions.
	Size int
	// ScratchDir holds per-process scratch roots.
	ScratchDir string
	// Timeout applies when Submit is called without one.
	Timeout time.Duration
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Size      int   `json:"size"`
	Active    int64 `json:"active"`
	Queued    int64 `json:"queued"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Total     int64 `json:"total"`
}

// Pool bounds concurrent conversions. Callers beyond the limit wait and are
// admitted in arrival order.
type Pool struct {
	runner  Runner
	size    int
	timeout time.Duration
	sem     *semaphore.Weighted
	root    *scratchRoot
	sink    telemetry.Sink
	logger  *slog.Logger

	active    atomic.Int64
	queued    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	total     atomic.Int64
	closed    atomic.Bool
}

// NewPool sweeps abandoned scratch roots, claims a fresh one, and returns a
// pool that runs jobs through runner.
func NewPool(opts Options, runner Runner, sink telemetry.Sink, logger *slog.Logger) (*Pool, error) {
	if runner == nil {
		return nil, errors.New("convert: runner is required")
	}
	if opts.Size < 1 {
		opts.Size = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "convert")

	if swept := sweepScratch(opts.ScratchDir, logger); swept > 0 {
		logger.Info("removed stale scratch roots", logging.Int("count", swept))
	}
	root, err := openScratchRoot(opts.ScratchDir)
	if err != nil {
		return nil, err
	}

	return &Pool{
		runner:  runner,
		size:    opts.Size,
		timeout: opts.Timeout,
		sem:     semaphore.NewWeighted(int64(opts.Size)),
		root:    root,
		sink:    telemetry.OrNop(sink),
		logger:  logger,
	}, nil
}

// Submit converts a DOCX document to PDF. A zero timeout uses the pool
// default; the job's process is killed once it elapses.
func (p *Pool) Submit(ctx context.Context, input []byte, timeout time.Duration) ([]byte, error) {
	const op = "convert"
	if p.closed.Load() {
		return nil, services.Wrap(services.KindConversionExecution, op, "conversion pool is closed", nil)
	}
	if timeout <= 0 {
		timeout = p.timeout
	}
	p.total.Add(1)

	p.queued.Add(1)
	p.reportGauges()
	err := p.sem.Acquire(ctx, 1)
	p.queued.Add(-1)
	if err != nil {
		p.failed.Add(1)
		p.reportGauges()
		return nil, services.Wrap(services.KindConversionExecution, op, "wait for converter slot", err)
	}
	defer p.sem.Release(1)

	p.active.Add(1)
	p.reportGauges()
	defer func() {
		p.active.Add(-1)
		p.reportGauges()
	}()

	start := time.Now()
	out, err := p.convert(ctx, input, timeout)
	duration := time.Since(start)

	dep := telemetry.Dependency{
		JobType:       telemetry.JobTypeConversion,
		CorrelationID: services.CorrelationID(ctx),
		Duration:      duration,
		Success:       err == nil,
	}
	logger := logging.WithContext(ctx, p.logger)
	if err != nil {
		p.failed.Add(1)
		dep.Detail = string(services.KindOf(err))
		p.sink.RecordDependency(ctx, dep)
		logger.Debug("conversion failed", logging.Duration("duration", duration), logging.Error(err))
		return nil, err
	}
	p.completed.Add(1)
	p.sink.RecordDependency(ctx, dep)
	logger.Debug("conversion finished",
		logging.Duration("duration", duration),
		logging.Int("input_bytes", len(input)),
		logging.Int("output_bytes", len(out)),
	)
	return out, nil
}

func (p *Pool) convert(ctx context.Context, input []byte, timeout time.Duration) ([]byte, error) {
	const op = "convert"
	id := uuid.NewString()
	dir, err := os.MkdirTemp(p.root.dir, "job-"+id[:8]+"-")
	if err != nil {
		return nil, services.Wrap(services.KindConversionExecution, op, "create scratch directory", err)
	}
	defer p.removeScratch(ctx, dir)

	job := newJob(id, dir)
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return nil, services.Wrap(services.KindConversionExecution, op, "create output directory", err)
	}
	if err := os.WriteFile(job.InputPath, input, 0o644); err != nil {
		return nil, services.Wrap(services.KindConversionExecution, op, "write input document", err)
	}

	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	runErr := p.runner.Run(jobCtx, job)
	if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		return nil, services.Wrap(services.KindConversionTimeout, op, fmt.Sprintf("conversion exceeded %s", timeout), runErr)
	}
	if runErr != nil {
		var svcErr *services.Error
		if errors.As(runErr, &svcErr) {
			return nil, runErr
		}
		return nil, services.Wrap(services.KindConversionExecution, op, "run converter", runErr)
	}

	out, err := os.ReadFile(job.OutputPath())
	if err != nil {
		return nil, services.Wrap(services.KindConversionExecution, op, "converter produced no output", err)
	}
	return out, nil
}

func (p *Pool) removeScratch(ctx context.Context, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "failed to remove scratch directory", "scratch_cleanup_failed",
			logging.String("path", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
		)
	}
}

func (p *Pool) reportGauges() {
	p.sink.Gauge(telemetry.GaugePoolActive, float64(p.active.Load()))
	p.sink.Gauge(telemetry.GaugePoolQueued, float64(p.queued.Load()))
}

// Size returns the concurrency limit.
func (p *Pool) Size() int {
	return p.size
}

// ScratchRoot returns this pool's scratch directory.
func (p *Pool) ScratchRoot() string {
	return p.root.dir
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Size:      p.size,
		Active:    p.active.Load(),
		Queued:    p.queued.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Total:     p.total.Load(),
	}
}

// Close rejects new work and removes the scratch root. In-flight jobs should
// be drained by the caller first.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.root.close()
}
