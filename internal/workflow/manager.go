package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"docbatch/internal/composer"
	"docbatch/internal/config"
	"docbatch/internal/logging"
	"docbatch/internal/queue"
	"docbatch/internal/telemetry"
)

// RecordStore is the subset of the queue store the manager drives.
type RecordStore interface {
	FetchCandidates(ctx context.Context, limit int) ([]*queue.Item, error)
	TryLock(ctx context.Context, id int64, leaseUntil time.Time, correlationID string) (bool, error)
	UpdateStatus(ctx context.Context, id int64, upd queue.StatusUpdate) (bool, error)
	UploadContent(ctx context.Context, data []byte, name string) (string, error)
	QueueDepth(ctx context.Context) (int, error)
}

// TemplateSource resolves template bytes by content id.
type TemplateSource interface {
	Load(ctx context.Context, contentID string) ([]byte, error)
}

// Composer merges data into templates and joins merged sections.
type Composer interface {
	Merge(ctx context.Context, template []byte, data map[string]any) ([]byte, error)
	Concat(ctx context.Context, sections []composer.Section) ([]byte, error)
}

// Converter turns a DOCX document into PDF.
type Converter interface {
	Submit(ctx context.Context, input []byte, timeout time.Duration) ([]byte, error)
}

// Manager polls the record store and processes claimed work items.
type Manager struct {
	cfg      *config.Config
	store    RecordStore
	renderer *Renderer
	sink     telemetry.Sink
	logger   *slog.Logger
	now      func() time.Time

	minPoll     time.Duration
	maxPoll     time.Duration
	batchSize   int
	leaseTTL    time.Duration
	maxAttempts int
	backoff     []time.Duration

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time
	lastCycle time.Time
	lastErr   error
	depth     int
	counters  counters
}

type counters struct {
	processed int64
	succeeded int64
	failed    int64
	retried   int64
	lockLost  int64
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithClock replaces the wall clock used for leases and backoff.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSink routes telemetry to sink.
func WithSink(sink telemetry.Sink) Option {
	return func(m *Manager) {
		m.sink = telemetry.OrNop(sink)
	}
}

// NewManager constructs a manager that claims work from store and renders it
// with renderer.
func NewManager(cfg *config.Config, store RecordStore, renderer *Renderer, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:         cfg,
		store:       store,
		renderer:    renderer,
		sink:        telemetry.Nop{},
		logger:      logging.NewComponentLogger(logger, "workflow"),
		now:         time.Now,
		minPoll:     cfg.MinPollInterval(),
		maxPoll:     cfg.MaxPollInterval(),
		batchSize:   cfg.Workflow.BatchSize,
		leaseTTL:    cfg.LeaseTTL(),
		maxAttempts: cfg.Workflow.MaxAttempts,
		backoff:     cfg.BackoffSchedule(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.batchSize < 1 {
		m.batchSize = 1
	}
	if m.maxPoll < m.minPoll {
		m.maxPoll = m.minPoll
	}
	return m
}

// backoffFor returns the re-queue delay after the given 1-based attempt.
// Attempts past the end of the schedule reuse its last entry.
func (m *Manager) backoffFor(attempt int) time.Duration {
	if len(m.backoff) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(m.backoff) {
		idx = len(m.backoff) - 1
	}
	return m.backoff[idx]
}
