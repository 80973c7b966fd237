package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"docbatch/internal/composer"
	"docbatch/internal/config"
	"docbatch/internal/queue"
	"docbatch/internal/telemetry"
	"docbatch/internal/templatecache"
	"docbatch/internal/testsupport"
	"docbatch/internal/workflow"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeConverter struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, input []byte) ([]byte, error)
}

func (f *fakeConverter) Submit(ctx context.Context, input []byte, _ time.Duration) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, input)
	}
	return append([]byte("%PDF-"), input[:4]...), nil
}

func (f *fakeConverter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// flakyUploads fails the first n uploads before delegating.
type flakyUploads struct {
	workflow.RecordStore
	mu       sync.Mutex
	failures int
}

func (f *flakyUploads) UploadContent(ctx context.Context, data []byte, name string) (string, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return "", errors.New("object store unavailable")
	}
	f.mu.Unlock()
	return f.RecordStore.UploadContent(ctx, data, name)
}

type harness struct {
	cfg       *config.Config
	store     *queue.Store
	clock     *fakeClock
	converter *fakeConverter
	recorder  *telemetry.Recorder
	manager   *workflow.Manager
}

type harnessOption func(*harnessSettings)

type harnessSettings struct {
	wrap func(workflow.RecordStore) workflow.RecordStore
	cfg  []testsupport.ConfigOption
}

func withStoreWrapper(wrap func(workflow.RecordStore) workflow.RecordStore) harnessOption {
	return func(s *harnessSettings) { s.wrap = wrap }
}

func withConfig(opts ...testsupport.ConfigOption) harnessOption {
	return func(s *harnessSettings) { s.cfg = append(s.cfg, opts...) }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	var settings harnessSettings
	for _, opt := range opts {
		opt(&settings)
	}

	cfg := testsupport.NewConfig(t, settings.cfg...)
	cfg.Workflow.MinPollIntervalMS = 5
	cfg.Workflow.MaxPollIntervalMS = 20
	store := testsupport.MustOpenStore(t, cfg)
	clock := &fakeClock{now: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)}
	store.SetClock(clock.Now)

	recorder := telemetry.NewRecorder()
	loader := templatecache.NewLoader(templatecache.New(cfg.Cache.MaxBytes, nil), store, recorder, nil)
	converter := &fakeConverter{}
	renderer := workflow.NewRenderer(
		loader,
		composer.New(composer.Options{
			StrictFields:   cfg.Composer.StrictFields,
			ImageAllowlist: cfg.Composer.ImageAllowlist,
		}, nil),
		converter,
		cfg.ConverterTimeout(),
	)

	var records workflow.RecordStore = store
	if settings.wrap != nil {
		records = settings.wrap(store)
	}
	manager := workflow.NewManager(cfg, records, renderer, nil,
		workflow.WithClock(clock.Now),
		workflow.WithSink(recorder),
	)
	return &harness{
		cfg:       cfg,
		store:     store,
		clock:     clock,
		converter: converter,
		recorder:  recorder,
		manager:   manager,
	}
}

func (h *harness) runOnce(t *testing.T, wantClaimed int) {
	t.Helper()
	claimed, err := h.manager.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if claimed != wantClaimed {
		t.Fatalf("expected %d claimed items, got %d", wantClaimed, claimed)
	}
}

func (h *harness) item(t *testing.T, id int64) *queue.Item {
	t.Helper()
	item, err := h.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	return item
}

func (h *harness) template(t *testing.T, name string, paragraphs ...string) string {
	t.Helper()
	b := testsupport.NewDocx()
	for _, p := range paragraphs {
		b.Paragraph(p)
	}
	return testsupport.MustPutContent(t, h.store, b.Build(t), name)
}
