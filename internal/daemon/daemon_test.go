package daemon_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"docbatch/internal/config"
	"docbatch/internal/convert"
	"docbatch/internal/daemon"
	"docbatch/internal/logging"
	"docbatch/internal/queue"
	"docbatch/internal/testsupport"
)

type pdfRunner struct{}

func (pdfRunner) Run(_ context.Context, job convert.Job) error {
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(job.OutputPath(), []byte("%PDF-1.7 fake"), 0o644)
}

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Converter.Binary = "soffice"
	cfg.Workflow.MinPollIntervalMS = 5
	cfg.Workflow.MaxPollIntervalMS = 20
	return cfg
}

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	d, err := daemon.New(cfg, logging.NewNop(), daemon.WithRunner(pdfRunner{}))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := newConfig(t)
	d := newDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !d.Running() {
		t.Fatal("expected daemon running")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	status := d.Status(ctx)
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("lock path = %q, want %q", status.LockFilePath, cfg.LockPath())
	}
	if status.Pool.Size != cfg.PoolSize() {
		t.Fatalf("pool size = %d, want %d", status.Pool.Size, cfg.PoolSize())
	}
	if status.Store.Path != cfg.Store.Path || status.Store.Integrity != "ok" {
		t.Fatalf("unexpected store status: %+v", status.Store)
	}
	if len(status.QueueStats) != len(queue.AllStatuses()) {
		t.Fatalf("expected zero-filled queue stats, got %v", status.QueueStats)
	}
	if len(status.Dependencies) != 1 || !status.Dependencies[0].Available {
		t.Fatalf("expected stubbed converter available, got %+v", status.Dependencies)
	}

	d.Stop()
	if d.Running() {
		t.Fatal("expected daemon stopped")
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart after Stop: %v", err)
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := newConfig(t)
	first := newDaemon(t, cfg)
	second := newDaemon(t, cfg)
	ctx := context.Background()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := second.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "another docbatch daemon") {
		t.Fatalf("expected lock contention error, got %v", err)
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
}

func TestDaemonStartFailsPreflight(t *testing.T) {
	cfg := newConfig(t)
	cfg.Converter.Binary = "docbatch-missing-soffice"
	d := newDaemon(t, cfg)

	err := d.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "preflight failed") {
		t.Fatalf("expected preflight failure, got %v", err)
	}
	if d.Running() {
		t.Fatal("daemon must not run after failed preflight")
	}
}

func TestDaemonProcessesEnqueuedRequest(t *testing.T) {
	cfg := newConfig(t)
	d := newDaemon(t, cfg)
	ctx := context.Background()

	tpl := testsupport.NewDocx().Paragraph("Hello {name}").Build(t)
	info, err := d.Content().Put(ctx, tpl, "greeting.docx", "")
	if err != nil {
		t.Fatalf("Content().Put: %v", err)
	}

	payload := `{"template":{"content_id":"` + info.ID + `"},"data":{"name":"Ada"},"output_name":"greeting"}`
	item, err := d.Queue().Enqueue(ctx, []byte(payload), 0)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := d.Queue().Enqueue(ctx, []byte(`{"data":{}}`), 0); err == nil {
		t.Fatal("expected invalid request to be rejected")
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := d.Queue().Describe(ctx, item.ID)
		if err != nil {
			t.Fatalf("Describe: %v", err)
		}
		if got.Status == string(queue.StatusSucceeded) {
			if got.OutputRef == "" {
				t.Fatal("expected output ref")
			}
			out, data, err := d.Content().Get(ctx, got.OutputRef)
			if err != nil {
				t.Fatalf("Content().Get: %v", err)
			}
			if out.Name != "greeting.pdf" || !strings.HasPrefix(string(data), "%PDF-") {
				t.Fatalf("unexpected output %q: %q", out.Name, data)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("item not processed, status %s (%s)", got.Status, got.ErrorMessage)
		}
		time.Sleep(10 * time.Millisecond)
	}

	status := d.Status(ctx)
	if status.Workflow.Succeeded != 1 || status.QueueStats[string(queue.StatusSucceeded)] != 1 {
		t.Fatalf("unexpected status after processing: %+v", status)
	}
	if status.Cache.Entries != 1 {
		t.Fatalf("cache entries = %d, want 1", status.Cache.Entries)
	}

	d.Stop()
	if entries := d.Status(ctx).Cache.Entries; entries != 0 {
		t.Fatalf("cache entries after Stop = %d, want 0", entries)
	}
}

func TestDaemonQueueMaintenance(t *testing.T) {
	cfg := newConfig(t)
	d := newDaemon(t, cfg)
	ctx := context.Background()

	q := d.Queue()
	item, err := q.Enqueue(ctx, []byte(`{"template":{"content_id":"x"}}`), 5)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	canceled, err := q.Cancel(ctx, []int64{item.ID, 999})
	if err != nil || canceled.UpdatedCount != 1 {
		t.Fatalf("Cancel = %+v, %v", canceled, err)
	}
	items, err := q.List(ctx, []string{string(queue.StatusCanceled)})
	if err != nil || len(items) != 1 {
		t.Fatalf("List = %v, %v", items, err)
	}
	if _, err := q.List(ctx, []string{"bogus"}); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
	removed, err := q.ClearTerminal(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("ClearTerminal = %d, %v", removed, err)
	}
	missing, err := q.Describe(ctx, item.ID)
	if err != nil || missing != nil {
		t.Fatalf("expected cleared item gone, got %+v, %v", missing, err)
	}
}
