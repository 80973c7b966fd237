package ipc_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"docbatch/internal/api"
	"docbatch/internal/convert"
	"docbatch/internal/daemon"
	"docbatch/internal/ipc"
	"docbatch/internal/logging"
	"docbatch/internal/queue"
	"docbatch/internal/testsupport"
)

type pdfRunner struct{}

func (pdfRunner) Run(_ context.Context, job convert.Job) error {
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(job.OutputPath(), []byte("%PDF-1.7"), 0o644)
}

func startServer(t *testing.T) (*ipc.Client, *daemon.Daemon, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Converter.Binary = "soffice"
	cfg.Workflow.MinPollIntervalMS = 5
	cfg.Workflow.MaxPollIntervalMS = 20

	logger := logging.NewNop()
	d, err := daemon.New(cfg, logger, daemon.WithRunner(pdfRunner{}))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(cfg.Paths.SocketPath)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, d, cfg.LogPath()
}

func TestIPCServerClient(t *testing.T) {
	client, _, _ := startServer(t)
	ctx := context.Background()

	tpl := testsupport.NewDocx().Paragraph("Dear {name}").Build(t)
	put, err := client.ContentPut(ctx, "letter.docx", "", tpl)
	if err != nil {
		t.Fatalf("ContentPut: %v", err)
	}
	if put.Content.Size != int64(len(tpl)) {
		t.Fatalf("unexpected content info: %+v", put.Content)
	}

	payload := `{"template":{"content_id":"` + put.Content.ID + `"},"data":{"name":"Ada"},"output_name":"letter"}`
	enq, err := client.QueueEnqueue(ctx, payload, 3)
	if err != nil {
		t.Fatalf("QueueEnqueue: %v", err)
	}
	if enq.Item.Status != string(queue.StatusQueued) || enq.Item.Priority != 3 {
		t.Fatalf("unexpected enqueued item: %+v", enq.Item)
	}
	if _, err := client.QueueEnqueue(ctx, `{"strategy":"zip"}`, 0); err == nil {
		t.Fatal("expected invalid payload to be rejected")
	}

	startResp, err := client.Start(ctx)
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}
	again, err := client.Start(ctx)
	if err != nil || again.Started {
		t.Fatalf("expected second start to report not started, got %+v, %v", again, err)
	}

	var done ipc.QueueItem
	deadline := time.Now().Add(5 * time.Second)
	for {
		desc, err := client.QueueDescribe(ctx, enq.Item.ID)
		if err != nil {
			t.Fatalf("QueueDescribe: %v", err)
		}
		if desc.Item.Status == string(queue.StatusSucceeded) {
			done = desc.Item
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("item not processed: %+v", desc.Item)
		}
		time.Sleep(10 * time.Millisecond)
	}

	got, err := client.ContentGet(ctx, done.OutputRef)
	if err != nil {
		t.Fatalf("ContentGet: %v", err)
	}
	if got.Content.Name != "letter.pdf" || !strings.HasPrefix(string(got.Data), "%PDF-") {
		t.Fatalf("unexpected output: %+v", got.Content)
	}

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || status.Workflow.Succeeded != 1 || status.Pool.Completed != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}

	stopResp, err := client.Stop(ctx)
	if err != nil || !stopResp.Stopped {
		t.Fatalf("Stop = %+v, %v", stopResp, err)
	}

	stats, err := client.QueueStats(ctx)
	if err != nil {
		t.Fatalf("QueueStats: %v", err)
	}
	if stats.Counts[string(queue.StatusSucceeded)] != 1 || stats.Counts[string(queue.StatusQueued)] != 0 {
		t.Fatalf("unexpected stats: %v", stats.Counts)
	}

	contents, err := client.ContentList(ctx)
	if err != nil || len(contents.Contents) != 2 {
		t.Fatalf("ContentList = %+v, %v", contents, err)
	}
}

func TestIPCQueueActions(t *testing.T) {
	client, d, _ := startServer(t)
	ctx := context.Background()

	queued, err := client.QueueEnqueue(ctx, `{"template":{"content_id":"a"}}`, 0)
	if err != nil {
		t.Fatalf("QueueEnqueue: %v", err)
	}
	failed := testsupport.MustEnqueue(t, d.Store(), `{"template":{"content_id":"b"}}`, 0)
	msg := "boom"
	if _, err := d.Store().UpdateStatus(ctx, failed.ID, queue.StatusUpdate{Status: queue.StatusFailed, ErrorMessage: &msg}); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	cancelResp, err := client.QueueCancel(ctx, []int64{queued.Item.ID, failed.ID, 404})
	if err != nil {
		t.Fatalf("QueueCancel: %v", err)
	}
	if cancelResp.UpdatedCount != 1 {
		t.Fatalf("expected one cancel, got %+v", cancelResp)
	}
	want := []api.CancelItemOutcome{api.CancelItemUpdated, api.CancelItemAlreadyDone, api.CancelItemNotFound}
	for i, item := range cancelResp.Items {
		if item.Outcome != want[i] {
			t.Fatalf("item %d outcome = %s, want %s", item.ID, item.Outcome, want[i])
		}
	}
	if _, err := client.QueueCancel(ctx, nil); err == nil {
		t.Fatal("expected empty cancel to fail")
	}

	retryResp, err := client.QueueRetry(ctx, []int64{failed.ID, queued.Item.ID})
	if err != nil {
		t.Fatalf("QueueRetry: %v", err)
	}
	if retryResp.UpdatedCount != 1 || retryResp.Items[1].Outcome != api.RetryItemNotFailed {
		t.Fatalf("unexpected retry result: %+v", retryResp)
	}

	list, err := client.QueueList(ctx, []string{"queued"})
	if err != nil || len(list.Items) != 1 || list.Items[0].ID != failed.ID {
		t.Fatalf("QueueList = %+v, %v", list, err)
	}

	clearResp, err := client.QueueClear(ctx)
	if err != nil || clearResp.Removed != 1 {
		t.Fatalf("QueueClear = %+v, %v", clearResp, err)
	}
	if _, err := client.QueueDescribe(ctx, queued.Item.ID); err == nil {
		t.Fatal("expected cleared item to be missing")
	}
}

func TestIPCLogTail(t *testing.T) {
	client, _, logPath := startServer(t)
	ctx := context.Background()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	lines := `{"level":"INFO","msg":"first","item_id":1}
{"level":"INFO","msg":"second","item_id":2}
{"level":"ERROR","msg":"third","item_id":1}
`
	if err := os.WriteFile(logPath, []byte(lines), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	resp, err := client.LogTail(ctx, ipc.LogTailRequest{Offset: -1, Limit: 5, ItemID: 1})
	if err != nil {
		t.Fatalf("LogTail: %v", err)
	}
	if len(resp.Lines) != 2 || !strings.Contains(resp.Lines[1], "third") {
		t.Fatalf("unexpected lines: %#v", resp.Lines)
	}

	followDone := make(chan struct{})
	go func(offset int64) {
		defer close(followDone)
		next, err := client.LogTail(ctx, ipc.LogTailRequest{Offset: offset, Follow: true, WaitMillis: 2000})
		if err != nil {
			t.Errorf("LogTail follow error: %v", err)
			return
		}
		if len(next.Lines) != 1 || !strings.Contains(next.Lines[0], "fourth") {
			t.Errorf("unexpected follow lines: %#v", next.Lines)
		}
	}(resp.Offset)

	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("append log: %v", err)
	}
	_, _ = f.WriteString(`{"level":"INFO","msg":"fourth"}` + "\n")
	_ = f.Close()

	select {
	case <-followDone:
	case <-time.After(10 * time.Second):
		t.Fatal("log tail follow timed out")
	}
}

func TestClientCallHonorsContext(t *testing.T) {
	client, _, _ := startServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Status(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := client.Status(context.Background()); err != nil {
		t.Fatalf("client unusable after canceled call: %v", err)
	}
}
