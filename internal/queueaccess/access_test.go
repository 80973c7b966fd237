package queueaccess_test

import (
	"context"
	"errors"
	"testing"

	"docbatch/internal/api"
	"docbatch/internal/ipc"
	"docbatch/internal/queue"
	"docbatch/internal/queueaccess"
	"docbatch/internal/testsupport"
)

func TestOpenWithFallbackUsesStoreWhenDaemonOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	ctx := context.Background()

	session, err := queueaccess.OpenWithFallback(
		func() (*ipc.Client, error) { return nil, errors.New("daemon offline") },
		func() (*queue.Store, error) { return queue.Open(cfg) },
	)
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	if session.Remote {
		t.Fatal("expected store-backed session")
	}
	access := session.Access

	first, err := access.Enqueue(ctx, []byte("template:\n  content_id: a\n"), 1)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if first.Summary == "" || first.Status != string(queue.StatusQueued) {
		t.Fatalf("unexpected enqueued item: %+v", first)
	}
	if _, err := access.Enqueue(ctx, []byte(`{"template":{}}`), 0); err == nil {
		t.Fatal("expected invalid request to be rejected")
	}
	second, err := access.Enqueue(ctx, []byte(`{"template":{"content_id":"b"}}`), 0)
	if err != nil {
		t.Fatalf("Enqueue second: %v", err)
	}

	cancel, err := access.Cancel(ctx, []int64{second.ID, second.ID})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancel.UpdatedCount != 1 || cancel.Items[1].Outcome != api.CancelItemAlreadyDone {
		t.Fatalf("unexpected cancel result: %+v", cancel)
	}

	retry, err := access.Retry(ctx, []int64{first.ID})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if retry.UpdatedCount != 0 || retry.Items[0].Outcome != api.RetryItemNotFailed {
		t.Fatalf("unexpected retry result: %+v", retry)
	}

	stats, err := access.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[string(queue.StatusQueued)] != 1 || stats[string(queue.StatusCanceled)] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}

	items, err := access.List(ctx, []string{"canceled"})
	if err != nil || len(items) != 1 || items[0].ID != second.ID {
		t.Fatalf("List = %+v, %v", items, err)
	}

	removed, err := access.ClearTerminal(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("ClearTerminal = %d, %v", removed, err)
	}
	missing, err := access.Describe(ctx, second.ID)
	if err != nil || missing != nil {
		t.Fatalf("expected cleared item missing, got %+v, %v", missing, err)
	}
}

func TestOpenWithFallbackRequiresStoreOpener(t *testing.T) {
	_, err := queueaccess.OpenWithFallback(func() (*ipc.Client, error) {
		return nil, errors.New("offline")
	}, nil)
	if err == nil {
		t.Fatal("expected error without store opener")
	}
}

func TestStoreContentAccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	ctx := context.Background()
	session, err := queueaccess.OpenWithFallback(nil, func() (*queue.Store, error) { return queue.Open(cfg) })
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })

	docx := testsupport.NewDocx().Paragraph("Hello {name}").Build(t)
	info, err := session.Content.Put(ctx, docx, "letter.docx", "")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.ID == "" || info.MediaType != queue.MediaTypeDOCX || info.Size != int64(len(docx)) {
		t.Fatalf("unexpected content info: %+v", info)
	}
	got, data, err := session.Content.Get(ctx, info.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "letter.docx" || len(data) != len(docx) {
		t.Fatalf("unexpected content: %+v (%d bytes)", got, len(data))
	}
	listed, err := session.Content.List(ctx)
	if err != nil || len(listed) != 1 || listed[0].ID != info.ID {
		t.Fatalf("List = %+v, %v", listed, err)
	}
	if _, _, err := session.Content.Get(ctx, "missing"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
