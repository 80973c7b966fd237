package testsupport

import (
	"context"
	"testing"

	"docbatch/internal/config"
	"docbatch/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustEnqueue inserts a work item for tests using the provided store.
func MustEnqueue(t testing.TB, store *queue.Store, payload string, priority int) *queue.Item {
	t.Helper()

	item, err := store.Enqueue(context.Background(), payload, priority)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return item
}

// MustPutContent stores a blob and returns its identifier.
func MustPutContent(t testing.TB, store *queue.Store, data []byte, name string) string {
	t.Helper()

	id, err := store.PutContent(context.Background(), data, name, "")
	if err != nil {
		t.Fatalf("store.PutContent: %v", err)
	}
	return id
}
