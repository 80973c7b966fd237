package queueaccess

import (
	"context"

	"docbatch/internal/api"
	"docbatch/internal/queue"
)

// Access is the queue surface shared by the daemon client and the store.
type Access interface {
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, statuses []string) ([]api.QueueItem, error)
	Describe(ctx context.Context, id int64) (*api.QueueItem, error)
	Enqueue(ctx context.Context, payload []byte, priority int) (*api.QueueItem, error)
	Cancel(ctx context.Context, ids []int64) (api.CancelItemsResult, error)
	Retry(ctx context.Context, ids []int64) (api.RetryItemsResult, error)
	ClearTerminal(ctx context.Context) (int64, error)
}

// ContentAccess stores and fetches template and output blobs.
type ContentAccess interface {
	Put(ctx context.Context, data []byte, name, mediaType string) (api.ContentInfo, error)
	Get(ctx context.Context, id string) (api.ContentInfo, []byte, error)
	List(ctx context.Context) ([]api.ContentInfo, error)
}

// NewStoreAccess serves Access straight from an open store.
func NewStoreAccess(store *queue.Store) Access {
	return api.NewQueueService(store)
}

var (
	_ Access        = (*remote)(nil)
	_ ContentAccess = remoteContent{}
)
