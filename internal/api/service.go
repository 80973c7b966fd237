package api

import (
	"context"
	"errors"
	"fmt"

	"docbatch/internal/jobspec"
	"docbatch/internal/queue"
)

// QueueStore is the part of queue.Store the queue service drives.
type QueueStore interface {
	Enqueue(ctx context.Context, payload string, priority int) (*queue.Item, error)
	GetByID(ctx context.Context, id int64) (*queue.Item, error)
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Item, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	Requeue(ctx context.Context, ids ...int64) (int64, error)
	Cancel(ctx context.Context, id int64) (bool, error)
	ClearTerminal(ctx context.Context) (int64, error)
}

// ContentStore is the part of queue.Store the content service drives.
type ContentStore interface {
	PutContent(ctx context.Context, data []byte, name, mediaType string) (string, error)
	GetContent(ctx context.Context, id string) (*queue.Content, error)
	ListContents(ctx context.Context) ([]*queue.Content, error)
}

// QueueService implements the operator queue operations against a store.
// The daemon serves it over IPC and the CLI uses it directly when the daemon
// is down, so both paths share one set of rules.
type QueueService struct {
	store QueueStore
}

func NewQueueService(store QueueStore) *QueueService {
	return &QueueService{store: store}
}

// Stats returns item counts for every known status.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// List returns items whose status is one of statuses, or every item.
func (s *QueueService) List(ctx context.Context, statuses []string) ([]QueueItem, error) {
	filter, err := ParseStatuses(statuses)
	if err != nil {
		return nil, err
	}
	items, err := s.store.List(ctx, filter...)
	if err != nil {
		return nil, err
	}
	return FromQueueItems(items), nil
}

// Describe fetches one item. A missing item yields nil, nil.
func (s *QueueService) Describe(ctx context.Context, id int64) (*QueueItem, error) {
	item, err := s.store.GetByID(ctx, id)
	if errors.Is(err, queue.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	dto := FromQueueItem(item)
	return &dto, nil
}

// Enqueue validates a JSON or YAML request and stores it as a QUEUED item.
func (s *QueueService) Enqueue(ctx context.Context, payload []byte, priority int) (*QueueItem, error) {
	encoded, err := jobspec.Normalize(payload)
	if err != nil {
		return nil, err
	}
	item, err := s.store.Enqueue(ctx, string(encoded), priority)
	if err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}
	dto := FromQueueItem(item)
	return &dto, nil
}

// Cancel cancels each id that is not already terminal.
func (s *QueueService) Cancel(ctx context.Context, ids []int64) (CancelItemsResult, error) {
	return CancelItemsByID(ctx, storeActions{s}, ids)
}

// Retry requeues the failed items in ids, or every failed item when ids is
// empty.
func (s *QueueService) Retry(ctx context.Context, ids []int64) (RetryItemsResult, error) {
	if len(ids) > 0 {
		return RetryFailedItemsByID(ctx, storeActions{s}, ids)
	}
	updated, err := s.store.Requeue(ctx)
	if err != nil {
		return RetryItemsResult{}, err
	}
	return RetryItemsResult{UpdatedCount: updated, Items: []RetryItemResult{}}, nil
}

// ClearTerminal removes succeeded, failed, and canceled items.
func (s *QueueService) ClearTerminal(ctx context.Context) (int64, error) {
	return s.store.ClearTerminal(ctx)
}

type storeActions struct {
	svc *QueueService
}

func (a storeActions) Describe(ctx context.Context, id int64) (*QueueItem, error) {
	return a.svc.Describe(ctx, id)
}

func (a storeActions) Retry(ctx context.Context, ids []int64) (int64, error) {
	return a.svc.store.Requeue(ctx, ids...)
}

func (a storeActions) Cancel(ctx context.Context, ids []int64) (int64, error) {
	var n int64
	for _, id := range ids {
		ok, err := a.svc.store.Cancel(ctx, id)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// ContentService stores and fetches template and output blobs.
type ContentService struct {
	store ContentStore
}

func NewContentService(store ContentStore) *ContentService {
	return &ContentService{store: store}
}

// Put stores data and returns its metadata including the new content id.
func (s *ContentService) Put(ctx context.Context, data []byte, name, mediaType string) (ContentInfo, error) {
	id, err := s.store.PutContent(ctx, data, name, mediaType)
	if err != nil {
		return ContentInfo{}, err
	}
	content, err := s.store.GetContent(ctx, id)
	if err != nil {
		return ContentInfo{}, err
	}
	return FromContent(content), nil
}

// Get returns a blob's metadata and bytes.
func (s *ContentService) Get(ctx context.Context, id string) (ContentInfo, []byte, error) {
	content, err := s.store.GetContent(ctx, id)
	if err != nil {
		return ContentInfo{}, nil, err
	}
	return FromContent(content), content.Data, nil
}

// List describes every stored blob.
func (s *ContentService) List(ctx context.Context) ([]ContentInfo, error) {
	contents, err := s.store.ListContents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ContentInfo, len(contents))
	for i, content := range contents {
		out[i] = FromContent(content)
	}
	return out, nil
}

// ParseStatuses converts status names and rejects any it does not know.
func ParseStatuses(values []string) ([]queue.Status, error) {
	out := make([]queue.Status, 0, len(values))
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		out = append(out, status)
	}
	return out, nil
}
