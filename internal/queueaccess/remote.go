package queueaccess

import (
	"context"

	"docbatch/internal/api"
	"docbatch/internal/ipc"
)

// remote forwards queue calls to the daemon.
type remote struct {
	client *ipc.Client
}

// NewIPCAccess serves Access through a daemon connection.
func NewIPCAccess(client *ipc.Client) Access {
	return &remote{client: client}
}

func unwrap[Resp, Out any](resp *Resp, err error, pick func(*Resp) Out) (Out, error) {
	if err != nil {
		var zero Out
		return zero, err
	}
	return pick(resp), nil
}

func (r *remote) Stats(ctx context.Context) (map[string]int, error) {
	resp, err := r.client.QueueStats(ctx)
	return unwrap(resp, err, func(s *ipc.QueueStatsResponse) map[string]int { return s.Counts })
}

func (r *remote) List(ctx context.Context, statuses []string) ([]api.QueueItem, error) {
	resp, err := r.client.QueueList(ctx, statuses)
	return unwrap(resp, err, func(l *ipc.QueueListResponse) []api.QueueItem { return l.Items })
}

func (r *remote) Describe(ctx context.Context, id int64) (*api.QueueItem, error) {
	resp, err := r.client.QueueDescribe(ctx, id)
	return unwrap(resp, err, func(d *ipc.QueueDescribeResponse) *api.QueueItem { return &d.Item })
}

func (r *remote) Enqueue(ctx context.Context, payload []byte, priority int) (*api.QueueItem, error) {
	resp, err := r.client.QueueEnqueue(ctx, string(payload), priority)
	return unwrap(resp, err, func(e *ipc.QueueEnqueueResponse) *api.QueueItem { return &e.Item })
}

func (r *remote) Cancel(ctx context.Context, ids []int64) (api.CancelItemsResult, error) {
	resp, err := r.client.QueueCancel(ctx, ids)
	return unwrap(resp, err, func(c *ipc.QueueCancelResponse) api.CancelItemsResult { return *c })
}

func (r *remote) Retry(ctx context.Context, ids []int64) (api.RetryItemsResult, error) {
	resp, err := r.client.QueueRetry(ctx, ids)
	return unwrap(resp, err, func(c *ipc.QueueRetryResponse) api.RetryItemsResult { return *c })
}

func (r *remote) ClearTerminal(ctx context.Context) (int64, error) {
	resp, err := r.client.QueueClear(ctx)
	return unwrap(resp, err, func(c *ipc.QueueClearResponse) int64 { return c.Removed })
}

// remoteContent forwards content calls to the daemon.
type remoteContent struct {
	client *ipc.Client
}

func (r remoteContent) Put(ctx context.Context, data []byte, name, mediaType string) (api.ContentInfo, error) {
	resp, err := r.client.ContentPut(ctx, name, mediaType, data)
	return unwrap(resp, err, func(p *ipc.ContentPutResponse) api.ContentInfo { return p.Content })
}

func (r remoteContent) Get(ctx context.Context, id string) (api.ContentInfo, []byte, error) {
	resp, err := r.client.ContentGet(ctx, id)
	if err != nil {
		return api.ContentInfo{}, nil, err
	}
	return resp.Content, resp.Data, nil
}

func (r remoteContent) List(ctx context.Context) ([]api.ContentInfo, error) {
	resp, err := r.client.ContentList(ctx)
	return unwrap(resp, err, func(l *ipc.ContentListResponse) []api.ContentInfo { return l.Contents })
}
