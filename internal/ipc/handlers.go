package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"docbatch/internal/logging"
	"docbatch/internal/logs"
)

// followGrace bounds a follow request past its wait so a slow poll still
// returns before the client gives up.
const followGrace = 500 * time.Millisecond

// handlers holds the exported RPC methods registered under ServiceName.
type handlers struct {
	backend Backend
	logger  *slog.Logger
	ctx     context.Context
}

func (h *handlers) audit(msg, event string, attrs ...logging.Attr) {
	h.logger.Info(msg, logging.Args(append([]logging.Attr{logging.String(logging.FieldEventType, event)}, attrs...)...)...)
}

func (h *handlers) Start(_ StartRequest, resp *StartResponse) error {
	if err := h.backend.Start(h.ctx); err != nil {
		resp.Message = err.Error()
		return nil
	}
	*resp = StartResponse{Started: true, Message: "daemon started"}
	h.audit("daemon started via IPC", "daemon_start")
	return nil
}

func (h *handlers) Stop(_ StopRequest, resp *StopResponse) error {
	h.backend.Stop()
	resp.Stopped = true
	h.audit("daemon stopped via IPC", "daemon_stop")
	return nil
}

func (h *handlers) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = h.backend.Status(h.ctx)
	return nil
}

func (h *handlers) QueueStats(_ QueueStatsRequest, resp *QueueStatsResponse) (err error) {
	resp.Counts, err = h.backend.Queue().Stats(h.ctx)
	return err
}

func (h *handlers) QueueList(req QueueListRequest, resp *QueueListResponse) (err error) {
	resp.Items, err = h.backend.Queue().List(h.ctx, req.Statuses)
	return err
}

func (h *handlers) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid queue item id %d", req.ID)
	}
	item, err := h.backend.Queue().Describe(h.ctx, req.ID)
	switch {
	case err != nil:
		return err
	case item == nil:
		return fmt.Errorf("queue item %d not found", req.ID)
	}
	resp.Item = *item
	return nil
}

func (h *handlers) QueueEnqueue(req QueueEnqueueRequest, resp *QueueEnqueueResponse) error {
	item, err := h.backend.Queue().Enqueue(h.ctx, []byte(req.Payload), req.Priority)
	if err != nil {
		return err
	}
	resp.Item = *item
	h.audit("queue item enqueued via IPC", "queue_enqueue",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.Int("priority", req.Priority))
	return nil
}

func (h *handlers) QueueCancel(req QueueCancelRequest, resp *QueueCancelResponse) error {
	if len(req.IDs) == 0 {
		return errors.New("queue cancel requires at least one id")
	}
	result, err := h.backend.Queue().Cancel(h.ctx, req.IDs)
	if err != nil {
		return err
	}
	*resp = result
	h.audit("queue items canceled", "queue_cancel", logging.Int64("updated_count", result.UpdatedCount))
	return nil
}

func (h *handlers) QueueRetry(req QueueRetryRequest, resp *QueueRetryResponse) error {
	result, err := h.backend.Queue().Retry(h.ctx, req.IDs)
	if err != nil {
		return err
	}
	*resp = result
	h.audit("queue items retried", "queue_retry", logging.Int64("updated_count", result.UpdatedCount))
	return nil
}

func (h *handlers) QueueClear(_ QueueClearRequest, resp *QueueClearResponse) error {
	removed, err := h.backend.Queue().ClearTerminal(h.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	h.audit("terminal queue items cleared", "queue_clear", logging.Int64("removed_count", removed))
	return nil
}

func (h *handlers) ContentPut(req ContentPutRequest, resp *ContentPutResponse) (err error) {
	resp.Content, err = h.backend.Content().Put(h.ctx, req.Data, req.Name, req.MediaType)
	return err
}

func (h *handlers) ContentGet(req ContentGetRequest, resp *ContentGetResponse) (err error) {
	resp.Content, resp.Data, err = h.backend.Content().Get(h.ctx, req.ID)
	return err
}

func (h *handlers) ContentList(_ ContentListRequest, resp *ContentListResponse) (err error) {
	resp.Contents, err = h.backend.Content().List(h.ctx)
	return err
}

// LogTail returns filtered log lines. A follow request that times out with
// nothing new is not an error; the client polls again from resp.Offset.
func (h *handlers) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	path := h.backend.LogPath()
	if path == "" {
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if req.Follow && wait <= 0 {
		wait = time.Second
	}
	ctx := h.ctx
	if req.Follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait+followGrace)
		defer cancel()
	}
	result, err := logs.Tail(ctx, path, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
		Filter: logs.Filter{ItemID: req.ItemID, Component: req.Component, MinLevel: req.MinLevel},
	})
	resp.Offset = result.Offset
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Lines = result.Lines
	return nil
}
