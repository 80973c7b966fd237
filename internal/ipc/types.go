package ipc

import "docbatch/internal/api"

// ServiceName is the RPC service name registered by the server.
const ServiceName = "Docbatch"

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse is the combined daemon, workflow, pool, and cache status.
type StatusResponse = api.DaemonStatus

// QueueItem is the wire form of a work item.
type QueueItem = api.QueueItem

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueDescribeRequest fetches a single queue item by id.
type QueueDescribeRequest struct {
	ID int64 `json:"id"`
}

// QueueDescribeResponse contains a single queue entry.
type QueueDescribeResponse struct {
	Item QueueItem `json:"item"`
}

// QueueEnqueueRequest submits a request payload (JSON or YAML).
type QueueEnqueueRequest struct {
	Payload  string `json:"payload"`
	Priority int    `json:"priority"`
}

// QueueEnqueueResponse returns the inserted item.
type QueueEnqueueResponse struct {
	Item QueueItem `json:"item"`
}

// QueueCancelRequest cancels items. Empty list is invalid.
type QueueCancelRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueCancelResponse reports per-item cancel outcomes.
type QueueCancelResponse = api.CancelItemsResult

// QueueRetryRequest retries failed items. Empty list means all failed items.
type QueueRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRetryResponse reports per-item retry outcomes.
type QueueRetryResponse = api.RetryItemsResult

// QueueClearRequest removes terminal items.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueStatsRequest fetches per-status counts.
type QueueStatsRequest struct{}

// QueueStatsResponse maps status to item count.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// ContentPutRequest stores a blob.
type ContentPutRequest struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"data"`
}

// ContentPutResponse describes the stored blob.
type ContentPutResponse struct {
	Content api.ContentInfo `json:"content"`
}

// ContentGetRequest fetches a blob by id.
type ContentGetRequest struct {
	ID string `json:"id"`
}

// ContentGetResponse carries blob bytes and metadata.
type ContentGetResponse struct {
	Content api.ContentInfo `json:"content"`
	Data    []byte          `json:"data"`
}

// ContentListRequest lists stored blobs.
type ContentListRequest struct{}

// ContentListResponse describes every stored blob.
type ContentListResponse struct {
	Contents []api.ContentInfo `json:"contents"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64  `json:"offset"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
	ItemID     int64  `json:"item_id,omitempty"`
	Component  string `json:"component,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
