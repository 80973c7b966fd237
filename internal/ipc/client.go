package ipc

import (
	"context"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client is a JSON-RPC connection to the daemon. Calls are serialized by
// net/rpc and abandon their wait when ctx ends.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the daemon socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp := new(Resp)
	pending := c.rpc.Go(ServiceName+"."+method, req, resp, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case call := <-pending.Done:
		if call.Error != nil {
			return nil, call.Error
		}
		return resp, nil
	}
}

func (c *Client) Start(ctx context.Context) (*StartResponse, error) {
	return invoke[StartResponse](ctx, c, "Start", StartRequest{})
}

// Stop halts the workflow. The daemon process keeps running.
func (c *Client) Stop(ctx context.Context) (*StopResponse, error) {
	return invoke[StopResponse](ctx, c, "Stop", StopRequest{})
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c, "Status", StatusRequest{})
}

// QueueList returns items, all of them when statuses is empty.
func (c *Client) QueueList(ctx context.Context, statuses []string) (*QueueListResponse, error) {
	return invoke[QueueListResponse](ctx, c, "QueueList", QueueListRequest{Statuses: statuses})
}

func (c *Client) QueueDescribe(ctx context.Context, id int64) (*QueueDescribeResponse, error) {
	return invoke[QueueDescribeResponse](ctx, c, "QueueDescribe", QueueDescribeRequest{ID: id})
}

// QueueEnqueue submits a JSON or YAML request.
func (c *Client) QueueEnqueue(ctx context.Context, payload string, priority int) (*QueueEnqueueResponse, error) {
	return invoke[QueueEnqueueResponse](ctx, c, "QueueEnqueue", QueueEnqueueRequest{Payload: payload, Priority: priority})
}

func (c *Client) QueueCancel(ctx context.Context, ids []int64) (*QueueCancelResponse, error) {
	return invoke[QueueCancelResponse](ctx, c, "QueueCancel", QueueCancelRequest{IDs: ids})
}

// QueueRetry requeues the failed items in ids, or every failed item when ids
// is empty.
func (c *Client) QueueRetry(ctx context.Context, ids []int64) (*QueueRetryResponse, error) {
	return invoke[QueueRetryResponse](ctx, c, "QueueRetry", QueueRetryRequest{IDs: ids})
}

func (c *Client) QueueClear(ctx context.Context) (*QueueClearResponse, error) {
	return invoke[QueueClearResponse](ctx, c, "QueueClear", QueueClearRequest{})
}

func (c *Client) QueueStats(ctx context.Context) (*QueueStatsResponse, error) {
	return invoke[QueueStatsResponse](ctx, c, "QueueStats", QueueStatsRequest{})
}

func (c *Client) ContentPut(ctx context.Context, name, mediaType string, data []byte) (*ContentPutResponse, error) {
	return invoke[ContentPutResponse](ctx, c, "ContentPut", ContentPutRequest{Name: name, MediaType: mediaType, Data: data})
}

func (c *Client) ContentGet(ctx context.Context, id string) (*ContentGetResponse, error) {
	return invoke[ContentGetResponse](ctx, c, "ContentGet", ContentGetRequest{ID: id})
}

func (c *Client) ContentList(ctx context.Context) (*ContentListResponse, error) {
	return invoke[ContentListResponse](ctx, c, "ContentList", ContentListRequest{})
}

// LogTail reads daemon log lines. With Follow set the server holds the call
// for up to WaitMillis.
func (c *Client) LogTail(ctx context.Context, req LogTailRequest) (*LogTailResponse, error) {
	return invoke[LogTailResponse](ctx, c, "LogTail", req)
}
