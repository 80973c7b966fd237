package api_test

import (
	"testing"
	"time"

	"docbatch/internal/api"
	"docbatch/internal/queue"
	"docbatch/internal/workflow"
)

func TestFromQueueItemCarriesAttemptHistory(t *testing.T) {
	failedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	retryAt := failedAt.Add(time.Minute)
	item := &queue.Item{
		ID:        7,
		Status:    queue.StatusQueued,
		Payload:   `{"template":{"content_id":"0123456789abcdef"},"output_format":"docx"}`,
		Attempts:  1,
		CreatedAt: failedAt,
		AttemptLog: []queue.AttemptRecord{
			{Attempt: 1, Error: "boom", Kind: "conversion_timeout", FailedAt: failedAt, RetryAt: &retryAt},
		},
		LockExpiry: &retryAt,
	}

	dto := api.FromQueueItem(item)
	if dto.Status != "queued" || dto.Summary != "01234567 → docx" {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if dto.CreatedAt != "2026-01-02T03:04:05.000Z" || dto.LockExpiry != "2026-01-02T03:05:05.000Z" {
		t.Fatalf("unexpected timestamps: %s %s", dto.CreatedAt, dto.LockExpiry)
	}
	if len(dto.AttemptLog) != 1 || dto.AttemptLog[0].RetryAt == "" || dto.AttemptLog[0].Kind != "conversion_timeout" {
		t.Fatalf("unexpected attempt log: %+v", dto.AttemptLog)
	}
	if !api.ParseTime(dto.CreatedAt).Equal(failedAt) {
		t.Fatalf("ParseTime did not round trip %q", dto.CreatedAt)
	}
}

func TestFromQueueItemToleratesBadPayload(t *testing.T) {
	dto := api.FromQueueItem(&queue.Item{ID: 1, Status: queue.StatusFailed, Payload: "{"})
	if dto.Summary != "invalid request" {
		t.Fatalf("unexpected summary %q", dto.Summary)
	}
}

func TestMergeQueueStatsZeroFills(t *testing.T) {
	stats := api.MergeQueueStats(map[queue.Status]int{queue.StatusQueued: 2})
	if len(stats) != len(queue.AllStatuses()) || stats["queued"] != 2 || stats["failed"] != 0 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestFromWorkflowStatsRoundsUptime(t *testing.T) {
	status := api.FromWorkflowStats(workflow.Stats{Running: true, Uptime: 90*time.Second + 400*time.Millisecond, Succeeded: 3})
	if status.Uptime != "1m30s" || status.Succeeded != 3 || status.LastCycle != "" {
		t.Fatalf("unexpected status: %+v", status)
	}
}
