package api

import (
	"time"

	"docbatch/internal/convert"
	"docbatch/internal/jobspec"
	"docbatch/internal/queue"
	"docbatch/internal/templatecache"
	"docbatch/internal/workflow"
)

// FromQueueItem converts a queue record to its API representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	dto := QueueItem{
		ID:              item.ID,
		Status:          string(item.Status),
		Priority:        item.Priority,
		Attempts:        item.Attempts,
		Summary:         summarizePayload(item.Payload),
		CorrelationID:   item.CorrelationID,
		ErrorMessage:    item.ErrorMessage,
		OutputRef:       item.OutputRef,
		IntermediateRef: item.IntermediateRef,
		CreatedAt:       formatTime(item.CreatedAt),
		UpdatedAt:       formatTime(item.UpdatedAt),
	}
	if item.LockExpiry != nil {
		dto.LockExpiry = formatTime(*item.LockExpiry)
	}
	for _, record := range item.AttemptLog {
		attempt := Attempt{
			Attempt:  record.Attempt,
			Kind:     record.Kind,
			Error:    record.Error,
			FailedAt: formatTime(record.FailedAt),
		}
		if record.RetryAt != nil {
			attempt.RetryAt = formatTime(*record.RetryAt)
		}
		dto.AttemptLog = append(dto.AttemptLog, attempt)
	}
	return dto
}

// FromQueueItems converts a slice of queue records into API DTOs.
func FromQueueItems(items []*queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// summarizePayload describes a payload in a few words. Payloads that no
// longer parse are reported as invalid rather than failing the listing.
func summarizePayload(payload string) string {
	spec, err := jobspec.ParseAny([]byte(payload))
	if err != nil {
		return "invalid request"
	}
	return spec.Describe()
}

// FromWorkflowStats converts workflow counters.
func FromWorkflowStats(stats workflow.Stats) WorkflowStatus {
	status := WorkflowStatus{
		Running:    stats.Running,
		LastCycle:  formatTime(stats.LastCycle),
		QueueDepth: stats.QueueDepth,
		Processed:  stats.Processed,
		Succeeded:  stats.Succeeded,
		Failed:     stats.Failed,
		Retried:    stats.Retried,
		LockLost:   stats.LockLost,
		LastError:  stats.LastError,
	}
	if stats.Uptime > 0 {
		status.Uptime = stats.Uptime.Round(time.Second).String()
	}
	return status
}

// FromPoolStats converts pool counters.
func FromPoolStats(stats convert.Stats) PoolStatus {
	return PoolStatus{
		Size:      stats.Size,
		Active:    stats.Active,
		Queued:    stats.Queued,
		Completed: stats.Completed,
		Failed:    stats.Failed,
	}
}

// FromCacheStats converts cache counters.
func FromCacheStats(stats templatecache.Stats) CacheStatus {
	return CacheStatus{
		Entries:   stats.Entries,
		Bytes:     stats.Bytes,
		MaxBytes:  stats.MaxBytes,
		Hits:      stats.Hits,
		Misses:    stats.Misses,
		Evictions: stats.Evictions,
	}
}

// FromContent converts a stored blob's metadata.
func FromContent(content *queue.Content) ContentInfo {
	if content == nil {
		return ContentInfo{}
	}
	return ContentInfo{
		ID:        content.ID,
		Name:      content.Name,
		MediaType: content.MediaType,
		Size:      content.Size,
		CreatedAt: formatTime(content.CreatedAt),
	}
}

// FromStoreHealth converts a store health probe. A non-nil err is reported in
// Error alongside whatever counts were gathered.
func FromStoreHealth(path string, health queue.Health, err error) StoreStatus {
	status := StoreStatus{
		Path:      path,
		Items:     health.Items(),
		Contents:  health.Contents,
		Integrity: health.Integrity,
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

// MergeQueueStats returns counts for every known status, zero-filled.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

// ParseTime parses an API timestamp. Invalid or empty values yield the zero time.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
