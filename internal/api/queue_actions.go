package api

import (
	"context"

	"docbatch/internal/queue"
)

// QueueActionService captures queue operations needed by per-item retry and
// cancel workflows.
type QueueActionService interface {
	Describe(ctx context.Context, id int64) (*QueueItem, error)
	Retry(ctx context.Context, ids []int64) (int64, error)
	Cancel(ctx context.Context, ids []int64) (int64, error)
}

type RetryItemOutcome string

const (
	RetryItemUpdated   RetryItemOutcome = "retried"
	RetryItemNotFound  RetryItemOutcome = "not_found"
	RetryItemNotFailed RetryItemOutcome = "not_failed"
)

type RetryItemResult struct {
	ID      int64            `json:"id"`
	Outcome RetryItemOutcome `json:"outcome"`
}

type RetryItemsResult struct {
	UpdatedCount int64             `json:"updatedCount"`
	Items        []RetryItemResult `json:"items"`
}

type CancelItemOutcome string

const (
	CancelItemUpdated        CancelItemOutcome = "canceled"
	CancelItemNotFound       CancelItemOutcome = "not_found"
	CancelItemAlreadyDone    CancelItemOutcome = "already_terminal"
	CancelItemLostConcurrent CancelItemOutcome = "finished_concurrently"
)

type CancelItemResult struct {
	ID            int64             `json:"id"`
	Outcome       CancelItemOutcome `json:"outcome"`
	PriorStatus   string            `json:"prior_status,omitempty"`
	WasProcessing bool              `json:"was_processing,omitempty"`
}

type CancelItemsResult struct {
	UpdatedCount int64              `json:"updatedCount"`
	Items        []CancelItemResult `json:"items"`
}

// RetryFailedItemsByID validates IDs and retries only failed items.
func RetryFailedItemsByID(ctx context.Context, service QueueActionService, ids []int64) (RetryItemsResult, error) {
	result := RetryItemsResult{Items: make([]RetryItemResult, 0, len(ids))}
	for _, id := range ids {
		item, err := service.Describe(ctx, id)
		if err != nil {
			return RetryItemsResult{}, err
		}
		if item == nil {
			result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemNotFound})
			continue
		}
		status, ok := queue.ParseStatus(item.Status)
		if !ok || status != queue.StatusFailed {
			result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemNotFailed})
			continue
		}
		updated, err := service.Retry(ctx, []int64{id})
		if err != nil {
			return RetryItemsResult{}, err
		}
		if updated > 0 {
			result.UpdatedCount += updated
			result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemUpdated})
			continue
		}
		result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemNotFailed})
	}
	return result, nil
}

// CancelItemsByID validates IDs and cancels items unless already terminal.
func CancelItemsByID(ctx context.Context, service QueueActionService, ids []int64) (CancelItemsResult, error) {
	result := CancelItemsResult{Items: make([]CancelItemResult, 0, len(ids))}
	for _, id := range ids {
		item, err := service.Describe(ctx, id)
		if err != nil {
			return CancelItemsResult{}, err
		}
		if item == nil {
			result.Items = append(result.Items, CancelItemResult{ID: id, Outcome: CancelItemNotFound})
			continue
		}
		status, _ := queue.ParseStatus(item.Status)
		if status.IsTerminal() {
			result.Items = append(result.Items, CancelItemResult{ID: id, Outcome: CancelItemAlreadyDone, PriorStatus: item.Status})
			continue
		}

		updated, err := service.Cancel(ctx, []int64{id})
		if err != nil {
			return CancelItemsResult{}, err
		}
		if updated == 0 {
			result.Items = append(result.Items, CancelItemResult{ID: id, Outcome: CancelItemLostConcurrent, PriorStatus: item.Status})
			continue
		}
		result.UpdatedCount += updated
		result.Items = append(result.Items, CancelItemResult{
			ID:            id,
			Outcome:       CancelItemUpdated,
			PriorStatus:   item.Status,
			WasProcessing: status == queue.StatusProcessing,
		})
	}
	return result, nil
}
