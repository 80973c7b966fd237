package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docbatch/internal/jobspec"
	"docbatch/internal/logging"
	"docbatch/internal/queue"
	"docbatch/internal/services"
	"docbatch/internal/telemetry"
	"docbatch/internal/textutil"
)

type outputs struct {
	output       string
	intermediate string
}

func (m *Manager) processItem(ctx context.Context, item *queue.Item, correlationID string) {
	ctx = services.WithWork(ctx, services.Work{
		ItemID:        item.ID,
		CorrelationID: correlationID,
		Attempt:       item.Attempts + 1,
	})
	logger := logging.WithContext(ctx, m.logger)
	logger.Debug("work item claimed", logging.Int("priority", item.Priority))

	start := m.now()
	refs, err := m.execute(ctx, item)
	duration := m.now().Sub(start)

	dep := telemetry.Dependency{
		JobType:       telemetry.JobTypeWorkItem,
		CorrelationID: correlationID,
		Duration:      duration,
		Success:       err == nil,
	}
	if err != nil {
		dep.Detail = string(services.KindOf(err))
	}
	m.sink.RecordDependency(ctx, dep)
	m.count(func(c *counters) { c.processed++ })

	if err != nil {
		m.handleFailure(ctx, logger, item, correlationID, err)
		return
	}

	cleared := ""
	changed, err := m.store.UpdateStatus(ctx, item.ID, queue.StatusUpdate{
		LeaseOwner:      correlationID,
		Status:          queue.StatusSucceeded,
		ClearLock:       true,
		ErrorMessage:    &cleared,
		OutputRef:       refs.output,
		IntermediateRef: refs.intermediate,
	})
	if err != nil {
		m.persistFailed(logger, item, err)
		return
	}
	if !changed {
		m.lockLost(logger, item)
		return
	}
	m.count(func(c *counters) { c.succeeded++ })
	logger.Info("work item succeeded",
		logging.String(logging.FieldEventType, "item_succeeded"),
		logging.String("output_ref", refs.output),
		logging.Duration("duration", duration),
	)
}

func (m *Manager) execute(ctx context.Context, item *queue.Item) (outputs, error) {
	spec, err := jobspec.Parse([]byte(item.Payload))
	if err != nil {
		return outputs{}, err
	}
	result, err := m.renderer.Render(ctx, spec)
	if err != nil {
		return outputs{}, err
	}

	name := outputName(spec, item.ID)
	var refs outputs
	refs.output, err = m.upload(ctx, result.Document, name+"."+string(result.Format))
	if err != nil {
		return outputs{}, err
	}
	if spec.IncludeIntermediate && len(result.Intermediate) > 0 {
		refs.intermediate, err = m.upload(ctx, result.Intermediate, name+"."+string(jobspec.FormatDOCX))
		if err != nil {
			return outputs{}, err
		}
	}
	return refs, nil
}

func (m *Manager) upload(ctx context.Context, data []byte, name string) (string, error) {
	ref, err := m.store.UploadContent(ctx, data, name)
	if err != nil {
		return "", services.WithHint(
			services.Wrap(services.KindUploadFailed, "upload output", name, err),
			"check record store access",
		)
	}
	return ref, nil
}

func outputName(spec jobspec.Spec, id int64) string {
	return textutil.OutputBase(spec.OutputName, fmt.Sprintf("item-%d", id))
}

// handleFailure is the only place a failure kind is interpreted.
func (m *Manager) handleFailure(ctx context.Context, logger *slog.Logger, item *queue.Item, correlationID string, cause error) {
	details := services.Details(cause)
	attempt := item.Attempts + 1
	now := m.now()
	summary := strings.TrimSpace(cause.Error())

	m.setLastError(cause)
	m.sink.Count(telemetry.FailureCounter(string(details.Kind)), 1)

	record := queue.AttemptRecord{
		Attempt:  attempt,
		Error:    summary,
		Kind:     string(details.Kind),
		FailedAt: now,
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorOperation, details.Operation),
		logging.Error(cause),
	}
	if details.Hint != "" {
		attrs = append(attrs, logging.String(logging.FieldErrorHint, details.Hint))
	}
	if details.Output != "" {
		attrs = append(attrs, logging.String("converter_output", details.Output))
	}

	retryable := services.Retryable(details.Kind)
	if retryable && attempt <= m.maxAttempts {
		delay := m.backoffFor(attempt)
		retryAt := now.Add(delay)
		record.RetryAt = &retryAt
		message := fmt.Sprintf("attempt %d/%d failed: %s", attempt, m.maxAttempts, summary)
		changed, err := m.store.UpdateStatus(ctx, item.ID, queue.StatusUpdate{
			LeaseOwner:    correlationID,
			Status:        queue.StatusQueued,
			Attempts:      &attempt,
			LockExpiry:    &retryAt,
			ErrorMessage:  &message,
			AppendAttempt: &record,
		})
		if err != nil {
			m.persistFailed(logger, item, err)
			return
		}
		if !changed {
			m.lockLost(logger, item)
			return
		}
		m.count(func(c *counters) { c.retried++ })
		m.sink.Count(telemetry.RetryCounter(attempt), 1)
		attrs = append(attrs,
			logging.Duration("retry_in", delay),
			logging.Time("retry_at", retryAt),
			logging.String(logging.FieldImpact, "work item will be retried"),
		)
		logging.WarnWithContext(logger, "work item failed; retry scheduled", "item_retry_scheduled", attrs...)
		return
	}

	var message string
	if !retryable {
		message = "non-retryable error: " + summary
	} else {
		message = fmt.Sprintf("max attempts exceeded (%d): %s", m.maxAttempts, summary)
	}
	changed, err := m.store.UpdateStatus(ctx, item.ID, queue.StatusUpdate{
		LeaseOwner:    correlationID,
		Status:        queue.StatusFailed,
		Attempts:      &attempt,
		ClearLock:     true,
		ErrorMessage:  &message,
		AppendAttempt: &record,
	})
	if err != nil {
		m.persistFailed(logger, item, err)
		return
	}
	if !changed {
		m.lockLost(logger, item)
		return
	}
	m.count(func(c *counters) { c.failed++ })
	attrs = append(attrs, logging.Bool("retryable", retryable), logging.Alert("item_failed"))
	logging.ErrorWithContext(logger, "work item failed", "item_failed", attrs...)
}

// lockLost records an item whose final update matched no row: it was
// canceled or re-leased while this worker held it.
func (m *Manager) lockLost(logger *slog.Logger, item *queue.Item) {
	m.count(func(c *counters) { c.lockLost++ })
	m.sink.Count(telemetry.FailureCounter(string(services.KindLockLost)), 1)
	logging.WarnWithContext(logger, "work item lease lost before final update", "item_lock_lost",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldErrorKind, string(services.KindLockLost)),
		logging.String(logging.FieldImpact, "result discarded; the item was canceled or claimed by another worker"),
	)
}

func (m *Manager) persistFailed(logger *slog.Logger, item *queue.Item, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(logger, "failed to persist work item outcome", "item_persist_failed",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check record store access"),
		logging.String(logging.FieldImpact, "item becomes claimable again when its lease expires"),
	)
}
