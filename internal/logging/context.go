package logging

import (
	"context"
	"log/slog"

	"docbatch/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldItemID is the standardized structured logging key for work item identifiers.
	FieldItemID = "item_id"
	// FieldCorrelationID is the standardized structured logging key for lease correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldEventType classifies a record for log queries (e.g. "item_succeeded").
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for a failure.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the structured error kind from services.Details.
	FieldErrorKind = "error_kind"
	// FieldErrorOperation names the operation that failed.
	FieldErrorOperation = "error_operation"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAttempt is the 1-based processing attempt number.
	FieldAttempt = "attempt"
	// FieldContentID identifies a stored template or output blob.
	FieldContentID = "content_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	w, ok := services.WorkFromContext(ctx)
	if !ok {
		return nil
	}
	fields := []slog.Attr{slog.Int64(FieldItemID, w.ItemID)}
	if w.CorrelationID != "" {
		fields = append(fields, slog.String(FieldCorrelationID, w.CorrelationID))
	}
	if w.Attempt > 0 {
		fields = append(fields, slog.Int(FieldAttempt, w.Attempt))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
