package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const itemColumns = "id, status, payload, priority, attempts, correlation_id, lock_expiry, error_message, attempt_log, output_ref, intermediate_ref, created_at, updated_at"

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type rowScanner interface {
	Scan(dest ...any) error
}

// itemRow mirrors itemColumns with the nullable columns left as sql.Null.
type itemRow struct {
	id              int64
	status          string
	payload         string
	priority        int
	attempts        int
	correlationID   sql.NullString
	lockExpiry      sql.NullString
	errorMessage    sql.NullString
	attemptLog      sql.NullString
	outputRef       sql.NullString
	intermediateRef sql.NullString
	createdAt       string
	updatedAt       string
}

func (r *itemRow) targets() []any {
	return []any{
		&r.id, &r.status, &r.payload, &r.priority, &r.attempts,
		&r.correlationID, &r.lockExpiry, &r.errorMessage, &r.attemptLog,
		&r.outputRef, &r.intermediateRef, &r.createdAt, &r.updatedAt,
	}
}

func (r *itemRow) item() (*Item, error) {
	item := &Item{
		ID:              r.id,
		Status:          Status(r.status),
		Payload:         r.payload,
		Priority:        r.priority,
		Attempts:        r.attempts,
		CorrelationID:   r.correlationID.String,
		ErrorMessage:    r.errorMessage.String,
		OutputRef:       r.outputRef.String,
		IntermediateRef: r.intermediateRef.String,
		CreatedAt:       parseStoredTime(r.createdAt),
		UpdatedAt:       parseStoredTime(r.updatedAt),
	}
	if r.lockExpiry.Valid {
		if t := parseStoredTime(r.lockExpiry.String); !t.IsZero() {
			item.LockExpiry = &t
		}
	}
	if log := r.attemptLog.String; log != "" {
		if err := json.Unmarshal([]byte(log), &item.AttemptLog); err != nil {
			return nil, fmt.Errorf("decode attempt log for item %d: %w", r.id, err)
		}
	}
	return item, nil
}

func scanItem(src rowScanner) (*Item, error) {
	var row itemRow
	if err := src.Scan(row.targets()...); err != nil {
		return nil, err
	}
	return row.item()
}

func scanItems(rows *sql.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseStoredTime returns the zero time for empty or malformed values.
func parseStoredTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// nullIfEmpty stores "" as NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// placeholders returns "?,?,...,?" with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
