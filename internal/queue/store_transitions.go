package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TryLock claims an item with one conditional UPDATE: the row moves to
// PROCESSING with the given lease expiry and correlation id only if it is
// still lease-eligible. False means another worker won the race.
func (s *Store) TryLock(ctx context.Context, id int64, leaseUntil time.Time, correlationID string) (bool, error) {
	now := formatTime(s.clock())
	res, err := s.exec(
		ctx,
		`UPDATE work_items
         SET status = ?, lock_expiry = ?, correlation_id = ?, updated_at = ?
         WHERE id = ? AND `+candidateClause,
		StatusProcessing, formatTime(leaseUntil), correlationID, now,
		id,
		StatusQueued, now, StatusProcessing, now,
	)
	if err != nil {
		return false, fmt.Errorf("lock item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// UpdateStatus applies upd to the item. Rows that were canceled externally
// are never overwritten; the boolean reports whether a row changed.
func (s *Store) UpdateStatus(ctx context.Context, id int64, upd StatusUpdate) (bool, error) {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(s.clock())}

	if upd.Status != "" {
		sets = append(sets, "status = ?")
		args = append(args, upd.Status)
	}
	if upd.Attempts != nil {
		sets = append(sets, "attempts = ?")
		args = append(args, *upd.Attempts)
	}
	switch {
	case upd.ClearLock:
		sets = append(sets, "lock_expiry = NULL")
	case upd.LockExpiry != nil:
		sets = append(sets, "lock_expiry = ?")
		args = append(args, nullTime(upd.LockExpiry))
	}
	if upd.ErrorMessage != nil {
		sets = append(sets, "error_message = ?")
		args = append(args, nullIfEmpty(*upd.ErrorMessage))
	}
	if upd.AppendAttempt != nil {
		encoded, err := json.Marshal(upd.AppendAttempt)
		if err != nil {
			return false, fmt.Errorf("encode attempt record: %w", err)
		}
		sets = append(sets, "attempt_log = json_insert(COALESCE(attempt_log, '[]'), '$[#]', json(?))")
		args = append(args, string(encoded))
	}
	if upd.OutputRef != "" {
		sets = append(sets, "output_ref = ?")
		args = append(args, upd.OutputRef)
	}
	if upd.IntermediateRef != "" {
		sets = append(sets, "intermediate_ref = ?")
		args = append(args, upd.IntermediateRef)
	}

	args = append(args, id, StatusCanceled)
	query := `UPDATE work_items SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND status != ?`
	if upd.LeaseOwner != "" {
		query += ` AND correlation_id = ?`
		args = append(args, upd.LeaseOwner)
	}
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Requeue returns FAILED items to QUEUED with a fresh attempt budget.
func (s *Store) Requeue(ctx context.Context, ids ...int64) (int64, error) {
	query := `UPDATE work_items SET status = ?, attempts = 0, lock_expiry = NULL, error_message = NULL, updated_at = ? WHERE status = ?`
	args := []any{StatusQueued, formatTime(s.clock()), StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("requeue failed items: %w", err)
	}
	return res.RowsAffected()
}
