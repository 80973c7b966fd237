package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Enqueue inserts a new QUEUED work item carrying the given request payload.
func (s *Store) Enqueue(ctx context.Context, payload string, priority int) (*Item, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, errors.New("enqueue: payload is required")
	}
	now := formatTime(s.clock())
	res, err := s.exec(
		ctx,
		`INSERT INTO work_items (status, payload, priority, attempts, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)`,
		StatusQueued, payload, priority, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches an item by identifier. A missing item yields ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// List returns work items filtered by status set (or all items when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM work_items`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders(len(statuses)) + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	return scanItems(rows)
}

// candidateClause selects rows that are queued and past any not-before time,
// plus processing rows whose lease has expired.
const candidateClause = `((status = ? AND (lock_expiry IS NULL OR lock_expiry < ?)) OR (status = ? AND lock_expiry < ?))`

// FetchCandidates returns up to limit lease-eligible items ordered by priority
// (highest first) and then creation time (oldest first).
func (s *Store) FetchCandidates(ctx context.Context, limit int) ([]*Item, error) {
	if limit <= 0 {
		return nil, nil
	}
	now := formatTime(s.clock())
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM work_items WHERE `+candidateClause+` ORDER BY priority DESC, created_at ASC, id ASC LIMIT ?`,
		StatusQueued, now, StatusProcessing, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	return scanItems(rows)
}

// QueueDepth counts items waiting for processing, including those parked
// behind a backoff delay.
func (s *Store) QueueDepth(ctx context.Context) (int, error) {
	var depth int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM work_items WHERE status = ?`, StatusQueued).Scan(&depth); err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return depth, nil
}

// Cancel marks a non-terminal item CANCELED. It reports whether a row changed.
func (s *Store) Cancel(ctx context.Context, id int64) (bool, error) {
	res, err := s.exec(
		ctx,
		`UPDATE work_items SET status = ?, lock_expiry = NULL, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		StatusCanceled, formatTime(s.clock()), id, StatusQueued, StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("cancel item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Remove deletes an item by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM work_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearTerminal removes succeeded, failed, and canceled items.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	res, err := s.exec(
		ctx,
		`DELETE FROM work_items WHERE status IN (?, ?, ?)`,
		StatusSucceeded, StatusFailed, StatusCanceled,
	)
	if err != nil {
		return 0, fmt.Errorf("clear terminal items: %w", err)
	}
	return res.RowsAffected()
}
