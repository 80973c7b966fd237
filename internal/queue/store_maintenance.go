package queue

import (
	"context"
	"fmt"
	"time"
)

const healthTimeout = 2 * time.Second

// Stats counts items per status. Statuses with no items are absent.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM work_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var (
			status Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats[status] = n
	}
	return stats, rows.Err()
}

// Health is a point-in-time summary of the store for status output.
type Health struct {
	Counts   map[Status]int
	Contents int
	// Integrity is the first line of PRAGMA quick_check; "ok" when healthy.
	Integrity string
}

// Items totals Counts.
func (h Health) Items() int {
	n := 0
	for _, c := range h.Counts {
		n += c
	}
	return n
}

// Healthy reports whether the integrity check passed.
func (h Health) Healthy() bool {
	return h.Integrity == "ok"
}

// Health pings the database, counts items and blobs, and runs a quick
// integrity check, all within a short deadline.
func (s *Store) Health(ctx context.Context) (Health, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return Health{}, fmt.Errorf("ping store: %w", err)
	}
	var h Health
	var err error
	if h.Counts, err = s.Stats(ctx); err != nil {
		return Health{}, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM contents`).Scan(&h.Contents); err != nil {
		return h, fmt.Errorf("count contents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&h.Integrity); err != nil {
		return h, fmt.Errorf("integrity check: %w", err)
	}
	return h, nil
}
