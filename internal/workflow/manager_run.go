package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"docbatch/internal/logging"
	"docbatch/internal/queue"
	"docbatch/internal/telemetry"
)

// Start begins background polling. It returns immediately.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.store == nil || m.renderer == nil {
		m.mu.Unlock()
		return errors.New("workflow dependencies not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.startedAt = m.now()
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("workflow started",
		logging.Int("batch_size", m.batchSize),
		logging.Duration("min_poll_interval", m.minPoll),
		logging.Duration("max_poll_interval", m.maxPoll),
		logging.Duration("lease_ttl", m.leaseTTL),
		logging.Int("max_attempts", m.maxAttempts),
	)
	go m.loop(runCtx)
	return nil
}

// Stop ends polling and waits for every dispatched item to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// Running reports whether the poll loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()
	wait := m.minPoll
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		claimed, err := m.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.handleFetchError(ctx, err)
			wait = m.minPoll
			continue
		}
		wait = m.nextWait(wait, claimed)
	}
}

// nextWait resets to the minimum after a productive cycle and doubles up to
// the maximum after an idle one.
func (m *Manager) nextWait(current time.Duration, claimed int) time.Duration {
	if claimed > 0 {
		return m.minPoll
	}
	next := current * 2
	if next < m.minPoll {
		next = m.minPoll
	}
	if next > m.maxPoll {
		next = m.maxPoll
	}
	return next
}

func (m *Manager) handleFetchError(ctx context.Context, err error) {
	m.setLastError(err)
	m.logger.Error("failed to fetch work items",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check record store access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.cfg.ErrorRetryDelay()):
	}
}

// RunOnce performs a single poll cycle: fetch candidates, claim what it can,
// process the claimed items concurrently, and wait for all of them. It
// returns the number of items claimed.
func (m *Manager) RunOnce(ctx context.Context) (int, error) {
	m.reportDepth(ctx)

	candidates, err := m.store.FetchCandidates(ctx, m.batchSize)
	if err != nil {
		return 0, err
	}

	type claim struct {
		item          *queue.Item
		correlationID string
	}
	claims := make([]claim, 0, len(candidates))
	for _, item := range candidates {
		correlationID := uuid.NewString()
		ok, err := m.store.TryLock(ctx, item.ID, m.now().Add(m.leaseTTL), correlationID)
		if err != nil {
			m.logger.Warn("failed to lock work item",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "item_lock_failed"),
				logging.String(logging.FieldErrorHint, "check record store access"),
			)
			continue
		}
		if !ok {
			m.logger.Debug("work item claimed elsewhere", logging.Int64(logging.FieldItemID, item.ID))
			continue
		}
		claims = append(claims, claim{item: item, correlationID: correlationID})
	}

	// Claimed items run to completion even when the poll loop is stopping.
	itemCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for _, c := range claims {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.processItem(itemCtx, c.item, c.correlationID)
		}()
	}
	wg.Wait()

	m.mu.Lock()
	m.lastCycle = m.now()
	m.mu.Unlock()
	return len(claims), nil
}

func (m *Manager) reportDepth(ctx context.Context) {
	depth, err := m.store.QueueDepth(ctx)
	if err != nil {
		m.logger.Debug("queue depth unavailable", logging.Error(err))
		return
	}
	m.mu.Lock()
	m.depth = depth
	m.mu.Unlock()
	m.sink.Gauge(telemetry.GaugeQueueDepth, float64(depth))
}
