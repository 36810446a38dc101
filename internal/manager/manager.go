// Package manager implements the Queue Manager: it owns the Priority
// Queue's connection lifetime and runs the two background tasks described
// in spec.md §4.B — the stale-request reaper and the retry re-admitter.
package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cortexflow/scheduler-core/internal/logger"
	"github.com/cortexflow/scheduler-core/internal/model"
	"github.com/cortexflow/scheduler-core/internal/queue"
)

// StatusReconciler lets the reaper push a terminal-failure observation
// back into the Request Processor's lifecycle store when it drops an
// exhausted item, closing the coupling gap spec.md §9 calls out. It is
// optional: a Manager used standalone (e.g. in tests) just logs the drop.
type StatusReconciler func(ctx context.Context, requestID string, status model.Status, reason string)

// Config holds the Manager's tunables, all named in spec.md §6.
type Config struct {
	CleanupInterval      time.Duration
	StaleRequestTimeout  time.Duration
	// RetryCheckInterval is the retry re-admitter's tick period. Distinct
	// from RetryDelay (the base delay BackoffPolicy grows from); the
	// admitter re-admits items whether or not that delay has elapsed.
	RetryCheckInterval   time.Duration
	RetryDelay           time.Duration
	MaxRetries           int
	GracefulShutdownTime time.Duration
}

// DefaultConfig returns spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		CleanupInterval:      60 * time.Second,
		StaleRequestTimeout:  5 * time.Minute,
		RetryCheckInterval:   30 * time.Second,
		RetryDelay:           30 * time.Second,
		MaxRetries:           3,
		GracefulShutdownTime: 10 * time.Second,
	}
}

// Manager owns the Priority Queue's connection and the two periodic
// background tasks.
type Manager struct {
	cfg     Config
	queue   *queue.PriorityQueue
	backoff BackoffPolicy

	reconcile StatusReconciler

	running atomic.Bool
	wg      sync.WaitGroup
	stopCh  chan struct{}

	mu                  sync.RWMutex
	lastCleanupRun      time.Time
	lastRetryProcessRun time.Time
}

// New constructs a Manager bound to q. reconcile may be nil.
func New(cfg Config, q *queue.PriorityQueue, reconcile StatusReconciler) *Manager {
	if cfg.RetryCheckInterval <= 0 {
		cfg.RetryCheckInterval = cfg.RetryDelay
	}
	return &Manager{cfg: cfg, queue: q, reconcile: reconcile, backoff: DefaultBackoffPolicy(cfg.RetryDelay)}
}

// Start connects the queue, marks the manager running, and schedules the
// two background tasks after a small initial delay so a Stop called
// immediately after Start cleanly cancels them before they ever fire.
// Idempotent.
func (m *Manager) Start(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return nil
	}
	if err := m.queue.Connect(ctx); err != nil {
		m.running.Store(false)
		return err
	}
	m.stopCh = make(chan struct{})

	m.wg.Add(2)
	go m.runPeriodic(ctx, m.cfg.CleanupInterval, m.runCleanupTick, &m.lastCleanupRun)
	go m.runPeriodic(ctx, m.cfg.RetryCheckInterval, m.runRetryTick, &m.lastRetryProcessRun)
	return nil
}

// Stop cancels both background timers, awaits any in-flight tick, then
// disconnects the queue. Bounded by GracefulShutdownTime. Idempotent.
func (m *Manager) Stop() error {
	if !m.running.CompareAndSwap(true, false) {
		return nil
	}
	close(m.stopCh)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(m.cfg.GracefulShutdownTime):
		logger.Warn().Msg("queue manager shutdown timed out waiting for background tasks")
	}
	return m.queue.Disconnect()
}

// IsRunning reports whether the manager is active.
func (m *Manager) IsRunning() bool {
	return m.running.Load()
}

// runPeriodic is the supervised-periodic-task primitive spec.md §9 asks
// for: it re-checks the running flag every tick, is cancellable via
// stopCh, and reports its last-run time for Health().
func (m *Manager) runPeriodic(ctx context.Context, interval time.Duration, tick func(context.Context), lastRun *time.Time) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.running.Load() {
				continue
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error().Interface("panic", r).Msg("queue manager background task panicked")
					}
				}()
				tick(ctx)
			}()
			m.mu.Lock()
			*lastRun = time.Now()
			m.mu.Unlock()
		}
	}
}

// runCleanupTick is the stale-request reaper, spec.md §4.B. Single item
// per tick by design, bounding per-tick work.
func (m *Manager) runCleanupTick(ctx context.Context) {
	item, err := m.queue.Dequeue(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("reaper: dequeue failed")
		return
	}
	if item == nil {
		return
	}

	last := item.Timestamp
	if item.LastAttempt.After(last) {
		last = item.LastAttempt
	}
	if time.Since(last) <= m.cfg.StaleRequestTimeout {
		if err := m.queue.Requeue(ctx, item); err != nil {
			logger.Error().Err(err).Str("id", item.ID).Msg("reaper: re-admit of fresh item failed")
		}
		return
	}

	if item.Attempts < m.cfg.MaxRetries {
		retry := item.Clone()
		retry.Attempts++
		retry.LastAttempt = time.Now()
		retry.Priority = model.PriorityLow
		if err := m.queue.Requeue(ctx, retry); err != nil {
			logger.Error().Err(err).Str("id", item.ID).Msg("reaper: retry re-admit failed")
		}
		return
	}

	logger.Warn().Str("id", item.ID).Msg("reaper: dropping item, retries exhausted")
	if m.reconcile != nil {
		m.reconcile(ctx, item.ID, model.StatusFailed, "stale request, retries exhausted")
	}
}

// runRetryTick is the retry re-admitter, spec.md §4.B. It dequeues one
// item and re-admits it unchanged. BackoffPolicy's attempt-based delay only
// decides which log message a failed re-admit gets; items that are not yet
// ready are re-admitted just the same.
func (m *Manager) runRetryTick(ctx context.Context) {
	item, err := m.queue.Dequeue(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("retry admitter: dequeue failed")
		return
	}
	if item == nil {
		return
	}
	wait := m.backoff.Delay(item.Attempts)
	if item.LastAttempt.IsZero() || time.Since(item.LastAttempt) >= wait {
		if err := m.queue.Requeue(ctx, item); err != nil {
			logger.Error().Err(err).Str("id", item.ID).Msg("retry admitter: re-admit failed")
		}
		return
	}
	if err := m.queue.Requeue(ctx, item); err != nil {
		logger.Error().Err(err).Str("id", item.ID).Msg("retry admitter: re-admit of not-yet-ready item failed")
	}
}

// Health composes the manager's running/connectivity state with live
// queue metrics, spec.md §4.B.
func (m *Manager) Health(ctx context.Context) model.ManagerHealth {
	m.mu.RLock()
	lastCleanup := m.lastCleanupRun
	lastRetry := m.lastRetryProcessRun
	m.mu.RUnlock()

	running := m.running.Load()
	connected := m.queue.IsConnected()

	metrics := model.QueueMetrics{QueueDepth: map[string]int64{}}
	if connected {
		if qm, err := m.queue.Metrics(ctx); err == nil {
			metrics = qm
		}
	}

	return model.ManagerHealth{
		IsRunning:             running,
		IsHealthy:             running && connected,
		RedisConnected:        connected,
		BackgroundTasksActive: running,
		QueueMetrics:          metrics,
		LastCleanupRun:        lastCleanup,
		LastRetryProcessRun:   lastRetry,
	}
}

// Queue exposes the managed Priority Queue to collaborators (the Worker
// Pool dequeues from it; the Request Processor enqueues to it).
func (m *Manager) Queue() *queue.PriorityQueue {
	return m.queue
}
