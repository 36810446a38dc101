package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cortexflow/scheduler-core/internal/logger"
	"github.com/cortexflow/scheduler-core/internal/manager"
	"github.com/cortexflow/scheduler-core/internal/model"
)

const defaultQueueItemsPerWorker = 5

// PoolConfig is validated at construction per spec.md §4.F.
type PoolConfig struct {
	MaxWorkers                int
	MinWorkers                int
	QueuePollInterval         time.Duration
	WorkerHealthCheckInterval time.Duration
	WorkerConfig              Config
	QueueItemsPerWorker       int
}

var ErrInvalidPoolConfig = errors.New("worker: invalid pool config")

func (c PoolConfig) validate() error {
	if c.MaxWorkers <= 0 {
		return ErrInvalidPoolConfig
	}
	if c.MinWorkers > c.MaxWorkers {
		return ErrInvalidPoolConfig
	}
	return nil
}

// Pool is the elastic Worker Pool, spec.md §4.F.
type Pool struct {
	cfg        PoolConfig
	mgr        *manager.Manager
	dispatcher Dispatcher

	mu         sync.RWMutex
	roster     []*Worker
	heartbeats map[string]*Heartbeat
	nextNum    int

	running atomic.Bool
	wg      sync.WaitGroup
	stopCh  chan struct{}

	rrCursor atomic.Int64
}

// NewPool validates cfg and constructs a Pool bound to mgr's queue.
func NewPool(cfg PoolConfig, mgr *manager.Manager, dispatcher Dispatcher) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.QueueItemsPerWorker <= 0 {
		cfg.QueueItemsPerWorker = defaultQueueItemsPerWorker
	}
	return &Pool{cfg: cfg, mgr: mgr, dispatcher: dispatcher}, nil
}

// Start creates MinWorkers workers and schedules the poll/health-check
// background tasks. Idempotent.
func (p *Pool) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}
	p.stopCh = make(chan struct{})

	p.mu.Lock()
	p.heartbeats = make(map[string]*Heartbeat)
	for i := 0; i < p.cfg.MinWorkers; i++ {
		if _, err := p.addWorkerLocked(ctx); err != nil {
			p.mu.Unlock()
			p.running.Store(false)
			return err
		}
	}
	p.mu.Unlock()

	p.wg.Add(2)
	go p.loop(ctx, p.cfg.QueuePollInterval, p.pollTick)
	go p.loop(ctx, p.cfg.WorkerHealthCheckInterval, p.healthTick)
	return nil
}

// Stop cancels the background tasks and stops every worker in parallel.
// Idempotent.
func (p *Pool) Stop(ctx context.Context) error {
	if !p.running.CompareAndSwap(true, false) {
		return nil
	}
	close(p.stopCh)
	p.wg.Wait()

	p.mu.Lock()
	roster := p.roster
	p.roster = nil
	p.mu.Unlock()

	// Supervise the parallel worker shutdowns with an errgroup rather than
	// a bare WaitGroup: stopWorker never actually returns an error today,
	// but errgroup.Group gives the same fan-out/fan-in shape the teacher's
	// queue-worker reference uses for coordinated shutdown, and collects
	// the first failure if stopWorker ever grows one.
	var eg errgroup.Group
	for _, w := range roster {
		w := w
		eg.Go(func() error {
			p.stopWorker(ctx, w)
			return nil
		})
	}
	_ = eg.Wait()
	return nil
}

// IsRunning reports whether the pool is active.
func (p *Pool) IsRunning() bool {
	return p.running.Load()
}

func (p *Pool) newWorkerLocked() *Worker {
	p.nextNum++
	id := fmt.Sprintf("worker-%d-%d", time.Now().Unix(), p.nextNum)
	return New(id, p.cfg.WorkerConfig, p.dispatcher)
}

// addWorkerLocked creates, starts, and registers a worker plus its
// Redis heartbeat (worker presence is published the way the teacher's
// worker.Heartbeat publishes task-queue worker liveness, repurposed here
// so an external supervisor can observe pool membership across
// processes, not just via the in-process Health() call). Caller holds p.mu.
func (p *Pool) addWorkerLocked(ctx context.Context) (*Worker, error) {
	w := p.newWorkerLocked()
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	p.roster = append(p.roster, w)

	interval := p.cfg.WorkerConfig.HealthCheckInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	hb := NewHeartbeat(p.mgr.Queue().Client(), w.GetID(), interval, interval*2)
	hb.Start(ctx)
	p.heartbeats[w.GetID()] = hb
	return w, nil
}

// stopWorker stops a worker and its heartbeat. Must be called without
// holding p.mu.
func (p *Pool) stopWorker(ctx context.Context, w *Worker) {
	_ = w.Stop(ctx)
	p.mu.Lock()
	hb := p.heartbeats[w.GetID()]
	delete(p.heartbeats, w.GetID())
	p.mu.Unlock()
	if hb != nil {
		hb.Stop()
	}
}

func (p *Pool) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	defer p.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.running.Load() {
				continue
			}
			tick(ctx)
		}
	}
}

func (p *Pool) pollTick(ctx context.Context) {
	p.ScaleWorkers(ctx)
	p.processQueue(ctx)
}

// ScaleWorkers implements spec.md §4.F's scaling policy:
// target = clamp(ceil(totalDepth/queueItemsPerWorker), minWorkers, maxWorkers).
// Exported so it can be invoked on demand, per spec.md §4.F ("invoked on
// demand or on poll"), not only from the pool's own ticker.
func (p *Pool) ScaleWorkers(ctx context.Context) {
	depth, err := p.mgr.Queue().TotalDepth(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("pool: scaleWorkers failed to read queue depth")
		return
	}

	target := int((depth + int64(p.cfg.QueueItemsPerWorker) - 1) / int64(p.cfg.QueueItemsPerWorker))
	if target < p.cfg.MinWorkers {
		target = p.cfg.MinWorkers
	}
	if target > p.cfg.MaxWorkers {
		target = p.cfg.MaxWorkers
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	current := len(p.roster)

	if target > current {
		for i := 0; i < target-current; i++ {
			if _, err := p.addWorkerLocked(ctx); err != nil {
				logger.Error().Err(err).Msg("pool: failed to start new worker during scale-up")
				continue
			}
		}
		return
	}

	if target < current && current > p.cfg.MinWorkers {
		remove := current - target
		if max := current - p.cfg.MinWorkers; remove > max {
			remove = max
		}
		tail := p.roster[current-remove:]
		p.roster = p.roster[:current-remove]
		p.mu.Unlock()
		for _, w := range tail {
			p.stopWorker(ctx, w)
		}
		p.mu.Lock()
	}
}

// healthTick implements spec.md §4.F's health supervision: unhealthy
// workers are stopped and removed; if the roster drops below MinWorkers,
// replacements are started.
func (p *Pool) healthTick(ctx context.Context) {
	p.mu.Lock()
	var healthy []*Worker
	var unhealthy []*Worker
	for _, w := range p.roster {
		if w.GetHealth().IsHealthy {
			healthy = append(healthy, w)
		} else {
			unhealthy = append(unhealthy, w)
		}
	}
	p.roster = healthy

	for len(p.roster) < p.cfg.MinWorkers {
		if _, err := p.addWorkerLocked(ctx); err != nil {
			logger.Error().Err(err).Msg("pool: failed to start replacement worker")
			break
		}
	}
	p.mu.Unlock()

	for _, w := range unhealthy {
		p.stopWorker(ctx, w)
	}
}

// processQueue drains the queue onto running workers, round-robin, so no
// long-lived worker is starved of work.
func (p *Pool) processQueue(ctx context.Context) {
	depth, err := p.mgr.Queue().TotalDepth(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("pool: processQueue failed to read queue depth")
		return
	}
	if depth <= 0 {
		return
	}

	p.mu.RLock()
	var available []*Worker
	for _, w := range p.roster {
		if w.GetStatus() == model.WorkerRunning {
			available = append(available, w)
		}
	}
	p.mu.RUnlock()
	if len(available) == 0 {
		return
	}

	n := int64(len(available))
	if depth < n {
		n = depth
	}

	// Handoffs run on an errgroup.Group rather than loose goroutines so the
	// per-worker goroutines have a single join point (Wait). Wait runs on a
	// detached goroutine, so the tick itself returns without waiting for
	// the handoffs to finish.
	var eg errgroup.Group
	for i := int64(0); i < n; i++ {
		item, err := p.mgr.Queue().Dequeue(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("pool: processQueue dequeue failed")
			break
		}
		if item == nil {
			break
		}
		idx := p.rrCursor.Add(1) % int64(len(available))
		w := available[idx]
		eg.Go(func() error {
			w.ProcessRequest(ctx, item)
			return nil
		})
	}
	go func() {
		if err := eg.Wait(); err != nil {
			logger.Error().Err(err).Msg("pool: processQueue handoff group reported an error")
		}
	}()
}

// Health composes the pool's aggregate health report, spec.md §4.F.
func (p *Pool) Health(ctx context.Context) model.PoolHealth {
	p.mu.RLock()
	roster := make([]*Worker, len(p.roster))
	copy(roster, p.roster)
	p.mu.RUnlock()

	workers := make([]model.WorkerHealth, 0, len(roster))
	var active, idle, failedCount int
	var totalProcessed, totalFailed int64
	var totalAvg time.Duration
	var avgCount int

	for _, w := range roster {
		h := w.GetHealth()
		workers = append(workers, h)
		totalProcessed += h.ProcessedRequests
		totalFailed += h.FailedRequests
		if h.AverageProcessingTime > 0 {
			totalAvg += h.AverageProcessingTime
			avgCount++
		}
		switch h.Status {
		case model.WorkerProcessing:
			active++
		case model.WorkerRunning:
			idle++
		case model.WorkerFailed:
			failedCount++
		}
	}

	qm := model.QueueMetrics{QueueDepth: map[string]int64{}}
	if m, err := p.mgr.Queue().Metrics(ctx); err == nil {
		qm = m
	}

	var avgProcessing time.Duration
	if avgCount > 0 {
		avgProcessing = totalAvg / time.Duration(avgCount)
	}

	running := p.IsRunning()
	return model.PoolHealth{
		IsRunning:     running,
		IsHealthy:     running && float64(failedCount) < 0.5*float64(len(roster)),
		WorkerCount:   len(roster),
		ActiveWorkers: active,
		IdleWorkers:   idle,
		FailedWorkers: failedCount,
		QueueMetrics:  qm,
		Performance: model.PerformanceSummary{
			TotalProcessed:        totalProcessed,
			TotalFailed:           totalFailed,
			AverageProcessingTime: avgProcessing,
		},
		Workers: workers,
	}
}

// WorkerCount returns the current roster size (test/observability helper).
func (p *Pool) WorkerCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.roster)
}
