// Package worker implements the Worker and Worker Pool components,
// spec.md §4.E/§4.F: one-at-a-time processing of a queue item with
// timeout and metric accounting, and the elastic pool that supervises a
// roster of them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cortexflow/scheduler-core/internal/model"
)

// Dispatcher is the narrow surface a Worker needs from the Request
// Processor: provider dispatch and status reporting. Keeping it an
// interface (rather than importing the processor package directly)
// avoids a worker<->processor import cycle, since the processor owns
// enqueueing onto the queue the pool drains.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *model.AIRequest) (*model.AIResponse, error)
	ReportStatus(ctx context.Context, requestID string, status model.Status, metadata map[string]interface{})
}

// Config holds a Worker's tunables, spec.md §6 "Per-worker".
type Config struct {
	ProcessingTimeout time.Duration
	MaxRetries        int
	HealthCheckInterval time.Duration
}

// DefaultConfig returns spec.md §6's documented per-worker defaults.
func DefaultConfig() Config {
	return Config{
		ProcessingTimeout:   30 * time.Second,
		MaxRetries:          3,
		HealthCheckInterval: 5 * time.Second,
	}
}

// Worker is a single-slot processor: at most one in-flight request,
// serialized by its own state machine. It never dequeues directly; the
// Pool hands it items.
type Worker struct {
	id         string
	cfg        Config
	dispatcher Dispatcher
	startedAt  time.Time

	mu             sync.RWMutex
	status         model.WorkerStatus
	currentRequest string
	lastActivity   time.Time

	processed           atomic.Int64
	failed              atomic.Int64
	totalProcessingTime atomic.Int64 // nanoseconds

	running atomic.Bool
}

// New constructs a Worker with the given id.
func New(id string, cfg Config, dispatcher Dispatcher) *Worker {
	return &Worker{
		id:         id,
		cfg:        cfg,
		dispatcher: dispatcher,
		status:     model.WorkerStopped,
	}
}

// Start marks the worker available for work.
func (w *Worker) Start(ctx context.Context) error {
	w.running.Store(true)
	w.startedAt = time.Now()
	w.setStatus(model.WorkerRunning)
	return nil
}

// Stop marks the worker unavailable for new work.
func (w *Worker) Stop(ctx context.Context) error {
	w.running.Store(false)
	w.setStatus(model.WorkerStopped)
	return nil
}

// IsRunning reports whether the worker accepts work.
func (w *Worker) IsRunning() bool {
	return w.running.Load()
}

// GetID returns the worker's id.
func (w *Worker) GetID() string {
	return w.id
}

// GetStatus returns the worker's current processing status.
func (w *Worker) GetStatus() model.WorkerStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

func (w *Worker) setStatus(s model.WorkerStatus) {
	w.mu.Lock()
	w.status = s
	w.lastActivity = time.Now()
	w.mu.Unlock()
}

// ProcessingResult is spec.md §4.E/§9's tagged-variant ProcessingResult:
// the Worker never throws out of ProcessRequest, it always returns one
// of these.
type ProcessingResult struct {
	Success        bool
	Response       *model.AIResponse
	Error          string
	ProcessingTime time.Duration
}

var (
	errNotRunning      = errors.New("Worker is not running")
	errInvalidItemData = errors.New("Invalid request data")
)

// ProcessRequest processes one queue item end to end, per spec.md §4.E's
// numbered steps. It is atomic from the caller's perspective: by the
// time it returns, the worker has reverted to `running` regardless of
// outcome.
func (w *Worker) ProcessRequest(ctx context.Context, item *model.QueueItem) ProcessingResult {
	if !w.IsRunning() {
		return ProcessingResult{Success: false, Error: errNotRunning.Error()}
	}
	if item.Data == nil {
		return ProcessingResult{Success: false, Error: errInvalidItemData.Error()}
	}

	w.mu.Lock()
	w.status = model.WorkerProcessing
	w.currentRequest = item.ID
	w.lastActivity = time.Now()
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		if w.running.Load() {
			w.status = model.WorkerRunning
		}
		w.currentRequest = ""
		w.mu.Unlock()
	}()

	w.dispatcher.ReportStatus(ctx, item.ID, model.StatusProcessing, nil)

	req := requestFromItemData(item.Data)

	start := time.Now()
	result := w.raceDispatch(ctx, req)
	elapsed := time.Since(start)
	result.ProcessingTime = elapsed

	if result.Success {
		w.processed.Add(1)
		w.totalProcessingTime.Add(int64(elapsed))
		w.dispatcher.ReportStatus(ctx, item.ID, model.StatusCompleted, map[string]interface{}{
			"response":       result.Response,
			"completedAt":    time.Now(),
			"processingTime": elapsed,
		})
	} else {
		w.failed.Add(1)
		w.dispatcher.ReportStatus(ctx, item.ID, model.StatusFailed, map[string]interface{}{
			"error":          result.Error,
			"failedAt":       time.Now(),
			"processingTime": elapsed,
		})
	}
	return result
}

// raceDispatch races the provider dispatch against ProcessingTimeout, per
// spec.md §9's structured-cancellation-primitive guidance: the
// cancellation signal is passed down so a cancelled call can actually
// abort its round-trip, not merely be abandoned.
func (w *Worker) raceDispatch(ctx context.Context, req *model.AIRequest) ProcessingResult {
	dispatchCtx, cancel := context.WithTimeout(ctx, w.cfg.ProcessingTimeout)
	defer cancel()

	type outcome struct {
		resp *model.AIResponse
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		resp, err := w.dispatcher.Dispatch(dispatchCtx, req)
		ch <- outcome{resp, err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			return ProcessingResult{Success: false, Error: o.err.Error()}
		}
		return ProcessingResult{Success: true, Response: o.resp}
	case <-dispatchCtx.Done():
		return ProcessingResult{Success: false, Error: fmt.Sprintf("processing timeout after %s", w.cfg.ProcessingTimeout)}
	}
}

func requestFromItemData(data map[string]interface{}) *model.AIRequest {
	req := &model.AIRequest{}
	if v, ok := data["prompt"].(string); ok {
		req.Prompt = v
	}
	if v, ok := data["provider"].(string); ok {
		req.Provider = v
	}
	if v, ok := data["model"].(string); ok {
		req.Model = v
	}
	if v, ok := data["parameters"].(map[string]interface{}); ok {
		req.Parameters = v
	}
	if v, ok := data["context"].(map[string]interface{}); ok {
		req.Context = v
	}
	if v, ok := data["type"].(string); ok {
		req.Type = v
	}
	return req
}

// GetHealth returns an immutable snapshot of the worker's counters, per
// spec.md §9's "owned counters, immutable snapshots for readers".
func (w *Worker) GetHealth() model.WorkerHealth {
	processed := w.processed.Load()
	failed := w.failed.Load()

	var avg time.Duration
	if processed > 0 {
		avg = time.Duration(w.totalProcessingTime.Load() / processed)
	}

	w.mu.RLock()
	status := w.status
	lastActivity := w.lastActivity
	w.mu.RUnlock()

	isHealthy := status != model.WorkerFailed
	if total := processed + failed; total > 0 {
		if float64(failed)/float64(total) >= 0.5 {
			isHealthy = false
		}
	}

	var uptime time.Duration
	if !w.startedAt.IsZero() {
		uptime = time.Since(w.startedAt)
	}

	return model.WorkerHealth{
		WorkerID:              w.id,
		Status:                status,
		IsHealthy:             isHealthy,
		LastActivity:          lastActivity,
		ProcessedRequests:     processed,
		FailedRequests:        failed,
		AverageProcessingTime: avg,
		Uptime:                uptime,
	}
}
