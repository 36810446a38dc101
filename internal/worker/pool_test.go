package worker_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/scheduler-core/internal/manager"
	"github.com/cortexflow/scheduler-core/internal/model"
	"github.com/cortexflow/scheduler-core/internal/queue"
	"github.com/cortexflow/scheduler-core/internal/worker"
)

type stubDispatcher struct {
	delay time.Duration
	fail  bool
}

func (d *stubDispatcher) Dispatch(ctx context.Context, req *model.AIRequest) (*model.AIResponse, error) {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.fail {
		return nil, assertErr
	}
	return &model.AIResponse{ID: "r", Content: "ok"}, nil
}

func (d *stubDispatcher) ReportStatus(ctx context.Context, id string, status model.Status, metadata map[string]interface{}) {
}

var assertErr = context.DeadlineExceeded

func newTestManager(t *testing.T) *manager.Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	q := queue.NewPriorityQueue(mr.Addr(), "", 0, "testq")
	mgr := manager.New(manager.DefaultConfig(), q, nil)
	require.NoError(t, mgr.Start(context.Background()))
	t.Cleanup(func() { _ = mgr.Stop() })
	return mgr
}

func TestPool_InvalidConfig(t *testing.T) {
	mgr := newTestManager(t)
	_, err := worker.NewPool(worker.PoolConfig{MaxWorkers: 0}, mgr, &stubDispatcher{})
	assert.ErrorIs(t, err, worker.ErrInvalidPoolConfig)

	_, err = worker.NewPool(worker.PoolConfig{MaxWorkers: 1, MinWorkers: 2}, mgr, &stubDispatcher{})
	assert.ErrorIs(t, err, worker.ErrInvalidPoolConfig)
}

func TestPool_ScaleUpThenDown(t *testing.T) {
	// S2 from spec.md §8: config {min:1, max:3, itemsPerWorker:5}, seed 12
	// items, scaleWorkers -> 3 workers; drain to 0, scaleWorkers -> 1.
	mgr := newTestManager(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		require.NoError(t, mgr.Queue().Enqueue(ctx, fmt.Sprintf("id-%d", i), map[string]interface{}{}, model.PriorityNormal))
	}

	pool, err := worker.NewPool(worker.PoolConfig{
		MinWorkers:                1,
		MaxWorkers:                3,
		QueueItemsPerWorker:       5,
		QueuePollInterval:         time.Hour,
		WorkerHealthCheckInterval: time.Hour,
	}, mgr, &stubDispatcher{})
	require.NoError(t, err)
	require.NoError(t, pool.Start(ctx))
	t.Cleanup(func() { _ = pool.Stop(ctx) })

	pool.ScaleWorkers(ctx)
	assert.Equal(t, 3, pool.WorkerCount())

	for {
		depth, err := mgr.Queue().TotalDepth(ctx)
		require.NoError(t, err)
		if depth == 0 {
			break
		}
		_, err = mgr.Queue().Dequeue(ctx)
		require.NoError(t, err)
	}

	pool.ScaleWorkers(ctx)
	assert.Equal(t, 1, pool.WorkerCount())
}

func TestWorker_ProcessRequest_Success(t *testing.T) {
	w := worker.New("w1", worker.DefaultConfig(), &stubDispatcher{})
	require.NoError(t, w.Start(context.Background()))
	item := &model.QueueItem{ID: "req1", Data: map[string]interface{}{"prompt": "hi"}}
	res := w.ProcessRequest(context.Background(), item)
	assert.True(t, res.Success)

	h := w.GetHealth()
	assert.Equal(t, int64(1), h.ProcessedRequests)
}

func TestWorker_ProcessRequest_Timeout(t *testing.T) {
	// S3 from spec.md §8.
	cfg := worker.Config{ProcessingTimeout: 100 * time.Millisecond, MaxRetries: 3, HealthCheckInterval: time.Second}
	w := worker.New("w1", cfg, &stubDispatcher{delay: 200 * time.Millisecond})
	require.NoError(t, w.Start(context.Background()))
	item := &model.QueueItem{ID: "req1", Data: map[string]interface{}{"prompt": "hi"}}
	res := w.ProcessRequest(context.Background(), item)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "timeout")
}

func TestWorker_NotRunning(t *testing.T) {
	w := worker.New("w1", worker.DefaultConfig(), &stubDispatcher{})
	item := &model.QueueItem{ID: "req1", Data: map[string]interface{}{}}
	res := w.ProcessRequest(context.Background(), item)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not running")
}

func TestWorker_InvalidData(t *testing.T) {
	w := worker.New("w1", worker.DefaultConfig(), &stubDispatcher{})
	require.NoError(t, w.Start(context.Background()))
	item := &model.QueueItem{ID: "req1", Data: nil}
	res := w.ProcessRequest(context.Background(), item)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Invalid request data")
}
