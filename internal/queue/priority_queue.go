// Package queue implements the Priority Queue component: a three-level
// FIFO atop Redis Lists, one list per priority, sharing a configurable key
// prefix so multiple namespaces can coexist on one Redis instance.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cortexflow/scheduler-core/internal/logger"
	"github.com/cortexflow/scheduler-core/internal/model"
)

// PriorityQueue is safe for concurrent use by multiple workers. Ordering
// within a priority level is end-to-end FIFO: RPUSH/LPOP never interleave
// same-priority items out of order because Redis serializes each command.
type PriorityQueue struct {
	client    *redis.Client
	keyPrefix string
	connected atomic.Bool

	mu          sync.RWMutex
	onConnError func(error)
}

// NewPriorityQueue builds a queue bound to addr, not yet connected.
func NewPriorityQueue(addr, password string, db int, keyPrefix string) *PriorityQueue {
	if keyPrefix == "" {
		keyPrefix = "queue"
	}
	return &PriorityQueue{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		keyPrefix: keyPrefix,
	}
}

// OnConnectionError registers a callback invoked whenever a mutating
// operation observes the connection is not ready — the queue is an event
// source for connectivity errors so higher layers (the Queue Manager) can
// react, per spec.md §4.A.
func (q *PriorityQueue) OnConnectionError(fn func(error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onConnError = fn
}

// Connect pings Redis and marks the queue ready.
func (q *PriorityQueue) Connect(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return err
	}
	q.connected.Store(true)
	return nil
}

// Disconnect marks the queue not-ready and closes the underlying client.
func (q *PriorityQueue) Disconnect() error {
	q.connected.Store(false)
	return q.client.Close()
}

// IsConnected reports connection readiness.
func (q *PriorityQueue) IsConnected() bool {
	return q.connected.Load()
}

func (q *PriorityQueue) requireConnected() error {
	if !q.connected.Load() {
		err := model.ErrQueueNotConnected
		q.mu.RLock()
		cb := q.onConnError
		q.mu.RUnlock()
		if cb != nil {
			cb(err)
		}
		return err
	}
	return nil
}

// Enqueue appends id/data/priority to the tail of its priority's list.
func (q *PriorityQueue) Enqueue(ctx context.Context, id string, data map[string]interface{}, priority model.Priority) error {
	if err := q.requireConnected(); err != nil {
		return err
	}
	item := &model.QueueItem{
		ID:        id,
		Data:      data,
		Priority:  priority,
		Timestamp: time.Now(),
	}
	return q.push(ctx, item)
}

// Requeue re-admits an already-constructed item (used by the Queue Manager
// for retry re-admission and stale demotion).
func (q *PriorityQueue) Requeue(ctx context.Context, item *model.QueueItem) error {
	if err := q.requireConnected(); err != nil {
		return err
	}
	return q.push(ctx, item)
}

func (q *PriorityQueue) push(ctx context.Context, item *model.QueueItem) error {
	b, err := item.Marshal()
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, item.Priority.ListKey(q.keyPrefix), b).Err()
}

// Dequeue pops the head of the highest-precedence non-empty list. Returns
// (nil, nil) when every list is empty. A parse failure on the popped bytes
// is a SerializationError for that call only; the item is already
// consumed and is NOT automatically requeued (spec.md §4.A leaves that
// policy to the manager).
func (q *PriorityQueue) Dequeue(ctx context.Context) (*model.QueueItem, error) {
	if err := q.requireConnected(); err != nil {
		return nil, err
	}
	for _, p := range model.Ordered {
		res, err := q.client.LPop(ctx, p.ListKey(q.keyPrefix)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		item, perr := model.UnmarshalQueueItem(res)
		if perr != nil {
			logger.Error().Err(perr).Str("priority", p.String()).Msg("discarding malformed queue item")
			return nil, perr
		}
		return item, nil
	}
	return nil, nil
}

// Peek returns the head of the highest-precedence non-empty list without
// removing it.
func (q *PriorityQueue) Peek(ctx context.Context) (*model.QueueItem, error) {
	if err := q.requireConnected(); err != nil {
		return nil, err
	}
	for _, p := range model.Ordered {
		res, err := q.client.LIndex(ctx, p.ListKey(q.keyPrefix), 0).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		item, perr := model.UnmarshalQueueItem(res)
		if perr != nil {
			return nil, perr
		}
		return item, nil
	}
	return nil, nil
}

// Depth returns the length of a single priority's list.
func (q *PriorityQueue) Depth(ctx context.Context, priority model.Priority) (int64, error) {
	if err := q.requireConnected(); err != nil {
		return 0, err
	}
	return q.client.LLen(ctx, priority.ListKey(q.keyPrefix)).Result()
}

// TotalDepth sums the three priority lists.
func (q *PriorityQueue) TotalDepth(ctx context.Context) (int64, error) {
	var total int64
	for _, p := range model.Ordered {
		d, err := q.Depth(ctx, p)
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}

// Metrics returns a full QueueMetrics snapshot.
func (q *PriorityQueue) Metrics(ctx context.Context) (model.QueueMetrics, error) {
	m := model.QueueMetrics{QueueDepth: make(map[string]int64, 3)}
	for _, p := range model.Ordered {
		d, err := q.Depth(ctx, p)
		if err != nil {
			return model.QueueMetrics{}, err
		}
		m.QueueDepth[p.String()] = d
		m.TotalDepth += d
	}
	return m, nil
}

// IsEmpty reports whether every priority list is empty.
func (q *PriorityQueue) IsEmpty(ctx context.Context) (bool, error) {
	total, err := q.TotalDepth(ctx)
	if err != nil {
		return false, err
	}
	return total == 0, nil
}

// Client exposes the underlying Redis client for components (the worker
// pool's heartbeat keys, the events pub/sub publisher) that need raw Redis
// access outside the queue's own keyspace.
func (q *PriorityQueue) Client() *redis.Client {
	return q.client
}
