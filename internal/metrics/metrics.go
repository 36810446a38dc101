// Package metrics exposes scheduler-core's Prometheus instrumentation,
// grounded on the teacher's promauto-based metrics package but renamed
// and re-scoped to spec.md's components: request lifecycle, the
// Priority Queue, the Queue Manager's reaper/retry tasks, the Worker
// Pool, and provider dispatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_requests_submitted_total",
			Help: "Total number of AI requests submitted",
		},
		[]string{"priority"},
	)

	RequestsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_requests_completed_total",
			Help: "Total number of AI requests completed",
		},
		[]string{"provider", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_request_duration_seconds",
			Help:    "End-to-end request processing duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"provider"},
	)

	RequestRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_request_retries_total",
			Help: "Total number of requests re-admitted for retry",
		},
		[]string{"priority"},
	)

	RequestsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_requests_cancelled_total",
			Help: "Total number of cancel requests, by outcome",
		},
		[]string{"outcome"},
	)

	// Queue metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_queue_depth",
			Help: "Current number of requests in queue",
		},
		[]string{"priority"},
	)

	QueueLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_queue_latency_seconds",
			Help:    "Time spent in queue before processing",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"priority"},
	)

	// Queue Manager background-task metrics
	StaleRequestsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_stale_requests_reaped_total",
			Help: "Total number of requests marked FAILED by the stale-request reaper",
		},
	)

	RetriesReadmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_retries_readmitted_total",
			Help: "Total number of retry-eligible requests re-admitted to the queue",
		},
	)

	// Worker Pool metrics
	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_active_workers",
			Help: "Current number of workers actively processing a request",
		},
	)

	WorkerCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_worker_count",
			Help: "Current size of the worker pool roster",
		},
	)

	WorkerBusyTime = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_worker_busy_seconds_total",
			Help: "Total time workers spent processing requests",
		},
		[]string{"worker_id"},
	)

	// Provider metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_provider_requests_total",
			Help: "Total number of requests dispatched per provider",
		},
		[]string{"provider", "status"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_provider_latency_seconds",
			Help:    "Provider round-trip latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"provider"},
	)

	ProviderCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_provider_circuit_state",
			Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	ProviderCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_provider_cost_total",
			Help: "Estimated cumulative cost per provider, in USD",
		},
		[]string{"provider"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_rate_limit_rejections_total",
			Help: "Total number of requests rejected by admission rate limiting",
		},
		[]string{"provider"},
	)

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Redis metrics
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
		[]string{"operation"},
	)

	RedisErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_redis_errors_total",
			Help: "Total number of Redis errors",
		},
		[]string{"operation"},
	)

	// Health-stream metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_websocket_connections",
			Help: "Current number of health-stream WebSocket connections",
		},
	)

	WebSocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_websocket_messages_total",
			Help: "Total number of health-stream WebSocket messages sent",
		},
		[]string{"type"},
	)
)

// RecordRequestSubmission records a request admitted to the queue.
func RecordRequestSubmission(priority string) {
	RequestsSubmitted.WithLabelValues(priority).Inc()
}

// RecordRequestCompletion records a request reaching a terminal state.
func RecordRequestCompletion(provider, status string, duration float64) {
	RequestsCompleted.WithLabelValues(provider, status).Inc()
	RequestDuration.WithLabelValues(provider).Observe(duration)
}

// RecordRequestRetry records a retry re-admission.
func RecordRequestRetry(priority string) {
	RequestRetries.WithLabelValues(priority).Inc()
}

// RecordCancellation records a cancelRequest outcome.
func RecordCancellation(outcome string) {
	RequestsCancelled.WithLabelValues(outcome).Inc()
}

// UpdateQueueDepth updates the queue depth gauge for one priority level.
func UpdateQueueDepth(priority string, depth float64) {
	QueueDepth.WithLabelValues(priority).Set(depth)
}

// RecordQueueLatency records time spent in queue before dispatch.
func RecordQueueLatency(priority string, latency float64) {
	QueueLatency.WithLabelValues(priority).Observe(latency)
}

// RecordStaleReap records the stale-request reaper marking one request FAILED.
func RecordStaleReap() {
	StaleRequestsReaped.Inc()
}

// RecordRetryReadmission records the retry checker re-admitting one request.
func RecordRetryReadmission() {
	RetriesReadmitted.Inc()
}

// SetWorkerCount sets the pool roster size gauge.
func SetWorkerCount(count float64) {
	WorkerCount.Set(count)
}

// SetActiveWorkers sets the currently-processing worker gauge.
func SetActiveWorkers(count float64) {
	ActiveWorkers.Set(count)
}

// RecordWorkerBusyTime records time spent processing.
func RecordWorkerBusyTime(workerID string, duration float64) {
	WorkerBusyTime.WithLabelValues(workerID).Add(duration)
}

// RecordProviderRequest records a provider dispatch outcome and latency.
func RecordProviderRequest(provider, status string, latency float64) {
	ProviderRequests.WithLabelValues(provider, status).Inc()
	ProviderLatency.WithLabelValues(provider).Observe(latency)
}

// SetProviderCircuitState publishes a provider's gobreaker state as a gauge.
func SetProviderCircuitState(provider string, state float64) {
	ProviderCircuitState.WithLabelValues(provider).Set(state)
}

// RecordProviderCost accumulates estimated spend for a provider.
func RecordProviderCost(provider string, cost float64) {
	ProviderCost.WithLabelValues(provider).Add(cost)
}

// RecordRateLimitRejection records an admission-limiter rejection.
func RecordRateLimitRejection(provider string) {
	RateLimitRejections.WithLabelValues(provider).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration)
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordRedisOperation records a Redis operation.
func RecordRedisOperation(operation string, duration float64) {
	RedisOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordRedisError records a Redis error.
func RecordRedisError(operation string) {
	RedisErrors.WithLabelValues(operation).Inc()
}

// SetWebSocketConnections sets the health-stream connection gauge.
func SetWebSocketConnections(count float64) {
	WebSocketConnections.Set(count)
}

// RecordWebSocketMessage records a health-stream message send.
func RecordWebSocketMessage(msgType string) {
	WebSocketMessages.WithLabelValues(msgType).Inc()
}
