package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	// promauto already registers these at package init; just verify they exist.
	assert.NotNil(t, RequestsSubmitted)
	assert.NotNil(t, RequestsCompleted)
	assert.NotNil(t, RequestDuration)
	assert.NotNil(t, RequestRetries)
	assert.NotNil(t, RequestsCancelled)

	assert.NotNil(t, QueueDepth)
	assert.NotNil(t, QueueLatency)

	assert.NotNil(t, StaleRequestsReaped)
	assert.NotNil(t, RetriesReadmitted)

	assert.NotNil(t, ActiveWorkers)
	assert.NotNil(t, WorkerCount)
	assert.NotNil(t, WorkerBusyTime)

	assert.NotNil(t, ProviderRequests)
	assert.NotNil(t, ProviderLatency)
	assert.NotNil(t, ProviderCircuitState)
	assert.NotNil(t, ProviderCost)
	assert.NotNil(t, RateLimitRejections)

	assert.NotNil(t, HTTPRequestDuration)
	assert.NotNil(t, HTTPRequestsTotal)

	assert.NotNil(t, RedisOperationDuration)
	assert.NotNil(t, RedisErrors)

	assert.NotNil(t, WebSocketConnections)
	assert.NotNil(t, WebSocketMessages)
}

func TestRecordRequestSubmission(t *testing.T) {
	RequestsSubmitted.Reset()

	RecordRequestSubmission("high")
	RecordRequestSubmission("high")
	RecordRequestSubmission("normal")
}

func TestRecordRequestCompletion(t *testing.T) {
	RequestsCompleted.Reset()
	RequestDuration.Reset()

	RecordRequestCompletion("anthropic", "completed", 1.5)
	RecordRequestCompletion("anthropic", "failed", 0.5)
}

func TestRecordRequestRetry(t *testing.T) {
	RequestRetries.Reset()

	RecordRequestRetry("normal")
	RecordRequestRetry("normal")
}

func TestRecordCancellation(t *testing.T) {
	RequestsCancelled.Reset()

	RecordCancellation("success")
	RecordCancellation("rejected")
}

func TestUpdateQueueDepth(t *testing.T) {
	QueueDepth.Reset()

	UpdateQueueDepth("high", 100)
	UpdateQueueDepth("normal", 500)
	UpdateQueueDepth("low", 50)
}

func TestRecordQueueLatency(t *testing.T) {
	QueueLatency.Reset()

	RecordQueueLatency("high", 0.001)
	RecordQueueLatency("normal", 0.5)
}

func TestRecordStaleReap(t *testing.T) {
	RecordStaleReap()
	RecordStaleReap()
}

func TestRecordRetryReadmission(t *testing.T) {
	RecordRetryReadmission()
}

func TestSetWorkerCount(t *testing.T) {
	SetWorkerCount(3)
	SetWorkerCount(0)
}

func TestSetActiveWorkers(t *testing.T) {
	SetActiveWorkers(5)
	SetActiveWorkers(10)
	SetActiveWorkers(0)
}

func TestRecordWorkerBusyTime(t *testing.T) {
	WorkerBusyTime.Reset()

	RecordWorkerBusyTime("worker-1", 10.5)
	RecordWorkerBusyTime("worker-2", 5.0)
}

func TestRecordProviderRequest(t *testing.T) {
	ProviderRequests.Reset()
	ProviderLatency.Reset()

	RecordProviderRequest("anthropic", "success", 0.2)
	RecordProviderRequest("bedrock", "error", 0.4)
}

func TestSetProviderCircuitState(t *testing.T) {
	SetProviderCircuitState("anthropic", 0)
	SetProviderCircuitState("bedrock", 2)
}

func TestRecordProviderCost(t *testing.T) {
	ProviderCost.Reset()

	RecordProviderCost("anthropic", 0.015)
}

func TestRecordRateLimitRejection(t *testing.T) {
	RateLimitRejections.Reset()

	RecordRateLimitRejection("anthropic")
}

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestDuration.Reset()
	HTTPRequestsTotal.Reset()

	RecordHTTPRequest("GET", "/v1/requests", "200", 0.05)
	RecordHTTPRequest("POST", "/v1/requests", "201", 0.1)
	RecordHTTPRequest("GET", "/v1/requests/123", "404", 0.01)
}

func TestRecordRedisOperation(t *testing.T) {
	RedisOperationDuration.Reset()

	RecordRedisOperation("RPUSH", 0.001)
	RecordRedisOperation("LPOP", 0.005)
	RecordRedisOperation("GET", 0.0001)
}

func TestRecordRedisError(t *testing.T) {
	RedisErrors.Reset()

	RecordRedisError("RPUSH")
	RecordRedisError("GET")
}

func TestSetWebSocketConnections(t *testing.T) {
	SetWebSocketConnections(0)
	SetWebSocketConnections(10)
	SetWebSocketConnections(5)
}

func TestRecordWebSocketMessage(t *testing.T) {
	WebSocketMessages.Reset()

	RecordWebSocketMessage("request.submitted")
	RecordWebSocketMessage("request.completed")
	RecordWebSocketMessage("worker.joined")
}
