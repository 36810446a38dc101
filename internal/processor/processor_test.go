package processor_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/scheduler-core/internal/manager"
	"github.com/cortexflow/scheduler-core/internal/model"
	"github.com/cortexflow/scheduler-core/internal/processor"
	"github.com/cortexflow/scheduler-core/internal/provider"
	"github.com/cortexflow/scheduler-core/internal/queue"
)

type stubProvider struct {
	name  string
	valid bool
}

func (s *stubProvider) Name() string                                              { return s.name }
func (s *stubProvider) Models() []string                                          { return []string{"m1"} }
func (s *stubProvider) ValidateConfig() bool                                      { return s.valid }
func (s *stubProvider) CalculateCost(model.TokenUsage, string) (float64, error)   { return 0, nil }
func (s *stubProvider) SendRequest(ctx context.Context, r *model.AIRequest) (*model.AIResponse, error) {
	return &model.AIResponse{ID: "x", Provider: s.name}, nil
}

func newTestProcessor(t *testing.T) *processor.Processor {
	t.Helper()
	mr := miniredis.RunT(t)
	q := queue.NewPriorityQueue(mr.Addr(), "", 0, "testq")
	mgr := manager.New(manager.DefaultConfig(), q, nil)
	require.NoError(t, mgr.Start(context.Background()))
	t.Cleanup(func() { _ = mgr.Stop() })

	pm := provider.NewManager(provider.BreakerConfig{})
	require.NoError(t, pm.Register(&stubProvider{name: "anthropic", valid: true}))
	require.NoError(t, pm.SetDefault("anthropic"))

	p := processor.New(mgr, pm, 0, 0)
	require.NoError(t, p.Start(context.Background()))
	return p
}

func TestEnqueueRequest_CreatesPendingRecord(t *testing.T) {
	// Testable property 3.
	p := newTestProcessor(t)
	id, err := p.EnqueueRequest(context.Background(), &model.AIRequest{Prompt: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := p.GetRequestStatus(id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, rec.Status)
}

func TestEnqueueRequest_RejectsEmptyPrompt(t *testing.T) {
	// S6 from spec.md §8.
	p := newTestProcessor(t)
	_, err := p.EnqueueRequest(context.Background(), &model.AIRequest{Prompt: ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt cannot be empty")
}

func TestEnqueueRequest_RejectsUnknownProvider(t *testing.T) {
	p := newTestProcessor(t)
	_, err := p.EnqueueRequest(context.Background(), &model.AIRequest{Prompt: "hi", Provider: "nope"})
	require.Error(t, err)
}

func TestGetRequestStatus_NotFound(t *testing.T) {
	p := newTestProcessor(t)
	_, err := p.GetRequestStatus("missing")
	assert.ErrorIs(t, err, processor.ErrNotFound)
}

func TestUpdateRequestStatus_MonotonicUpdatedAt(t *testing.T) {
	// Testable property 4.
	p := newTestProcessor(t)
	id, err := p.EnqueueRequest(context.Background(), &model.AIRequest{Prompt: "hi"})
	require.NoError(t, err)

	before, err := p.GetRequestStatus(id)
	require.NoError(t, err)

	updated := p.UpdateRequestStatus(id, model.StatusProcessing, nil)
	assert.Equal(t, model.StatusProcessing, updated.Status)
	assert.True(t, updated.UpdatedAt.After(before.UpdatedAt))
}

func TestCancelRequest_PendingSucceeds(t *testing.T) {
	// S4 from spec.md §8.
	p := newTestProcessor(t)
	id, err := p.EnqueueRequest(context.Background(), &model.AIRequest{Prompt: "hi"})
	require.NoError(t, err)

	res, err := p.CancelRequest(id)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, model.StatusCancelled, res.Status)
}

func TestCancelRequest_ProcessingFails(t *testing.T) {
	p := newTestProcessor(t)
	id, err := p.EnqueueRequest(context.Background(), &model.AIRequest{Prompt: "hi"})
	require.NoError(t, err)
	p.UpdateRequestStatus(id, model.StatusProcessing, nil)

	res, err := p.CancelRequest(id)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "cannot be cancelled")
}

func TestCancelRequest_MissingID(t *testing.T) {
	p := newTestProcessor(t)
	_, err := p.CancelRequest("missing")
	assert.ErrorIs(t, err, processor.ErrNotFound)
}

func TestGetHealthStatus_HealthyWhenAllGood(t *testing.T) {
	p := newTestProcessor(t)
	h := p.GetHealthStatus(context.Background())
	assert.True(t, h.IsRunning)
	assert.True(t, h.IsHealthy)
}
