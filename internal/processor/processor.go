// Package processor implements the Request Processor: validation, id
// generation, the lifecycle record store, dispatch, and cancellation,
// spec.md §4.D.
package processor

import (
	"context"
	"sync/atomic"

	"github.com/cortexflow/scheduler-core/internal/logger"
	"github.com/cortexflow/scheduler-core/internal/manager"
	"github.com/cortexflow/scheduler-core/internal/model"
	"github.com/cortexflow/scheduler-core/internal/provider"
)

// CancelResult is the outcome of a cancelRequest call, spec.md §4.D.
type CancelResult struct {
	Success bool
	Status  model.Status
	Reason  string
}

// Processor is the Request Processor.
type Processor struct {
	manager   *manager.Manager
	providers *provider.Manager
	store     *recordStore
	limiter   *admissionLimiter

	running atomic.Bool
}

// New constructs a Processor bound to a Queue Manager and Provider
// Manager. admissionRPS<=0 disables the rate limiter.
func New(mgr *manager.Manager, providers *provider.Manager, admissionRPS float64, admissionBurst int) *Processor {
	return &Processor{
		manager:   mgr,
		providers: providers,
		store:     newRecordStore(),
		limiter:   newAdmissionLimiter(admissionRPS, admissionBurst),
	}
}

// Start marks the processor running (the Queue Manager owns the queue
// connection's own lifecycle; the processor only gates its own entry
// points).
func (p *Processor) Start(ctx context.Context) error {
	p.running.Store(true)
	return nil
}

// Stop marks the processor not running.
func (p *Processor) Stop(ctx context.Context) error {
	p.running.Store(false)
	return nil
}

// IsRunning reports whether the processor accepts new work.
func (p *Processor) IsRunning() bool {
	return p.running.Load()
}

// validate rejects with a ValidationError before any side effect,
// spec.md §4.D.
func (p *Processor) validate(req *model.AIRequest) error {
	if req.PromptEmpty() {
		return newValidationError("prompt cannot be empty")
	}
	if req.Provider != "" && !p.providers.Has(req.Provider) {
		return newValidationError("unknown provider: " + req.Provider)
	}
	if req.Provider == "" {
		if _, err := p.providers.GetProvider(""); err != nil {
			return newValidationError("no provider available: " + err.Error())
		}
	}
	return nil
}

// EnqueueRequest validates req, assigns an id, records it PENDING, and
// admits it to the Priority Queue.
func (p *Processor) EnqueueRequest(ctx context.Context, req *model.AIRequest) (string, error) {
	if err := p.validate(req); err != nil {
		return "", err
	}
	if !p.limiter.allow(req.Provider) {
		return "", &RateLimitError{Provider: req.Provider}
	}

	id := newRequestID()
	p.store.create(&model.RequestRecord{
		RequestID: id,
		Status:    model.StatusPending,
		Provider:  req.Provider,
		Model:     req.Model,
		Metadata: map[string]interface{}{
			"originalRequest": req,
		},
	})

	priority := req.Priority
	data := map[string]interface{}{
		"prompt":     req.Prompt,
		"provider":   req.Provider,
		"model":      req.Model,
		"parameters": req.Parameters,
		"context":    req.Context,
		"type":       req.Type,
	}
	if err := p.manager.Queue().Enqueue(ctx, id, data, priority); err != nil {
		p.store.delete(id)
		return "", err
	}
	return id, nil
}

// ProcessRequest bypasses the queue and dispatches synchronously.
func (p *Processor) ProcessRequest(ctx context.Context, req *model.AIRequest) (*model.AIResponse, error) {
	if err := p.validate(req); err != nil {
		return nil, err
	}
	return p.providers.SendRequest(ctx, req)
}

// GetRequestStatus returns the record for id, or ErrNotFound.
func (p *Processor) GetRequestStatus(id string) (*model.RequestRecord, error) {
	rec, ok := p.store.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// UpdateRequestStatus upserts the record for id. Creation-on-missing is
// logged at warn level so the papering-over behavior spec.md §9 flags is
// visible in telemetry rather than silent.
func (p *Processor) UpdateRequestStatus(id string, status model.Status, metadata map[string]interface{}) *model.RequestRecord {
	rec, created := p.store.upsert(id, status, metadata)
	if created {
		logger.Warn().Str("request_id", id).Msg("updateRequestStatus created a missing record")
	}
	return rec
}

// CancelRequest applies spec.md §4.D's cancellation semantics.
func (p *Processor) CancelRequest(id string) (*CancelResult, error) {
	rec, ok := p.store.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	switch rec.Status {
	case model.StatusPending:
		updated, _ := p.store.upsert(id, model.StatusCancelled, nil)
		return &CancelResult{Success: true, Status: updated.Status}, nil
	case model.StatusProcessing:
		return &CancelResult{
			Success: false,
			Status:  rec.Status,
			Reason:  "Request is currently being processed and cannot be cancelled",
		}, nil
	default:
		// Terminal states are idempotent per SPEC_FULL.md's resolution of
		// the §9 ambiguity: re-cancelling reports existing status, not an
		// error.
		return &CancelResult{Success: true, Status: rec.Status}, nil
	}
}

// Dispatch satisfies the Worker's narrow Dispatcher surface: it routes
// a queue item's reconstructed request through the Provider Manager.
// Defined here (rather than imported from the worker package) so the
// processor<->worker dependency stays one-directional — the worker
// package is unaware a processor.Processor exists.
func (p *Processor) Dispatch(ctx context.Context, req *model.AIRequest) (*model.AIResponse, error) {
	return p.providers.SendRequest(ctx, req)
}

// ReportStatus satisfies the Worker's Dispatcher surface for status
// updates; it delegates to UpdateRequestStatus and logs reporting
// failures without propagating them, per spec.md §4.E step 6.
func (p *Processor) ReportStatus(ctx context.Context, requestID string, status model.Status, metadata map[string]interface{}) {
	p.UpdateRequestStatus(requestID, status, metadata)
}

// GetHealthStatus composes queue health and per-provider validateConfig
// results, spec.md §4.D.
func (p *Processor) GetHealthStatus(ctx context.Context) model.HealthSnapshot {
	mgrHealth := p.manager.Health(ctx)

	providersHealth := make(map[string]provider.HealthCheckResult)
	allProvidersHealthy := true
	for _, name := range p.providers.Names() {
		pr, err := p.providers.GetProvider(name)
		healthy := err == nil && pr.ValidateConfig()
		if !healthy {
			allProvidersHealthy = false
		}
		providersHealth[name] = provider.HealthCheckResult{Name: name, IsHealthy: healthy}
	}

	svcProviders := make(map[string]model.ProviderHealth, len(providersHealth))
	for name, res := range providersHealth {
		svcProviders[name] = model.ProviderHealth{IsHealthy: res.IsHealthy}
	}

	running := p.IsRunning()
	return model.HealthSnapshot{
		IsRunning: running,
		IsHealthy: running && mgrHealth.IsHealthy && allProvidersHealthy,
		Services: model.HealthServices{
			QueueManager: mgrHealth,
			Providers:    svcProviders,
		},
		Metrics: model.HealthMetrics{
			QueueDepth: mgrHealth.QueueMetrics.QueueDepth,
			TotalDepth: mgrHealth.QueueMetrics.TotalDepth,
		},
	}
}
