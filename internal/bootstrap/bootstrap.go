// Package bootstrap wires the Queue Manager, Provider Registry/Manager,
// and Request Processor from configuration the same way for every
// scheduler-core binary, so cmd/api-server and cmd/worker share one
// construction path instead of two copies that can drift.
package bootstrap

import (
	"context"

	"github.com/cortexflow/scheduler-core/internal/config"
	"github.com/cortexflow/scheduler-core/internal/manager"
	"github.com/cortexflow/scheduler-core/internal/model"
	"github.com/cortexflow/scheduler-core/internal/processor"
	"github.com/cortexflow/scheduler-core/internal/provider"
	"github.com/cortexflow/scheduler-core/internal/queue"
	"github.com/cortexflow/scheduler-core/internal/worker"
)

// Core bundles the scheduling components every binary needs.
type Core struct {
	Queue     *queue.PriorityQueue
	Registry  *provider.Registry
	Providers *provider.Manager
	Manager   *manager.Manager
	Processor *processor.Processor
}

// placeholderModelLimits stands in until spec.md's per-model cost table
// is sourced from deployment config rather than derived from a model
// name list alone.
func placeholderModelLimits(models []string) map[string]provider.ModelLimits {
	limits := make(map[string]provider.ModelLimits, len(models))
	for _, m := range models {
		limits[m] = provider.ModelLimits{
			MaxOutputTokens: 8192,
			ContextWindow:   200000,
			CostPerInputTok: 0.000003,
			CostPerOutputTk: 0.000015,
		}
	}
	return limits
}

func firstOrEmpty(models []string) string {
	if len(models) == 0 {
		return ""
	}
	return models[0]
}

func buildCandidates(ctx context.Context, cfg *config.Config) []provider.Provider {
	var candidates []provider.Provider
	if cfg.Providers.Anthropic.Enabled {
		candidates = append(candidates, provider.NewAnthropicProvider(provider.AnthropicConfig{
			APIKey:       cfg.Providers.Anthropic.APIKey,
			DefaultModel: firstOrEmpty(cfg.Providers.Anthropic.Models),
			ModelLimits:  placeholderModelLimits(cfg.Providers.Anthropic.Models),
		}))
	}
	if cfg.Providers.Bedrock.Enabled {
		candidates = append(candidates, provider.NewBedrockProvider(ctx, provider.BedrockConfig{
			Region:       cfg.Providers.Bedrock.Region,
			DefaultModel: firstOrEmpty(cfg.Providers.Bedrock.Models),
			ModelLimits:  placeholderModelLimits(cfg.Providers.Bedrock.Models),
		}))
	}
	return candidates
}

// New constructs an unstarted Core from cfg. The caller is responsible
// for Start/Stop ordering (Manager before Processor's dependents, Pool
// last), since that ordering differs between the HTTP-serving and
// pool-only binaries.
func New(ctx context.Context, cfg *config.Config) (*Core, error) {
	q := queue.NewPriorityQueue(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Queue.KeyPrefix)

	registry := provider.NewRegistry(buildCandidates(ctx, cfg))
	providers, err := registry.CreateManager(cfg.Providers.Default, provider.BreakerConfig{
		ConsecutiveFailures: cfg.Providers.CircuitThreshold,
		Timeout:             cfg.Providers.CircuitTimeout,
	})
	if err != nil {
		return nil, err
	}

	var proc *processor.Processor
	reconcile := func(ctx context.Context, requestID string, status model.Status, reason string) {
		proc.UpdateRequestStatus(requestID, status, map[string]interface{}{"reason": reason})
	}

	mgrCfg := manager.Config{
		CleanupInterval:      cfg.Manager.CleanupInterval,
		StaleRequestTimeout:  cfg.Manager.StaleRequestTimeout,
		RetryCheckInterval:   cfg.Manager.RetryCheckInterval,
		RetryDelay:           cfg.Manager.RetryDelay,
		MaxRetries:           cfg.Manager.MaxRetries,
		GracefulShutdownTime: cfg.Manager.GracefulShutdownWait,
	}
	mgr := manager.New(mgrCfg, q, reconcile)
	proc = processor.New(mgr, providers, cfg.Providers.AdmissionRPS, cfg.Providers.AdmissionBurst)

	return &Core{
		Queue:     q,
		Registry:  registry,
		Providers: providers,
		Manager:   mgr,
		Processor: proc,
	}, nil
}

// StartManagerAndProcessor starts the Queue Manager then the Request
// Processor, the order both binaries need before touching the queue.
func (c *Core) StartManagerAndProcessor(ctx context.Context) error {
	if err := c.Manager.Start(ctx); err != nil {
		return err
	}
	return c.Processor.Start(ctx)
}

// Stop tears down the processor then the manager, the reverse of start
// order.
func (c *Core) Stop(ctx context.Context) error {
	if err := c.Processor.Stop(ctx); err != nil {
		return err
	}
	return c.Manager.Stop()
}

// NewPool builds a worker.Pool over this Core's Manager, dispatching
// through this Core's Processor.
func (c *Core) NewPool(cfg *config.Config) (*worker.Pool, error) {
	poolCfg := worker.PoolConfig{
		MaxWorkers:                cfg.Pool.MaxWorkers,
		MinWorkers:                cfg.Pool.MinWorkers,
		QueuePollInterval:         cfg.Pool.QueuePollInterval,
		WorkerHealthCheckInterval: cfg.Pool.WorkerHealthCheckInterval,
		QueueItemsPerWorker:       cfg.Pool.QueueItemsPerWorker,
		WorkerConfig: worker.Config{
			ProcessingTimeout:   cfg.Worker.ProcessingTimeout,
			MaxRetries:          cfg.Worker.MaxRetries,
			HealthCheckInterval: cfg.Worker.HealthCheckInterval,
		},
	}
	return worker.NewPool(poolCfg, c.Manager, c.Processor)
}
