package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cortexflow/scheduler-core/internal/bootstrap"
	"github.com/cortexflow/scheduler-core/internal/config"
	"github.com/cortexflow/scheduler-core/internal/logger"
)

// main runs a standalone Worker Pool process: it drains the same Redis
// Priority Queue an api-server process admits requests onto, so pool
// capacity can scale independently of HTTP admission capacity.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, os.Getenv("ENV") != "production")
	log := logger.Get()
	log.Info().Msg("starting scheduler-core worker pool")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire scheduler core")
	}

	if err := core.StartManagerAndProcessor(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start queue manager and processor")
	}
	defer func() {
		if err := core.Stop(ctx); err != nil {
			log.Error().Err(err).Msg("scheduler core shutdown error")
		}
	}()

	pool, err := core.NewPool(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct worker pool")
	}
	if err := pool.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start worker pool")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker pool")

	stopCtx, stopCancel := context.WithTimeout(ctx, cfg.Manager.GracefulShutdownWait)
	defer stopCancel()
	if err := pool.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("worker pool shutdown error")
	}

	log.Info().Msg("worker pool stopped")
}
