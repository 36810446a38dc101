package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cortexflow/scheduler-core/internal/api"
	"github.com/cortexflow/scheduler-core/internal/bootstrap"
	"github.com/cortexflow/scheduler-core/internal/config"
	"github.com/cortexflow/scheduler-core/internal/events"
	"github.com/cortexflow/scheduler-core/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, os.Getenv("ENV") != "production")
	log := logger.Get()
	log.Info().Msg("starting scheduler-core API server")

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
	defer func() {
		if err := pool.Stop(ctx); err != nil {
			log.Error().Err(err).Msg("worker pool shutdown error")
		}
	}()

	publisher := events.NewRedisPubSub(core.Queue.Client())
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	server := api.NewServer(cfg, core.Manager, pool, core.Registry, core.Processor, publisher)
	server.Start(ctx)
	defer server.Stop()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}
