package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fortuna/gridiron/internal/api/rest"
	"github.com/fortuna/gridiron/internal/api/websocket"
	"github.com/fortuna/gridiron/internal/pipeline"
	"github.com/fortuna/gridiron/internal/scheduler"
	"github.com/fortuna/gridiron/internal/store/repository"
)

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST and WebSocket servers with the build worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), a)
		},
	}
}

func serve(parent context.Context, a *app) error {
	cfg := a.cfg
	log := a.logger

	if cfg.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required to serve")
	}

	log.Infof("Starting %s v%s", serviceName, serviceVersion)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg.DatabaseDSN, cfg.RedisURL, 30, log)
	if err != nil {
		return err
	}
	defer b.Close()

	runner := pipeline.NewRunner(log, b.sinks()...)
	builds := pipeline.NewService(pipeline.NewRepository(b.db), runner, pipeline.JobSpec{
		Inputs:     cfg.Pipeline.PlaysGlobs,
		OutputPath: cfg.Pipeline.OutputPath,
		Windows:    cfg.Pipeline.FormWindows,
	}, log)

	wsServer := websocket.NewServer(log.WithField("component", "websocket"))
	builds.SetBroadcaster(wsServer)
	builds.SetDataDir(cfg.Pipeline.DataDir)
	builds.Start()
	log.Info("✓ Build worker started")

	if cfg.Pipeline.RebuildHour >= 0 {
		schedCfg := scheduler.DefaultConfig()
		schedCfg.DailyRebuildHour = cfg.Pipeline.RebuildHour
		go scheduler.NewOrchestrator(builds, schedCfg, log).Start(ctx)
	}

	deps := rest.Dependencies{
		Features:      repository.NewFeatureRepository(b.db),
		Builds:        builds,
		OddsCacheFile: cfg.Data.OddsCacheFile,
		TeamStatsFile: cfg.Data.TeamStatsFile,
		HealthChecks:  map[string]rest.HealthChecker{"postgres": b.db},
	}
	if b.redis != nil {
		deps.Cache = b.redis.Forms()
		deps.HealthChecks["redis"] = b.redis
	}

	restServer := rest.NewServer(rest.Options{
		Port:           cfg.Server.RESTPort,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		CORSOrigins:    cfg.Server.CORSOrigins,
	}, deps, log.WithField("component", "rest"))

	errCh := make(chan error, 2)
	go func() {
		if err := restServer.Start(); err != nil {
			errCh <- fmt.Errorf("REST server: %w", err)
		}
	}()
	go func() {
		if err := wsServer.Start(cfg.Server.WSPort); err != nil {
			errCh <- fmt.Errorf("WebSocket server: %w", err)
		}
	}()

	log.Infof("  REST API: http://0.0.0.0:%s", cfg.Server.RESTPort)
	log.Infof("  WebSocket: ws://0.0.0.0:%s/ws/builds", cfg.Server.WSPort)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case runErr = <-errCh:
		log.WithError(runErr).Error("server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("REST server shutdown error")
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("WebSocket server shutdown error")
	}
	if err := builds.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("build worker shutdown error")
	}

	log.Infof("%s stopped", serviceName)
	return runErr
}
