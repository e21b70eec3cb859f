// Package main provides the entrypoint for the EcoLyon refresh worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecolyon/ecolyon/internal/app"
	"github.com/ecolyon/ecolyon/internal/config"
	"github.com/ecolyon/ecolyon/internal/telemetry"
	"github.com/ecolyon/ecolyon/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "ecolyon-worker"

	cfg, err := config.Load()
	if err != nil {
		log := telemetry.NewLogger(os.Stdout, serviceName, Version, "production")
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log := telemetry.NewLogger(os.Stdout, serviceName, Version, cfg.Environment)
	log.Info().
		Str("build_time", BuildTime).
		Dur("interval", cfg.WorkerInterval).
		Msg("starting EcoLyon worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	services, err := app.Build(ctx, cfg, log, app.Options{Storage: true, Metrics: true})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize services")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	defer func() {
		if closeErr := services.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close services")
		}
	}()

	jobCfg := worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Interval:          cfg.WorkerInterval,
			Timeout:           2 * time.Minute,
			RunOnStart:        true,
			RefreshAirQuality: true,
			RecordSnapshots:   true,
		},
		Logger:         log.With().Str("component", "refresh").Logger(),
		Infrastructure: services.Infrastructure,
		Snapshots:      services.Snapshots,
	}
	if services.AirQuality != nil {
		jobCfg.AirQuality = services.AirQuality
	}
	if services.Cache != nil {
		jobCfg.Cache = services.Cache
	}
	job := worker.NewRefreshJob(jobCfg)

	// Health endpoint for Cloud Run
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "healthy",
			"version": Version,
			"refresh": job.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	go func() {
		_ = worker.NewScheduler(job, log).Start(ctx)
	}()

	if cfg.PubSubSubscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			RefreshJob:       job,
			Logger:           log.With().Str("component", "pubsub").Logger(),
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize pubsub handler")
		} else {
			defer handler.Close()
			go func() {
				if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Msg("pubsub handler stopped")
				}
			}()
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
