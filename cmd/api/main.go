package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fiat-token-bridge/config"
	httpHandler "fiat-token-bridge/internal/adapter/http/handler"
	"fiat-token-bridge/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("FTB_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("chain", cfg.Chain.Driver).
		Str("payment", cfg.Payment.Driver).
		Msg("Starting fiat-token-bridge")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise")
	}
	defer a.Close()

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Settlement:     a.engine,
		Onboarding:     a.onboarding,
		Reconcile:      a.reconciler,
		Auth:           a.auth,
		Reporting:      a.reporting,
		TokenSvc:       a.tokens,
		RateLimitStore: a.rateLimits,
		AuditSvc:       a.audit,
		Metrics:        a.metrics.Handler(),
		HealthCheckers: a.health,
		Logger:         log,
	})

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		a.reconciler.Run(ctx)
	}()
	if a.endpoints != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			a.endpoints.RunProbe(ctx, cfg.Chain.ProbeInterval)
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	workers.Wait()

	log.Info().Msg("Server exited")
}
