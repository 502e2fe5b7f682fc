package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rrdptools/rrdp-mirror/internal/health"
	"github.com/rrdptools/rrdp-mirror/internal/metrics"
	"github.com/rrdptools/rrdp-mirror/internal/rrdp"
)

func main() {
	// Configuration flags
	notificationURL := flag.String("notification-url", "", "RRDP notification document URL")
	httpAddr := flag.String("http", ":8080", "HTTP server address")
	dbPath := flag.String("db", "rrdp-mirror.db", "SQLite database path")
	timeoutStr := flag.String("timeout", "1m", "Total timeout per HTTP request (e.g. 30s, 1m)")
	intervalStr := flag.String("interval", "1m", "How often to run a fetch cycle (e.g. 30s, 1m)")
	killSwitchAPIKey := flag.String("kill-switch-api-key", "", "API key for kill switch endpoint")
	killRestartAPIKey := flag.String("kill-restart-api-key", "", "API key for restart endpoint")
	flag.Parse()

	if *notificationURL == "" {
		log.Fatalf("No notification URL provided - cannot start")
	}

	// Parse durations
	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid request timeout: %v", err)
	}
	interval, err := time.ParseDuration(*intervalStr)
	if err != nil {
		log.Fatalf("Invalid fetch interval: %v", err)
	}

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := rrdp.NewSqliteStore(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "err", closeErr)
		}
	}()

	// Store API keys if provided
	if *killSwitchAPIKey == "" {
		slog.Error("no kill switch API key provided - cannot start")
		return
	}
	if err := hashAndStoreKey(db, "kill_switch_api_key", *killSwitchAPIKey); err != nil {
		slog.Error("failed to hash kill switch API key", "err", err)
		return
	}

	if *killRestartAPIKey == "" {
		slog.Error("no kill restart API key provided - cannot start")
		return
	}
	if err := hashAndStoreKey(db, "kill_restart_api_key", *killRestartAPIKey); err != nil {
		slog.Error("failed to hash kill restart API key", "err", err)
		return
	}

	// Mirror the effective configuration into the database so the status
	// page and /config report what this process is actually running with.
	for key, value := range map[string]string{
		"notification_url": *notificationURL,
		"request_timeout":  timeout.String(),
		"fetch_interval":   interval.String(),
	} {
		if err := db.SetConfigValue(key, value); err != nil {
			slog.Error("failed to store config value", "key", key, "err", err)
			return
		}
	}
	slog.Info("configured rrdp mirror", "url", *notificationURL, "timeout", timeout, "interval", interval)

	// Assemble the fetch pipeline
	getter := rrdp.NewHTTPGetter(timeout)
	state := rrdp.NewState()
	fetcher := rrdp.NewFetcher(*notificationURL, getter, state)
	reporter := metrics.NewPrometheusReporter()
	service := rrdp.NewService(fetcher, db, reporter, nil)

	// Create health service with root context
	healthService := health.NewService(ctx)

	// Start scheduler for periodic fetch cycles
	scheduler, err := rrdp.NewScheduler(ctx, service, interval)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	scheduler.Start()

	// Register HTTP handlers: status page, health, metrics
	apiServer := rrdp.NewAPIServer(service)
	apiServer.RegisterHandlers()

	healthApi := health.NewApi(healthService, service)
	healthApi.RegisterHandlers()

	reporter.WireUpHttpMetrics()

	// Start HTTP server with cancellation context
	httpServer := &http.Server{
		Addr:    *httpAddr,
		Handler: http.DefaultServeMux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	go func() {
		slog.Info("http server listening", "address", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		slog.Info("received shutdown signal")
	case <-ctx.Done():
		slog.Info("context cancelled")
	}

	slog.Info("shutting down...")

	// Flip /health to unavailable and stop starting new cycles
	healthService.Shutdown()
	cancel()

	// An in-flight cycle is bounded by the request timeout; let the
	// scheduler drain it before the HTTP server goes away.
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "err", err)
	}

	slog.Info("shutdown complete")
}

func hashAndStoreKey(db rrdp.Db, dbKey string, key string) error {
	hashedKey, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.SetCredential(dbKey, string(hashedKey))
}
