package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/orbital-labs/researchflow/internal/activities"
	"github.com/orbital-labs/researchflow/internal/agents"
	"github.com/orbital-labs/researchflow/internal/config"
	"github.com/orbital-labs/researchflow/internal/gatestore"
	"github.com/orbital-labs/researchflow/internal/httpapi"
	_ "github.com/orbital-labs/researchflow/internal/metrics" // Import for side effects
	"github.com/orbital-labs/researchflow/internal/reports"
	"github.com/orbital-labs/researchflow/internal/temporal"
	"github.com/orbital-labs/researchflow/internal/workflows"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Redis mirror for pending clarification gates. Optional: the API falls
	// back to workflow queries when the mirror is unavailable.
	var gates *gatestore.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("Redis unavailable, clarification polls fall back to workflow queries",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			gates = gatestore.New(rdb, 24*time.Hour)
			logger.Info("Gate mirror connected", zap.String("addr", cfg.Redis.Addr))
		}
	}

	archive, err := reports.Open(cfg.Reports.DBPath)
	if err != nil {
		logger.Fatal("Failed to open report archive", zap.String("path", cfg.Reports.DBPath), zap.Error(err))
	}
	defer archive.Close()

	if err := os.MkdirAll(cfg.Reports.OutputDir, 0o755); err != nil {
		logger.Fatal("Failed to create output directory", zap.String("dir", cfg.Reports.OutputDir), zap.Error(err))
	}

	invoker := activities.NewInvoker(cfg.Agents.BaseURL, cfg.Agents.Timeout, logger)
	var renderer *activities.Renderer
	if cfg.Renderer.BaseURL != "" {
		renderer = activities.NewRenderer(cfg.Renderer.BaseURL, cfg.Renderer.Timeout, cfg.Reports.OutputDir)
	}
	acts := activities.NewActivities(invoker, gates, archive, renderer, cfg.Reports.OutputDir, cfg.Orchestration, logger)

	// Prometheus metrics endpoint.
	if cfg.Observability.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Observability.Metrics.Port)
			logger.Info("Metrics server listening", zap.String("address", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("Failed to start metrics server", zap.Error(err))
			}
		}()
	}

	// Wait for the Temporal endpoint, then dial with retry. The worker is
	// useless without it, so this blocks startup.
	host := cfg.Temporal.HostPort
	for i := 1; i <= 60; i++ {
		c, err := net.DialTimeout("tcp", host, 2*time.Second)
		if err == nil {
			_ = c.Close()
			break
		}
		logger.Warn("Waiting for Temporal TCP endpoint", zap.String("host", host), zap.Int("attempt", i))
		time.Sleep(1 * time.Second)
	}
	var tClient client.Client
	for attempt := 1; ; attempt++ {
		tClient, err = client.Dial(client.Options{
			HostPort:  host,
			Namespace: cfg.Temporal.Namespace,
			Logger:    temporal.NewZapAdapter(logger),
		})
		if err == nil {
			break
		}
		delay := time.Duration(attempt)
		if delay > 15 {
			delay = 15
		}
		logger.Warn("Temporal not ready, retrying",
			zap.Int("attempt", attempt), zap.String("host", host),
			zap.Duration("sleep", delay*time.Second), zap.Error(err))
		time.Sleep(delay * time.Second)
	}
	defer tClient.Close()

	wk := worker.New(tClient, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     10,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})
	wk.RegisterWorkflow(workflows.InteractiveResearchWorkflow)
	wk.RegisterActivity(acts)
	for _, role := range agents.All() {
		logger.Debug("Agent role configured",
			zap.String("role", role.Name),
			zap.String("model_tier", role.ModelTier),
			zap.String("schema", role.Schema),
		)
	}

	go func() {
		logger.Info("Temporal worker started", zap.String("queue", cfg.Temporal.TaskQueue))
		if err := wk.Run(worker.InterruptCh()); err != nil {
			logger.Error("Temporal worker exited with error", zap.Error(err))
		}
	}()

	apiHandler := httpapi.NewResearchHandler(tClient, gates, archive, cfg.Temporal.TaskQueue, logger)
	apiServer := httpapi.StartServer(cfg.API.Port, apiHandler, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiServer.Shutdown(shutdownCtx)
	wk.Stop()
}
