// marketsim — a synthetic equity exchange simulator.
//
// Architecture:
//
//	main.go               — entry point: loads config, runs the session, waits for SIGINT/SIGTERM
//	stream/session.go     — order-flow driver: seeds the book, runs the per-second loop, emits L3
//	book/book.go          — limit order book: price-time priority matching, cancels, depth
//	sim/stochastic.go     — regime-switching mid-price process + intraday seasonality
//	agent/                — pluggable traders (market maker, momentum, mean reversion, noise)
//	api/                  — HTTP/WebSocket broadcast of the L3 feed and depth snapshots
//	metrics/              — Prometheus instrumentation served on /metrics
//
// The simulator is deterministic: all randomness funnels through one seeded
// generator, so two runs with the same configuration produce byte-identical
// L3 streams.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"marketsim/internal/agent"
	"marketsim/internal/api"
	"marketsim/internal/config"
	"marketsim/internal/metrics"
	"marketsim/internal/stream"
	"marketsim/pkg/types"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("SIM_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	registry := prometheus.NewRegistry()
	collector := metrics.New(registry)

	session, err := stream.New(
		cfg.Simulation,
		agent.DefaultSet(cfg.Simulation.StartPrice),
		logger,
		collector,
	)
	if err != nil {
		logger.Error("failed to create session", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Start the API server if enabled
	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, session, registry, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("api server failed", "error", err)
			}
		}()
		logger.Info("api server started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	emit := func(msg types.L3Message) {
		if apiServer != nil {
			apiServer.PublishL3(msg)
		}
	}

	logger.Info("simulator started",
		"run_id", session.RunID().String(),
		"seed", cfg.Simulation.Seed,
		"num_days", cfg.Simulation.NumDays,
		"orders_per_tick", cfg.Simulation.OrdersPerTick,
	)

	err = session.Run(ctx, emit)
	switch {
	case err == nil:
		logger.Info("all sessions complete", "messages", session.Seq())
	case errors.Is(err, context.Canceled):
		logger.Info("received shutdown signal", "messages", session.Seq())
	default:
		logger.Error("session failed", "error", err)
	}

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop api server", "error", err)
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
