// Package main implements the grain client entry point: it loads the
// client configuration, starts the runtime against the configured
// gateways, exposes metrics, and shuts down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/muntasirraihan/orleans/client"
	"github.com/muntasirraihan/orleans/config"
	"github.com/muntasirraihan/orleans/metric"
	"github.com/muntasirraihan/orleans/natsclient"
	"github.com/muntasirraihan/orleans/stats"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "grainclient"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Client failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit := parseFlags()
	if shouldExit {
		return nil
	}

	logger := setupLogging(cliCfg.logLevel, cliCfg.logFormat)
	slog.SetDefault(logger)

	cfg, err := config.LoadFile(cliCfg.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cliCfg.metricsPort != 0 {
		cfg.MetricsPort = cliCfg.metricsPort
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []client.Option{client.WithLogger(logger)}

	// Statistics provider: the KV-backed publisher rides its own NATS
	// connection so telemetry survives gateway churn independently.
	var statsNC *natsclient.Client
	if provider, ok := cfg.StatisticsProvider(); ok {
		statsNC, err = natsclient.NewClient(cfg.GatewayURLs[0],
			natsclient.WithClientName(appName+"-stats"))
		if err != nil {
			return fmt.Errorf("statistics client: %w", err)
		}
		if err := statsNC.Connect(ctx); err != nil {
			return fmt.Errorf("statistics connect: %w", err)
		}
		defer statsNC.Close()

		bucket, _ := provider.Properties["bucket"].(string)
		publisher, err := stats.NewKVPublisher(statsNC, bucket, cfg.TableCreationTimeout)
		if err != nil {
			return fmt.Errorf("statistics publisher: %w", err)
		}
		opts = append(opts, client.WithStatisticsPublisher(publisher))
	}

	rt, err := client.NewRuntime(cfg, opts...)
	if err != nil {
		return fmt.Errorf("construct runtime: %w", err)
	}
	defer rt.Dispose()

	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}
	defer rt.Reset()

	var metricsServer *metric.Server
	if cfg.MetricsPort != 0 {
		metricsServer = metric.NewServer(cfg.MetricsPort, "/metrics", rt.MetricsRegistry())
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Warn("Metrics server exited", "error", err)
			}
		}()
		defer func() { _ = metricsServer.Stop() }()
		logger.Info("Metrics exposed", "address", metricsServer.Address())
	}

	addr, err := rt.Identity().Address()
	if err != nil {
		return fmt.Errorf("self address: %w", err)
	}
	logger.Info("Client running",
		"version", Version,
		"deployment", cfg.DeploymentID,
		"self_address", addr.String(),
		"interfaces", rt.TypeCodeMap().Len())

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	return nil
}
