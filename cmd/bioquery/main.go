// Package main implements the bioquery command line interface: parse a
// unified query, fan it out across the configured biomedical domains
// through the resilience gateway, and print the aggregated envelope as
// JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/tastyGranola/bioquery/adapters"
	"github.com/tastyGranola/bioquery/config"
	"github.com/tastyGranola/bioquery/gateway"
	"github.com/tastyGranola/bioquery/metric"
	"github.com/tastyGranola/bioquery/pkg/cache"
	"github.com/tastyGranola/bioquery/pkg/ratelimit"
	"github.com/tastyGranola/bioquery/router"
)

const (
	Version = "0.1.0"
	appName = "bioquery"
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
		slog.Error("bioquery failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp || (len(cliCfg.Query) == 0 && !cliCfg.Validate) {
		printHelp()
		return nil
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metric.NewMetricsRegistry()

	var metricsServer *metric.Server
	if cliCfg.MetricsPort > 0 {
		metricsServer = metric.NewServer(cliCfg.MetricsPort, "/metrics", registry)
		if err := metricsServer.Start(); err != nil {
			return err
		}
		defer func() { _ = metricsServer.Stop(context.Background()) }()
	}

	gw, err := buildGateway(ctx, cfg, logger, registry)
	if err != nil {
		return err
	}
	defer func() { _ = gw.Close() }()

	r, err := buildRouter(cfg, gw, logger, registry.Metrics)
	if err != nil {
		return err
	}

	agg, err := r.Search(ctx, strings.Join(cliCfg.Query, " "))
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(agg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func buildGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger, registry *metric.MetricsRegistry) (*gateway.Gateway, error) {
	opts := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithMetrics(registry),
	}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter := ratelimit.NewRedisLimiter(rdb, ratelimit.PerMinute(40), logger)
		opts = append(opts, gateway.WithLimiter(limiter))
	}
	if cfg.Persistence.Enabled {
		store, err := cache.OpenPersistentStore(cfg.Persistence.Path, cfg.Cache.StaticTTL.Std())
		if err != nil {
			return nil, err
		}
		opts = append(opts, gateway.WithPersistentStore(store))
	}

	gw, err := gateway.New(ctx, cfg.GatewayConfig(), opts...)
	if err != nil {
		return nil, err
	}
	for _, ep := range cfg.GatewayEndpoints() {
		if err := gw.Configure(ep); err != nil {
			return nil, err
		}
	}
	gw.Freeze()
	return gw, nil
}

func buildRouter(cfg *config.Config, gw *gateway.Gateway, logger *slog.Logger, metrics *metric.Metrics) (*router.Router, error) {
	return router.New(
		[]router.DomainAdapter{
			adapters.NewArticles(gw, logger),
			adapters.NewVariants(gw, logger),
			adapters.NewTrials(gw, logger),
		},
		router.WithSharedFields(adapters.SharedFields()),
		router.WithDeadline(cfg.Router.Deadline.Std()),
		router.WithLogger(logger),
		router.WithMetrics(metrics),
		router.WithEnrichment(router.Enrichment{
			From: adapters.DomainVariants,
			To:   adapters.DomainArticles,
			Key:  "gene",
			Attr: "variant_summary",
		}),
	)
}
