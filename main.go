package main

import (
	"context"
	"flag"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"fraudguard/config"
	"fraudguard/db"
	apphttp "fraudguard/http"
	"fraudguard/logging"
	"fraudguard/ml"
	"fraudguard/monitoring"
	"fraudguard/registry"
	"fraudguard/serving"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Path)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := monitoring.Register(promRegistry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// Prediction log.
	var sink apphttp.PredictionSink = apphttp.NopSink{}
	var source monitoring.PredictionSource
	if cfg.Database.Enabled {
		store, err := db.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open prediction log: %w", err)
		}
		defer store.Close()
		logger.Info("prediction log opened", zap.String("path", cfg.Database.Path))
		sink = store
		source = store
	}

	// Model resolution chain: registry alias, registry stage, local file.
	client := registry.NewClient(cfg.Registry.URI, time.Duration(cfg.Registry.TimeoutSeconds)*time.Second)
	resolver := serving.NewResolver(client, cfg.Model.Name, cfg.Model.Alias, cfg.Model.Stage, cfg.Model.LocalPath, logger)
	cache := serving.NewCache(resolver)

	if cfg.Model.WatchLocal && cfg.Model.LocalPath != "" {
		watcher, err := serving.WatchArtifact(cfg.Model.LocalPath, cache, logger)
		if err != nil {
			logger.Warn("artifact watcher disabled", zap.Error(err))
		} else {
			defer watcher.Close()
		}
	}

	// Live monitor feed.
	hub := monitoring.NewHub(logger)
	go hub.Run(ctx)

	// Periodic drift checks against the training reference, when configured.
	if source != nil && cfg.Monitoring.DriftIntervalMinutes > 0 {
		reference, err := ml.LoadCSV(cfg.Monitoring.ReferencePath, "Class", "Time")
		if err != nil {
			logger.Warn("drift monitoring disabled, reference dataset unavailable",
				zap.String("path", cfg.Monitoring.ReferencePath), zap.Error(err))
		} else {
			job := &monitoring.DriftJob{
				Source:    source,
				Reference: reference,
				Interval:  time.Duration(cfg.Monitoring.DriftIntervalMinutes) * time.Minute,
				Threshold: cfg.Monitoring.DriftThreshold,
				Log:       logger,
			}
			go job.Run(ctx)
		}
	}

	api := apphttp.NewAPI(cache, cfg.Model.Name, cfg.Model.Threshold, sink, source, hub, logger)
	server := apphttp.NewServer(apphttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        time.Duration(cfg.Http.TimeoutSeconds) * time.Second,
		MaxRequestSize: 1 << 20,
		AllowedOrigins: cfg.Http.AllowedOrigins,
	}, api, promRegistry, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != stdhttp.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	cancel()
	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
	return nil
}
