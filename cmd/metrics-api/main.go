package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"go-metrics-pipeline/internal/api"
	"go-metrics-pipeline/internal/api/handler"
	"go-metrics-pipeline/internal/config"
	"go-metrics-pipeline/internal/pipeline"
	"go-metrics-pipeline/internal/store"
	"go-metrics-pipeline/pkg/router"
	"go-metrics-pipeline/pkg/utils"
)

func main() {
	cfg, err := config.LoadArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	runs, err := store.OpenRunStore(cfg.API.DBPath)
	if err != nil {
		level.Error(logger).Log("msg", "failed to open run store", "path", cfg.API.DBPath, "err", err)
		os.Exit(1)
	}
	defer runs.Close()

	sinks, err := pipeline.NewSinks(cfg.Publish, os.Stdout)
	if err != nil {
		level.Error(logger).Log("msg", "failed to configure publishing", "err", err)
		os.Exit(1)
	}
	executor := pipeline.NewExecutor(cfg.Executor, logger, reg)
	publisher := pipeline.NewPublisher(sinks, cfg.Publish.Retry, logger, reg)
	runner := pipeline.NewRunner(executor, publisher, runs, logger)
	h := handler.New(runs, runner, cfg.Publish.Backend, cfg.API.RunTimeout, logger)

	r := router.New(logger)
	api.RegisterRoutes(r, h, reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.Start(ctx, cfg.API.ListenAddress); err != nil {
		level.Error(logger).Log("msg", "server stopped", "err", err)
	}
	h.Shutdown()
	level.Info(logger).Log("msg", "shutdown complete")
}
