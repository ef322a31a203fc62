// Command metrics-run computes one built-in metric over a CSV source and
// publishes it without the API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"go-metrics-pipeline/internal/config"
	"go-metrics-pipeline/internal/model"
	"go-metrics-pipeline/internal/pipeline"
	"go-metrics-pipeline/pkg/utils"
)

func main() {
	var (
		cfg    config.Config
		source string
		metric string
		column string
		tags   string
	)
	fs := flag.NewFlagSet("metrics-run", flag.ExitOnError)
	cfg.RegisterFlags(fs)
	fs.StringVar(&source, "source", "", "CSV file path or http(s) URL.")
	fs.StringVar(&metric, "metric", "count_null", "Built-in metric: count_null, count_rows, sum, mean, min or max.")
	fs.StringVar(&column, "column", "", "Column the metric is computed over.")
	fs.StringVar(&tags, "tags", "", "Comma separated tags attached to the metric.")
	_ = fs.Parse(os.Args[1:])

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	if source == "" || column == "" {
		fmt.Fprintln(os.Stderr, "-source and -column are required")
		fs.Usage()
		os.Exit(2)
	}

	logger, err := utils.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, logger, cfg, source, metric, column, splitTags(tags)); err != nil {
		level.Error(logger).Log("msg", "metric run failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger log.Logger, cfg config.Config, source, metric, column string, tags []string) error {
	t, err := pipeline.NewBuiltInMetricsBuilder().ByName(metric, column, tags...)
	if err != nil {
		return err
	}

	batches, err := pipeline.LoadSource(ctx, model.Source{Type: "csv", URL: source}, cfg.Executor.BatchSize)
	if err != nil {
		return err
	}
	defer release(batches)

	out, err := pipeline.NewExecutor(cfg.Executor, logger, nil).Execute(ctx, batches, t)
	if err != nil {
		return err
	}
	defer release(out)

	sinks, err := pipeline.NewSinks(cfg.Publish, os.Stdout)
	if err != nil {
		return err
	}
	publisher := pipeline.NewPublisher(sinks, cfg.Publish.Retry, logger, nil)
	_, err = publisher.Publish(ctx, cfg.Publish.Backend, uuid.New().String(), column+"_"+metric, out)
	return err
}

func release(records []arrow.Record) {
	for _, rec := range records {
		rec.Release()
	}
}

func splitTags(s string) []string {
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
