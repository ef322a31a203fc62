package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/backoff"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"go-metrics-pipeline/internal/config"
	"go-metrics-pipeline/internal/model"
	"go-metrics-pipeline/pkg/utils"
)

const csvContentType = "text/csv"

// Sink stores one encoded CSV object and reports where it went.
type Sink interface {
	Put(ctx context.Context, runID, name string, body []byte) (string, error)
}

// WriterSink writes objects to an io.Writer, one after another.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Put(_ context.Context, _, _ string, body []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(body); err != nil {
		return "", errors.Wrap(err, "write to stdout")
	}
	return "-", nil
}

// DiskSink writes objects to <base>/<runID>/<name>.csv.
type DiskSink struct {
	om *utils.OutputManager
}

func NewDiskSink(om *utils.OutputManager) *DiskSink {
	return &DiskSink{om: om}
}

func (s *DiskSink) Put(_ context.Context, runID, name string, body []byte) (string, error) {
	p, err := s.om.GetOutputFilePath(runID, name+".csv")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(p, body, 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", p)
	}
	return p, nil
}

// S3Sink uploads objects to <prefix>/<runID>/<name>.csv in a bucket.
type S3Sink struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Sink builds an S3 client with static credentials. No request is
// made until the first Put.
func NewS3Sink(cfg config.S3Config) (*S3Sink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: !cfg.Insecure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create s3 client")
	}
	return &S3Sink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *S3Sink) Put(ctx context.Context, runID, name string, body []byte) (string, error) {
	key := path.Join(s.prefix, runID, name+".csv")
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: csvContentType,
	})
	if err != nil {
		return "", errors.Wrapf(err, "put s3://%s/%s", s.bucket, key)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// NewSinks builds the sinks cfg enables. Stdout is always available and
// writes to stdout; LocalDisk needs an output directory and S3 an endpoint
// and bucket.
func NewSinks(cfg config.PublishConfig, stdout io.Writer) (map[model.Backend]Sink, error) {
	if stdout == nil {
		stdout = os.Stdout
	}
	sinks := map[model.Backend]Sink{
		model.Stdout: NewWriterSink(stdout),
	}
	if cfg.OutputDir != "" {
		sinks[model.LocalDisk] = NewDiskSink(utils.NewOutputManager(cfg.OutputDir))
	}
	if cfg.S3.Enabled() {
		s3, err := NewS3Sink(cfg.S3)
		if err != nil {
			return nil, err
		}
		sinks[model.S3] = s3
	}
	return sinks, nil
}

// Publisher writes transformation output to a storage backend as CSV.
type Publisher struct {
	sinks   map[model.Backend]Sink
	retry   model.RetryConfig
	logger  log.Logger
	metrics *publisherMetrics
}

func NewPublisher(sinks map[model.Backend]Sink, retry model.RetryConfig, logger log.Logger, reg prometheus.Registerer) *Publisher {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Publisher{
		sinks:   sinks,
		retry:   retry,
		logger:  logger,
		metrics: newPublisherMetrics(reg),
	}
}

// Publish encodes records as one CSV object (header plus rows, nulls as
// empty fields) and hands it to the sink of backend, retrying failed
// writes with jittered exponential backoff. The returned result describes
// the last attempt; err is non-nil whenever result.Success is false.
func (p *Publisher) Publish(ctx context.Context, backend model.Backend, runID, name string, records []arrow.Record) (model.ExportResult, error) {
	result := model.ExportResult{Backend: backend}

	sink, ok := p.sinks[backend]
	if !ok {
		err := errors.Wrapf(model.ErrUnsupportedBackend, "backend %s is not configured", backend)
		return p.finish(result, err), err
	}

	body, rows, err := encodeCSV(records)
	if err != nil {
		return p.finish(result, err), err
	}
	result.RecordCount = rows

	var (
		attempts  int
		published bool
		lastErr   error
	)
	b := backoff.New(ctx, backoff.Config{
		MinBackoff: p.retry.InitialDelay,
		MaxBackoff: p.retry.MaxDelay,
		MaxRetries: p.retry.MaxRetries + 1,
	})
	for b.Ongoing() {
		attempts++
		where, err := sink.Put(ctx, runID, name, body)
		if err == nil {
			p.metrics.attempts.WithLabelValues(backend.String(), "success").Inc()
			result.Path = where
			published = true
			break
		}
		p.metrics.attempts.WithLabelValues(backend.String(), "failure").Inc()
		level.Warn(p.logger).Log("msg", "publish attempt failed", "backend", backend, "run", runID, "attempt", attempts, "err", err)
		lastErr = err
		b.Wait()
	}
	result.Attempts = attempts
	if !published {
		if lastErr == nil {
			lastErr = b.Err()
		}
		err := errors.WithMessagef(lastErr, "publish to %s after %d attempt(s)", backend, attempts)
		return p.finish(result, err), err
	}

	p.metrics.published.WithLabelValues(backend.String()).Add(float64(rows))
	level.Info(p.logger).Log("msg", "metrics published", "backend", backend, "run", runID, "path", result.Path, "rows", rows, "attempts", attempts)
	return p.finish(result, nil), nil
}

func (p *Publisher) finish(result model.ExportResult, err error) model.ExportResult {
	result.Success = err == nil
	if err != nil {
		result.Error = err.Error()
	}
	result.ExportedAt = time.Now().UTC()
	return result
}

func encodeCSV(records []arrow.Record) ([]byte, int, error) {
	if len(records) == 0 {
		return nil, 0, errors.Wrap(model.ErrEmptyInput, "nothing to publish")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf, records[0].Schema(), csv.WithHeader(true), csv.WithNullWriter(""))
	rows := 0
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			return nil, 0, errors.Wrap(err, "encode csv")
		}
		rows += int(rec.NumRows())
	}
	if err := w.Flush(); err != nil {
		return nil, 0, errors.Wrap(err, "flush csv")
	}
	return buf.Bytes(), rows, nil
}
