package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-metrics-pipeline/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 8192, cfg.Executor.BatchSize)
	require.Equal(t, model.Stdout, cfg.Publish.Backend)
	require.Equal(t, "exports", cfg.Publish.OutputDir)
	require.Equal(t, model.RetryConfig{
		MaxRetries:   3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}, cfg.Publish.Retry)
	require.False(t, cfg.Publish.S3.Enabled())
	require.Equal(t, "metrics", cfg.Publish.S3.Prefix)
	require.Equal(t, ":8080", cfg.API.ListenAddress)
	require.Equal(t, 5*time.Minute, cfg.API.RunTimeout)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileThenFlags(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
executor:
  batch_size: 100
publish:
  backend: local_disk
  retry:
    max_retries: 5
    initial_delay: 1s
  s3:
    endpoint: localhost:9000
    bucket: metrics
api:
  run_timeout: 30s
`)

	cfg, err := Load(path, []string{"-executor.batch-size=10", "-api.listen-address", ":9090"})
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 10, cfg.Executor.BatchSize)
	require.Equal(t, model.LocalDisk, cfg.Publish.Backend)
	require.Equal(t, 5, cfg.Publish.Retry.MaxRetries)
	require.Equal(t, time.Second, cfg.Publish.Retry.InitialDelay)
	// Unset keys keep their defaults.
	require.Equal(t, 5*time.Second, cfg.Publish.Retry.MaxDelay)
	require.True(t, cfg.Publish.S3.Enabled())
	require.Equal(t, 30*time.Second, cfg.API.RunTimeout)
	require.Equal(t, ":9090", cfg.API.ListenAddress)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)

	_, err = Load(writeConfig(t, "executor: [1, 2"), nil)
	require.Error(t, err)

	_, err = Load(writeConfig(t, "publish:\n  backend: ftp\n"), nil)
	require.True(t, errors.Is(err, model.ErrUnsupportedBackend), "got %v", err)

	_, err = Load("", []string{"-no-such-flag"})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, tc := range map[string]struct {
		args    []string
		wantErr error
	}{
		"negative batch size": {args: []string{"-executor.batch-size=-1"}},
		"negative retries":    {args: []string{"-publish.retry.max-retries=-2"}},
		"s3 without endpoint": {args: []string{"-publish.backend=s3"}, wantErr: model.ErrUnsupportedBackend},
		"s3 without bucket":   {args: []string{"-publish.backend=s3", "-publish.s3.endpoint=localhost:9000"}, wantErr: model.ErrUnsupportedBackend},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load("", tc.args)
			require.Error(t, err)
			if tc.wantErr != nil {
				require.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			}
		})
	}

	cfg, err := Load("", []string{"-publish.backend=s3", "-publish.s3.endpoint=localhost:9000", "-publish.s3.bucket=m"})
	require.NoError(t, err)
	require.Equal(t, model.S3, cfg.Publish.Backend)
}

func TestSplitFileFlag(t *testing.T) {
	for name, tc := range map[string]struct {
		args     []string
		wantPath string
		wantRest []string
	}{
		"absent":        {args: []string{"-log.level=debug"}, wantRest: []string{"-log.level=debug"}},
		"equals":        {args: []string{"-config.file=a.yaml", "-log.level=debug"}, wantPath: "a.yaml", wantRest: []string{"-log.level=debug"}},
		"double dash":   {args: []string{"--config.file", "b.yaml"}, wantPath: "b.yaml", wantRest: []string{}},
		"separate":      {args: []string{"-log.level", "warn", "-config.file", "c.yaml"}, wantPath: "c.yaml", wantRest: []string{"-log.level", "warn"}},
		"last one wins": {args: []string{"-config.file=a.yaml", "-config.file=d.yaml"}, wantPath: "d.yaml", wantRest: []string{}},
	} {
		t.Run(name, func(t *testing.T) {
			path, rest, err := splitFileFlag(tc.args)
			require.NoError(t, err)
			require.Equal(t, tc.wantPath, path)
			require.Equal(t, tc.wantRest, rest)
		})
	}

	_, _, err := splitFileFlag([]string{"-config.file"})
	require.Error(t, err)
}

func TestLoadArgs(t *testing.T) {
	path := writeConfig(t, "log_level: warn\n")
	cfg, err := LoadArgs([]string{"-config.file=" + path, "-executor.batch-size=1"})
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, 1, cfg.Executor.BatchSize)
}
