package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"go-metrics-pipeline/internal/model"
)

// Config is the root configuration of the metrics API.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Executor ExecutorConfig `yaml:"executor"`
	Publish  PublishConfig  `yaml:"publish"`
	API      APIConfig      `yaml:"api"`
}

// ExecutorConfig configures transformation execution.
type ExecutorConfig struct {
	// BatchSize caps the rows of each output record; 0 collects everything
	// into one record.
	BatchSize int `yaml:"batch_size"`
}

// PublishConfig configures where results are written.
type PublishConfig struct {
	Backend   model.Backend     `yaml:"backend"`
	OutputDir string            `yaml:"output_dir"`
	Retry     model.RetryConfig `yaml:"retry"`
	S3        S3Config          `yaml:"s3"`
}

// S3Config configures the S3 backend. The backend is disabled while
// Endpoint or Bucket is empty.
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Insecure        bool   `yaml:"insecure"`
}

func (c S3Config) Enabled() bool { return c.Endpoint != "" && c.Bucket != "" }

// APIConfig configures the HTTP server.
type APIConfig struct {
	ListenAddress string        `yaml:"listen_address"`
	DBPath        string        `yaml:"db_path"`
	RunTimeout    time.Duration `yaml:"run_timeout"`
}

func (c *ExecutorConfig) RegisterFlags(f *flag.FlagSet) {
	f.IntVar(&c.BatchSize, "executor.batch-size", 8192, "Maximum rows per output record (0 for unbounded).")
}

func (c *PublishConfig) RegisterFlags(f *flag.FlagSet) {
	f.TextVar(&c.Backend, "publish.backend", model.Stdout, "Default backend: stdout, local_disk or s3.")
	f.StringVar(&c.OutputDir, "publish.output-dir", "exports", "Directory of the local_disk backend.")
	f.IntVar(&c.Retry.MaxRetries, "publish.retry.max-retries", 3, "Retries of a failed publish.")
	f.DurationVar(&c.Retry.InitialDelay, "publish.retry.initial-delay", 200*time.Millisecond, "Lower bound of the first retry delay; each retry doubles it.")
	f.DurationVar(&c.Retry.MaxDelay, "publish.retry.max-delay", 5*time.Second, "Upper bound of the retry delay.")
	c.S3.RegisterFlags(f)
}

func (c *S3Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.Endpoint, "publish.s3.endpoint", "", "S3 endpoint (host:port).")
	f.StringVar(&c.Bucket, "publish.s3.bucket", "", "S3 bucket.")
	f.StringVar(&c.Prefix, "publish.s3.prefix", "metrics", "Key prefix of published objects.")
	f.StringVar(&c.Region, "publish.s3.region", "", "S3 region.")
	f.StringVar(&c.AccessKeyID, "publish.s3.access-key-id", "", "S3 access key ID.")
	f.StringVar(&c.SecretAccessKey, "publish.s3.secret-access-key", "", "S3 secret access key.")
	f.BoolVar(&c.Insecure, "publish.s3.insecure", false, "Use plain HTTP to reach S3.")
}

func (c *APIConfig) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.ListenAddress, "api.listen-address", ":8080", "HTTP listen address.")
	f.StringVar(&c.DBPath, "api.db-path", "metrics.db", "SQLite file runs are stored in.")
	f.DurationVar(&c.RunTimeout, "api.run-timeout", 5*time.Minute, "Deadline of one metric run.")
}

// RegisterFlags registers every option and sets the defaults.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.LogLevel, "log.level", "info", "Log level: debug, info, warn or error.")
	c.Executor.RegisterFlags(f)
	c.Publish.RegisterFlags(f)
	c.API.RegisterFlags(f)
}

// Validate checks values the flags cannot constrain.
func (c *Config) Validate() error {
	if c.Executor.BatchSize < 0 {
		return errors.New("executor.batch_size must not be negative")
	}
	if c.Publish.Retry.MaxRetries < 0 {
		return errors.New("publish.retry.max_retries must not be negative")
	}
	if c.Publish.Backend == model.S3 && !c.Publish.S3.Enabled() {
		return errors.Wrap(model.ErrUnsupportedBackend, "s3 is the default backend but publish.s3 is not configured")
	}
	return nil
}

// Load builds a Config from defaults, then the YAML file at path (if any),
// then args. Flags given in args win over the file.
func Load(path string, args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("metrics-api", flag.ContinueOnError)
	cfg.RegisterFlags(fs)

	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FileFlag names the command line flag that points at the YAML file.
const FileFlag = "config.file"

// LoadArgs is Load with the file path taken from -config.file in args.
func LoadArgs(args []string) (*Config, error) {
	path, rest, err := splitFileFlag(args)
	if err != nil {
		return nil, err
	}
	return Load(path, rest)
}

func splitFileFlag(args []string) (string, []string, error) {
	var (
		path string
		rest = make([]string, 0, len(args))
	)
	for i := 0; i < len(args); i++ {
		name, value, hasValue := strings.Cut(strings.TrimLeft(args[i], "-"), "=")
		if !strings.HasPrefix(args[i], "-") || name != FileFlag {
			rest = append(rest, args[i])
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return "", nil, errors.Errorf("flag needs an argument: -%s", FileFlag)
			}
			i++
			value = args[i]
		}
		path = value
	}
	return path, rest, nil
}
