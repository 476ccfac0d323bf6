package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
)

// S3Config points the s3 remote kind at a bucket.
type S3Config struct {
	Bucket       string        `envconfig:"BUCKET"`
	Region       string        `envconfig:"REGION"`
	Endpoint     string        `envconfig:"ENDPOINT"`
	AccessKey    string        `envconfig:"ACCESS_KEY"`
	SecretKey    string        `envconfig:"SECRET_KEY"`
	KeyPrefix    string        `envconfig:"KEY_PREFIX"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL"`
}

// Config holds runtime settings for the moodkeeper client.
//
// RemoteKind selects the remote store: grpc (moodkeeper server at
// RemoteAddr), postgres (PostgresDSN), s3 (S3) or memory.
type Config struct {
	DBPath      string `envconfig:"DB_PATH"`
	RemoteKind  string `envconfig:"REMOTE_KIND"`
	RemoteAddr  string `envconfig:"REMOTE_ADDR"`
	PostgresDSN string `envconfig:"POSTGRES_DSN"`
	S3          S3Config

	RemoteTimeout       time.Duration `envconfig:"REMOTE_TIMEOUT"`
	SyncInterval        time.Duration `envconfig:"SYNC_INTERVAL"`
	BatchSize           int           `envconfig:"BATCH_SIZE"`
	RetryInitialBackoff time.Duration `envconfig:"RETRY_INITIAL_BACKOFF"`
	OnlineCheckInterval time.Duration `envconfig:"ONLINE_CHECK_INTERVAL"`

	LogLevel  string `envconfig:"LOG_LEVEL"`
	LogFormat string `envconfig:"LOG_FORMAT"`
	LogFile   string `envconfig:"LOG_FILE"`
}

// LoadDefaults populates c with defaults suitable for a local setup.
func (c *Config) LoadDefaults() {
	c.DBPath = defaultDBPath()
	c.RemoteKind = "grpc"
	c.RemoteAddr = "127.0.0.1:50051"
	c.S3.Region = "us-east-1"
	c.S3.KeyPrefix = "moodkeeper/"
	c.S3.PollInterval = 5 * time.Second
	c.RemoteTimeout = 15 * time.Second
	c.SyncInterval = 15 * time.Minute
	c.BatchSize = 20
	c.RetryInitialBackoff = 30 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "console"
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "moodkeeper.db"
	}
	return filepath.Join(home, ".moodkeeper", "moodkeeper.db")
}

// Load builds a Config from defaults, then the config file, then
// MOODKEEPER_* environment variables, then the flags in fs that were set
// explicitly. Later sources take precedence. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path := configFile(fs); path != "" {
		if err := parseFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if fs != nil {
		if err := applyFlags(cfg, fs); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
