package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/moodkeeper/internal/timex"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
)

// EnvConfigFile names the config file when --config is not given.
const EnvConfigFile = "MOODKEEPER_CONFIG"

// fileConfig is the on-disk form of Config. Intervals use timex.Duration so
// files may carry "15m" as well as integer nanoseconds.
type fileConfig struct {
	DBPath      string       `json:"db_path" toml:"db_path"`
	RemoteKind  string       `json:"remote_kind" toml:"remote_kind"`
	RemoteAddr  string       `json:"remote_addr" toml:"remote_addr"`
	PostgresDSN string       `json:"postgres_dsn" toml:"postgres_dsn"`
	S3          fileS3Config `json:"s3" toml:"s3"`

	RemoteTimeout       timex.Duration `json:"remote_timeout" toml:"remote_timeout"`
	SyncInterval        timex.Duration `json:"sync_interval" toml:"sync_interval"`
	BatchSize           int            `json:"batch_size" toml:"batch_size"`
	RetryInitialBackoff timex.Duration `json:"retry_initial_backoff" toml:"retry_initial_backoff"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval" toml:"online_check_interval"`

	LogLevel  string `json:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" toml:"log_format"`
	LogFile   string `json:"log_file" toml:"log_file"`
}

type fileS3Config struct {
	Bucket       string         `json:"bucket" toml:"bucket"`
	Region       string         `json:"region" toml:"region"`
	Endpoint     string         `json:"endpoint" toml:"endpoint"`
	AccessKey    string         `json:"access_key" toml:"access_key"`
	SecretKey    string         `json:"secret_key" toml:"secret_key"`
	KeyPrefix    string         `json:"key_prefix" toml:"key_prefix"`
	PollInterval timex.Duration `json:"poll_interval" toml:"poll_interval"`
}

func configFile(fs *pflag.FlagSet) string {
	if fs != nil {
		if f := fs.Lookup(FlagConfig); f != nil && f.Changed {
			return f.Value.String()
		}
	}
	return os.Getenv(EnvConfigFile)
}

// parseFile overlays cfg with the keys present in the file at path. The
// format follows the extension: .toml is TOML, anything else JSON.
func parseFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	fc := toFile(cfg)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	fromFile(cfg, fc)
	return nil
}

func toFile(c *Config) fileConfig {
	return fileConfig{
		DBPath:      c.DBPath,
		RemoteKind:  c.RemoteKind,
		RemoteAddr:  c.RemoteAddr,
		PostgresDSN: c.PostgresDSN,
		S3: fileS3Config{
			Bucket:       c.S3.Bucket,
			Region:       c.S3.Region,
			Endpoint:     c.S3.Endpoint,
			AccessKey:    c.S3.AccessKey,
			SecretKey:    c.S3.SecretKey,
			KeyPrefix:    c.S3.KeyPrefix,
			PollInterval: timex.Duration{Duration: c.S3.PollInterval},
		},
		RemoteTimeout:       timex.Duration{Duration: c.RemoteTimeout},
		SyncInterval:        timex.Duration{Duration: c.SyncInterval},
		BatchSize:           c.BatchSize,
		RetryInitialBackoff: timex.Duration{Duration: c.RetryInitialBackoff},
		OnlineCheckInterval: timex.Duration{Duration: c.OnlineCheckInterval},
		LogLevel:            c.LogLevel,
		LogFormat:           c.LogFormat,
		LogFile:             c.LogFile,
	}
}

func fromFile(c *Config, fc fileConfig) {
	c.DBPath = fc.DBPath
	c.RemoteKind = fc.RemoteKind
	c.RemoteAddr = fc.RemoteAddr
	c.PostgresDSN = fc.PostgresDSN
	c.S3 = S3Config{
		Bucket:       fc.S3.Bucket,
		Region:       fc.S3.Region,
		Endpoint:     fc.S3.Endpoint,
		AccessKey:    fc.S3.AccessKey,
		SecretKey:    fc.S3.SecretKey,
		KeyPrefix:    fc.S3.KeyPrefix,
		PollInterval: fc.S3.PollInterval.Duration,
	}
	c.RemoteTimeout = fc.RemoteTimeout.Duration
	c.SyncInterval = fc.SyncInterval.Duration
	c.BatchSize = fc.BatchSize
	c.RetryInitialBackoff = fc.RetryInitialBackoff.Duration
	c.OnlineCheckInterval = fc.OnlineCheckInterval.Duration
	c.LogLevel = fc.LogLevel
	c.LogFormat = fc.LogFormat
	c.LogFile = fc.LogFile
}
