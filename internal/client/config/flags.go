package config

import (
	"github.com/spf13/pflag"
)

// Flag names.
const (
	FlagConfig        = "config"
	FlagDBPath        = "db"
	FlagRemote        = "remote"
	FlagRemoteAddr    = "addr"
	FlagPostgresDSN   = "postgres-dsn"
	FlagS3Bucket      = "s3-bucket"
	FlagS3Endpoint    = "s3-endpoint"
	FlagRemoteTimeout = "remote-timeout"
	FlagSyncInterval  = "sync-interval"
	FlagBatchSize     = "batch-size"
	FlagLogLevel      = "log-level"
	FlagLogFormat     = "log-format"
	FlagLogFile       = "log-file"
)

// RegisterFlags adds the configuration flags to fs. Defaults shown in help
// are the built-in ones; only flags given on the command line override the
// file and environment.
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP(FlagConfig, "c", "", "path to a JSON or TOML config file (env "+EnvConfigFile+")")
	fs.String(FlagDBPath, d.DBPath, "path to the local database")
	fs.String(FlagRemote, d.RemoteKind, "remote store kind: grpc, postgres, s3 or memory")
	fs.StringP(FlagRemoteAddr, "a", d.RemoteAddr, "address and port of the moodkeeper server")
	fs.String(FlagPostgresDSN, d.PostgresDSN, "Postgres DSN for the postgres remote")
	fs.String(FlagS3Bucket, d.S3.Bucket, "bucket for the s3 remote")
	fs.String(FlagS3Endpoint, d.S3.Endpoint, "custom endpoint for the s3 remote")
	fs.Duration(FlagRemoteTimeout, d.RemoteTimeout, "timeout of a single remote call")
	fs.Duration(FlagSyncInterval, d.SyncInterval, "interval of the periodic background sync")
	fs.Int(FlagBatchSize, d.BatchSize, "operations delivered per sync cycle")
	fs.String(FlagLogLevel, d.LogLevel, "log level: debug, info, warn, error")
	fs.String(FlagLogFormat, d.LogFormat, "log format: console, text or json")
	fs.String(FlagLogFile, d.LogFile, "write logs to a rotated file instead of stderr")
}

func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	strs := map[string]*string{
		FlagDBPath:      &cfg.DBPath,
		FlagRemote:      &cfg.RemoteKind,
		FlagRemoteAddr:  &cfg.RemoteAddr,
		FlagPostgresDSN: &cfg.PostgresDSN,
		FlagS3Bucket:    &cfg.S3.Bucket,
		FlagS3Endpoint:  &cfg.S3.Endpoint,
		FlagLogLevel:    &cfg.LogLevel,
		FlagLogFormat:   &cfg.LogFormat,
		FlagLogFile:     &cfg.LogFile,
	}
	for name, dst := range strs {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if fs.Changed(FlagRemoteTimeout) {
		v, err := fs.GetDuration(FlagRemoteTimeout)
		if err != nil {
			return err
		}
		cfg.RemoteTimeout = v
	}
	if fs.Changed(FlagSyncInterval) {
		v, err := fs.GetDuration(FlagSyncInterval)
		if err != nil {
			return err
		}
		cfg.SyncInterval = v
	}
	if fs.Changed(FlagBatchSize) {
		v, err := fs.GetInt(FlagBatchSize)
		if err != nil {
			return err
		}
		cfg.BatchSize = v
	}
	return nil
}
