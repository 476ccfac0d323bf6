package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/moodkeeper/internal/flagx"
	"github.com/dmitrijs2005/moodkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	Backend                     string         `json:"backend"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	S3KeyPrefix                 string         `json:"s3_key_prefix"`
	S3PollInterval              timex.Duration `json:"s3_poll_interval"`
	LogLevel                    string         `json:"log_level"`
	LogFormat                   string         `json:"log_format"`
}

// parseJson loads configuration values from the JSON file named by the -c
// or -config flag. Keys absent from the file keep their current value. If
// the file cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{
		EndpointAddrGRPC:            config.EndpointAddrGRPC,
		Backend:                     config.Backend,
		DatabaseDSN:                 config.DatabaseDSN,
		SecretKey:                   config.SecretKey,
		AccessTokenValidityDuration: timex.Duration{Duration: config.AccessTokenValidityDuration},
		S3RootUser:                  config.S3RootUser,
		S3RootPassword:              config.S3RootPassword,
		S3Bucket:                    config.S3Bucket,
		S3Region:                    config.S3Region,
		S3BaseEndpoint:              config.S3BaseEndpoint,
		S3KeyPrefix:                 config.S3KeyPrefix,
		S3PollInterval:              timex.Duration{Duration: config.S3PollInterval},
		LogLevel:                    config.LogLevel,
		LogFormat:                   config.LogFormat,
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.Backend = c.Backend
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3KeyPrefix = c.S3KeyPrefix
	config.S3PollInterval = c.S3PollInterval.Duration
	config.LogLevel = c.LogLevel
	config.LogFormat = c.LogFormat
}
