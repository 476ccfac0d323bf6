package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable, e.g. MOODKEEPER_DB_PATH or
// MOODKEEPER_S3_BUCKET.
const EnvPrefix = "MOODKEEPER"

// parseEnv overlays cfg with the variables that are set; unset ones keep
// the current value.
func parseEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}
