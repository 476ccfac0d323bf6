// Package config loads runtime configuration for the moodkeeper client.
//
// Sources and precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file named by --config/-c or MOODKEEPER_CONFIG. Files
//     ending in .toml are TOML, all others JSON. Keys missing from the file
//     keep their previous value.
//  3. MOODKEEPER_* environment variables (see EnvPrefix).
//  4. Command-line flags given explicitly (see RegisterFlags).
//
// # File schema
//
// Intervals accept strings like "15m" or integer nanoseconds:
//
//	{
//	  "db_path": "/home/me/.moodkeeper/moodkeeper.db",
//	  "remote_kind": "grpc",
//	  "remote_addr": "127.0.0.1:50051",
//	  "sync_interval": "15m",
//	  "s3": {"bucket": "journal", "poll_interval": "5s"}
//	}
package config
