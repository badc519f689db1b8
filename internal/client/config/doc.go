// Package config loads runtime configuration for the drive CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the backend server
//	-d string   SQLite DSN of the local cache
//	-w int      number of concurrent upload workers
//	-t int      per-request timeout (seconds)
//
// # JSON schema
//
// Durations can be either strings like "500ms" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "https://drive.example.com",
//	  "cache_dsn": "drivesync.db",
//	  "upload_workers": 3,
//	  "upload_retry_base": "500ms",
//	  "s3_bucket": "drive-blobs"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
