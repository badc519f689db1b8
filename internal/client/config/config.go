package config

import "time"

// Config holds runtime settings for the DriveSync client.
//
// Fields:
//   - ServerEndpointAddr: base URL of the backend REST API.
//   - CacheDSN: SQLite DSN of the local durable cache.
//   - UploadWorkers: number of concurrent upload workers.
//   - UploadMaxAttempts: total attempts per upload, first try included.
//   - UploadRetryBase: base delay of the retry backoff.
//   - RequestTimeout: per-request budget for API calls.
//
// The S3 fields are optional; when S3Bucket is set, file payloads go
// directly to the bucket and only metadata registration hits the API.
type Config struct {
	ServerEndpointAddr string
	CacheDSN           string

	UploadWorkers     int
	UploadMaxAttempts int
	UploadRetryBase   time.Duration
	RequestTimeout    time.Duration

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3KeyPrefix string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.CacheDSN = "drivesync.db"
	c.UploadWorkers = 3
	c.UploadMaxAttempts = 4
	c.UploadRetryBase = 500 * time.Millisecond
	c.RequestTimeout = 30 * time.Second
	c.S3Region = "us-east-1"
	c.S3KeyPrefix = "drive/"
}

// UseS3 reports whether uploads bypass the API and go straight to a bucket.
func (c *Config) UseS3() bool {
	return c.S3Bucket != ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
