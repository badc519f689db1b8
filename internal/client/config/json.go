package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// duration lets JSON specify intervals either as strings like "3s" or as
// integer nanoseconds.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration value %s", string(b))
	}
}

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Values are
// copied into the runtime Config after parsing.
type JsonConfig struct {
	ServerEndpointAddr string   `json:"server_endpoint_addr"`
	CacheDSN           string   `json:"cache_dsn"`
	UploadWorkers      int      `json:"upload_workers"`
	UploadMaxAttempts  int      `json:"upload_max_attempts"`
	UploadRetryBase    duration `json:"upload_retry_base"`
	RequestTimeout     duration `json:"request_timeout"`
	S3Endpoint         string   `json:"s3_endpoint"`
	S3Region           string   `json:"s3_region"`
	S3Bucket           string   `json:"s3_bucket"`
	S3AccessKey        string   `json:"s3_access_key"`
	S3SecretKey        string   `json:"s3_secret_key"`
	S3KeyPrefix        string   `json:"s3_key_prefix"`
}

// parseJson overlays cfg with values loaded from a JSON file. The file path
// comes from the -c/-config flags; when neither is present no JSON is loaded.
// Zero-valued JSON fields leave the existing setting untouched, so a partial
// file only overrides what it names.
func parseJson(cfg *Config) {
	jsonConfigFile := jsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.CacheDSN != "" {
		cfg.CacheDSN = jc.CacheDSN
	}
	if jc.UploadWorkers > 0 {
		cfg.UploadWorkers = jc.UploadWorkers
	}
	if jc.UploadMaxAttempts > 0 {
		cfg.UploadMaxAttempts = jc.UploadMaxAttempts
	}
	if jc.UploadRetryBase.Duration > 0 {
		cfg.UploadRetryBase = jc.UploadRetryBase.Duration
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.S3Endpoint != "" {
		cfg.S3Endpoint = jc.S3Endpoint
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
	if jc.S3AccessKey != "" {
		cfg.S3AccessKey = jc.S3AccessKey
	}
	if jc.S3SecretKey != "" {
		cfg.S3SecretKey = jc.S3SecretKey
	}
	if jc.S3KeyPrefix != "" {
		cfg.S3KeyPrefix = jc.S3KeyPrefix
	}
}
