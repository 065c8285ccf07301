package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// All configuration is read from the environment once per accessor call and
// treated as immutable for the life of the process. Key material accessors
// validate shape and fail hard at startup via Validate.

// getEnv returns the environment value for key, or fallback if unset.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer environment value for key, or fallback if
// unset or unparseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration returns the duration environment value for key (Go duration
// syntax, e.g. "15m"), or fallback if unset or unparseable.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// GetListenPort returns the HTTP listen port.
func GetListenPort() string {
	return getEnv("PORT", "8080")
}

// GetDataDir returns the directory holding the local databases.
func GetDataDir() string {
	return getEnv("STREAM_DATA_DIR", "./data")
}

// GetCatalogDBPath returns the full path to the catalog database.
// The catalog database stores series and episode records.
func GetCatalogDBPath() string {
	return filepath.Join(GetDataDir(), "catalog.db")
}

// GetHistoryDBPath returns the full path to the ingestion history database.
// It tracks committed and rolled-back ingestions for operators.
func GetHistoryDBPath() string {
	return filepath.Join(GetDataDir(), "history.db")
}

// GetStorageBackend returns which object store implementation to use,
// "gcs" (default) or "s3".
func GetStorageBackend() string {
	return getEnv("STORAGE_BACKEND", "gcs")
}

// GetGCSBucket returns the GCS bucket holding all video assets.
func GetGCSBucket() string {
	return getEnv("GCS_BUCKET", "run-sources-tuktuki-464514-asia-south1")
}

// GetGCSCredentialsFile returns the path of a service account key file, or
// empty to use application default credentials.
func GetGCSCredentialsFile() string {
	return getEnv("GCS_CREDENTIALS_FILE", "")
}

// GetGCPProject returns the GCP project for the transcoding service.
func GetGCPProject() string {
	return getEnv("GCP_PROJECT", "")
}

// GetGCPLocation returns the GCP location for the transcoding service.
func GetGCPLocation() string {
	return getEnv("GCP_LOCATION", "asia-south1")
}

// GetS3Region returns the AWS region for the S3 backend.
func GetS3Region() string {
	return getEnv("S3_REGION", "us-east-1")
}

// GetS3Bucket returns the S3 bucket for the S3 backend.
func GetS3Bucket() string {
	return getEnv("S3_BUCKET", "")
}

// GetS3AccessKey returns the static access key for the S3 backend.
func GetS3AccessKey() string {
	return getEnv("S3_ACCESS_KEY", "")
}

// GetS3SecretKey returns the static secret key for the S3 backend.
func GetS3SecretKey() string {
	return getEnv("S3_SECRET_KEY", "")
}

// GetEncryptionKey returns the 32-byte key used to encrypt token payloads.
// The value is hex encoded in the environment.
func GetEncryptionKey() ([]byte, error) {
	raw := os.Getenv("ENCRYPTION_KEY")
	if raw == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is not set")
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// GetTokenSigningSecret returns the HMAC secret for the outer token signature.
func GetTokenSigningSecret() ([]byte, error) {
	raw := os.Getenv("TOKEN_SIGNING_SECRET")
	if raw == "" {
		return nil, fmt.Errorf("TOKEN_SIGNING_SECRET is not set")
	}
	if len(raw) < 32 {
		return nil, fmt.Errorf("TOKEN_SIGNING_SECRET must be at least 32 bytes")
	}
	return []byte(raw), nil
}

// GetDeviceIDSalt returns the process-wide salt for device fingerprinting.
func GetDeviceIDSalt() ([]byte, error) {
	raw := os.Getenv("DEVICE_ID_SALT")
	if raw == "" {
		return nil, fmt.Errorf("DEVICE_ID_SALT is not set")
	}
	return []byte(raw), nil
}

// GetSignedReadTTL returns how long signed playback URLs stay valid.
func GetSignedReadTTL() time.Duration {
	return getEnvDuration("SIGNED_READ_TTL", time.Hour)
}

// GetSignedUploadTTL returns how long signed upload URLs stay valid.
func GetSignedUploadTTL() time.Duration {
	return getEnvDuration("SIGNED_UPLOAD_TTL", 15*time.Minute)
}

// GetPlaybackTokenTTL returns the lifetime of issued playback tokens.
func GetPlaybackTokenTTL() time.Duration {
	return getEnvDuration("PLAYBACK_TOKEN_TTL", time.Minute)
}

// GetRateLimitWindow returns the sliding observation window.
func GetRateLimitWindow() time.Duration {
	return getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute)
}

// GetRateLimitMax returns the request ceiling per window.
func GetRateLimitMax() int {
	return getEnvInt("RATE_LIMIT_MAX", 1000)
}

// GetRateLimitBlockFactor returns the block duration as a multiple of the
// observation window. Must stay above 1 so blocks outlast the window.
func GetRateLimitBlockFactor() int {
	if f := getEnvInt("RATE_LIMIT_BLOCK_FACTOR", 2); f > 1 {
		return f
	}
	return 2
}

// GetTranscodePollInterval returns how often the job runner polls the
// transcoding service.
func GetTranscodePollInterval() time.Duration {
	return getEnvDuration("TRANSCODE_POLL_INTERVAL", 5*time.Second)
}

// GetTranscodeTimeout returns the wall-clock ceiling for one transcode job.
func GetTranscodeTimeout() time.Duration {
	return getEnvDuration("TRANSCODE_TIMEOUT", 10*time.Minute)
}

// GetMaxVideosPerRequest returns the most language tracks accepted in one
// ingestion request.
func GetMaxVideosPerRequest() int {
	return getEnvInt("MAX_VIDEOS_PER_REQUEST", 2)
}

// DetachJobsFromCaller reports whether in-flight transcode jobs keep running
// after the requesting client disconnects. Letting jobs finish keeps cleanup
// bookkeeping sound; aborting them saves transcoder cost.
func DetachJobsFromCaller() bool {
	return getEnv("DETACH_JOBS_FROM_CALLER", "true") != "false"
}

// GetLogFile returns the log file path, empty for console-only logging.
func GetLogFile() string {
	return getEnv("STREAM_LOG_FILE", "")
}

// Validate checks that all required configuration is present and well formed.
// Called once at startup so misconfiguration fails the process immediately.
func Validate() error {
	if _, err := GetEncryptionKey(); err != nil {
		return err
	}
	if _, err := GetTokenSigningSecret(); err != nil {
		return err
	}
	if _, err := GetDeviceIDSalt(); err != nil {
		return err
	}
	switch GetStorageBackend() {
	case "gcs":
		if GetGCSBucket() == "" {
			return fmt.Errorf("GCS_BUCKET is not set")
		}
	case "s3":
		if GetS3Bucket() == "" {
			return fmt.Errorf("S3_BUCKET is not set")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", GetStorageBackend())
	}
	return nil
}
