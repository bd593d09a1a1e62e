package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"artifact-stamper/internal/domain"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort  string
	LogLevel    string
	MaxFileSize int64

	StorageBackend string
	UploadPath     string
	PublicBaseURL  string
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	RecordBackend string
	DatabaseURL   string
	SQLitePath    string

	PipelineTimeout        time.Duration
	BatchConcurrency       int
	StorageRetryMaxElapsed time.Duration
	QRSize                 int
	QRRecovery             string
	CleanupOnFailure       bool
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	// Cloud Run (and many PaaS) provide the listening port via PORT.
	// Keep SERVER_PORT for local/dev compatibility.
	port := getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080"))
	uploadPath := getEnvOrDefault("UPLOAD_PATH", "./uploads")

	return &AppConfig{
		ServerPort:  port,
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		MaxFileSize: getEnvInt64OrDefault("MAX_FILE_SIZE", 50*1024*1024), // 50MB default

		StorageBackend: strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", "local")),
		UploadPath:     uploadPath,
		PublicBaseURL:  strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		SupabaseURL:    strings.TrimRight(getEnvOrDefault("SUPABASE_URL", ""), "/"),
		SupabaseKey:    getEnvOrDefault("SUPABASE_SERVICE_KEY", getEnvOrDefault("SUPABASE_ANON_KEY", "")),
		SupabaseBucket: getEnvOrDefault("SUPABASE_BUCKET", "artifacts"),

		RecordBackend: strings.ToLower(getEnvOrDefault("RECORD_BACKEND", "sqlite")),
		DatabaseURL:   getEnvOrDefault("DATABASE_URL", ""),
		SQLitePath:    getEnvOrDefault("SQLITE_PATH", uploadPath+"/uploads.db"),

		PipelineTimeout:        getEnvDurationOrDefault("PIPELINE_TIMEOUT", 60*time.Second),
		BatchConcurrency:       int(getEnvInt64OrDefault("BATCH_CONCURRENCY", 4)),
		StorageRetryMaxElapsed: getEnvDurationOrDefault("STORAGE_RETRY_MAX_ELAPSED", 5*time.Second),
		QRSize:                 int(getEnvInt64OrDefault("QR_SIZE", 256)),
		QRRecovery:             strings.ToLower(getEnvOrDefault("QR_RECOVERY", "medium")),
		CleanupOnFailure:       getEnvBoolOrDefault("CLEANUP_ON_FAILURE", false),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetMaxFileSize returns the maximum allowed request body size
func (c *AppConfig) GetMaxFileSize() int64 {
	return c.MaxFileSize
}

// GetStorageBackend returns "local" or "supabase"
func (c *AppConfig) GetStorageBackend() string {
	return c.StorageBackend
}

// GetUploadPath returns the local blob store root
func (c *AppConfig) GetUploadPath() string {
	return c.UploadPath
}

// GetPublicBaseURL returns the base URL local objects are served from
func (c *AppConfig) GetPublicBaseURL() string {
	return c.PublicBaseURL
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetSupabaseBucket returns the storage bucket for artifacts
func (c *AppConfig) GetSupabaseBucket() string {
	return c.SupabaseBucket
}

// GetRecordBackend returns "sqlite", "postgres" or "supabase"
func (c *AppConfig) GetRecordBackend() string {
	return c.RecordBackend
}

// GetDatabaseURL returns the Postgres DSN
func (c *AppConfig) GetDatabaseURL() string {
	return c.DatabaseURL
}

// GetSQLitePath returns the SQLite database file
func (c *AppConfig) GetSQLitePath() string {
	return c.SQLitePath
}

func (c *AppConfig) GetPipelineTimeout() time.Duration {
	return c.PipelineTimeout
}

func (c *AppConfig) GetBatchConcurrency() int {
	return c.BatchConcurrency
}

func (c *AppConfig) GetStorageRetryMaxElapsed() time.Duration {
	return c.StorageRetryMaxElapsed
}

func (c *AppConfig) GetQRSize() int {
	return c.QRSize
}

func (c *AppConfig) GetQRRecovery() string {
	return c.QRRecovery
}

func (c *AppConfig) GetCleanupOnFailure() bool {
	return c.CleanupOnFailure
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
