package domain

import "time"

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetLogLevel() string
	GetMaxFileSize() int64

	GetStorageBackend() string
	GetUploadPath() string
	GetPublicBaseURL() string
	GetSupabaseURL() string
	GetSupabaseKey() string
	GetSupabaseBucket() string

	GetRecordBackend() string
	GetDatabaseURL() string
	GetSQLitePath() string

	GetPipelineTimeout() time.Duration
	GetBatchConcurrency() int
	GetStorageRetryMaxElapsed() time.Duration
	GetQRSize() int
	GetQRRecovery() string
	GetCleanupOnFailure() bool
}
