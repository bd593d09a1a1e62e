package domain

import (
	"context"
)

// BlobStore is durable object storage addressed by key. PublicURL must be a
// pure function of the store's bucket identity and the key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	MakePublic(ctx context.Context, key string) error
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
}

// CodeEncoder renders text into a scannable 2-D barcode image
type CodeEncoder interface {
	Encode(text string) (*EncodedCode, error)
}

// DocumentCompositor produces derived PDFs
type DocumentCompositor interface {
	EmbedOverlay(pdf []byte, overlay []byte) (*DerivedDocument, error)
	ComposeFromImages(images [][]byte, overlay []byte) (*DerivedDocument, error)
}

// MetadataRecorder persists one record per successful pipeline run and
// returns the record ID.
type MetadataRecorder interface {
	RecordUpload(ctx context.Context, record *UploadRecord) (string, error)
}

// UploadRepository is a MetadataRecorder that can also read records back
type UploadRepository interface {
	MetadataRecorder
	FindUpload(ctx context.Context, id string) (*UploadRecord, error)
}

// ArtifactService defines the pipeline entry points.
type ArtifactService interface {
	IngestSingleFile(ctx context.Context, upload RawUpload) (*IngestResult, error)
	IngestImageBatch(ctx context.Context, uploads []RawUpload, allMustBeImages bool) (*IngestResult, error)
	IngestFileBatch(ctx context.Context, uploads []RawUpload) []ItemResult
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}
