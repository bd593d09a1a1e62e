package domain

import (
	"time"
)

// RawUpload is a single file handed to the pipeline by a caller that has
// already parsed the request body. It is consumed once and never persisted.
type RawUpload struct {
	OriginalName string
	MimeType     string
	Bytes        []byte
}

// Size returns the payload length in bytes
func (u RawUpload) Size() int64 {
	return int64(len(u.Bytes))
}

// StoredObject is the result of one blob store write.
// PublicURL always equals BlobStore.PublicURL(Key).
type StoredObject struct {
	Key         string `json:"key"`
	PublicURL   string `json:"public_url"`
	ContentType string `json:"content_type"`
}

// Reservation is a key whose public URL is known before any bytes are
// written under it. Derived documents are only ever stored by committing a
// reservation, so the URL encoded into a document and the URL it is later
// served from cannot diverge.
type Reservation struct {
	Key       string `json:"key"`
	PublicURL string `json:"public_url"`
}

// EncodedCode is a rendered QR code and the URL it carries.
type EncodedCode struct {
	PayloadURL string
	ImageBytes []byte
}

// SourceKind tells how a derived document was produced
type SourceKind string

const (
	SourceKindEmbeddedPDF SourceKind = "embedded-pdf"
	SourceKindComposedPDF SourceKind = "composed-pdf"
)

// DerivedDocument is the generated PDF that carries the code.
type DerivedDocument struct {
	SourceKind SourceKind
	PageCount  int
	Bytes      []byte
}

// UploadRecord links an original upload to its derived document.
type UploadRecord struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	OriginalURL  string    `json:"original_url"`
	DerivedURL   string    `json:"derived_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// IngestResult is returned to callers for a successful pipeline run.
// OriginalURL is empty for image batches, which store no originals.
type IngestResult struct {
	OriginalURL string `json:"original_url,omitempty"`
	DerivedURL  string `json:"derived_url"`
	RecordID    string `json:"record_id"`
	PageCount   int    `json:"page_count"`
}

// ItemStatus is the terminal state of one batch item
type ItemStatus string

const (
	ItemStatusRecorded ItemStatus = "recorded"
	ItemStatusFailed   ItemStatus = "failed"
)

// Failure describes why a pipeline run ended in the FAILED state.
type Failure struct {
	Kind    string `json:"kind"`
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// ItemResult is the per-file outcome of a batch. Exactly one of Result and
// Failure is set, matching Status.
type ItemResult struct {
	Index        int           `json:"index"`
	OriginalName string        `json:"original_name"`
	Status       ItemStatus    `json:"status"`
	Result       *IngestResult `json:"result,omitempty"`
	Failure      *Failure      `json:"failure,omitempty"`
}

// Succeeded reports whether the item reached RECORDED
func (r ItemResult) Succeeded() bool {
	return r.Status == ItemStatusRecorded
}
