package domain

import "errors"

// Domain errors
var (
	ErrEmptyUpload    = errors.New("upload has no content")
	ErrEmptyBatch     = errors.New("batch has no files")
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadNotFound = errors.New("upload record not found")
)
