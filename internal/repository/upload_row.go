package repository

import (
	"time"

	"artifact-stamper/internal/domain"
)

const uploadsTable = "uploads"

// uploadRow is the uploads table row as exchanged with PostgREST
type uploadRow struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	OriginalURL  string    `json:"original_url"`
	DerivedURL   string    `json:"derived_url"`
	CreatedAt    time.Time `json:"created_at"`
}

func toUploadRow(record *domain.UploadRecord) uploadRow {
	return uploadRow{
		ID:           record.ID,
		OriginalName: record.OriginalName,
		OriginalURL:  record.OriginalURL,
		DerivedURL:   record.DerivedURL,
		CreatedAt:    record.CreatedAt.UTC(),
	}
}

func (r uploadRow) toRecord() *domain.UploadRecord {
	return &domain.UploadRecord{
		ID:           r.ID,
		OriginalName: r.OriginalName,
		OriginalURL:  r.OriginalURL,
		DerivedURL:   r.DerivedURL,
		CreatedAt:    r.CreatedAt,
	}
}
