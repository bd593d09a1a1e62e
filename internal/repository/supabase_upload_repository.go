package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"artifact-stamper/internal/domain"
	apperrors "artifact-stamper/pkg/errors"
)

// SupabaseUploadRepository implements domain.UploadRepository on the
// uploads table through PostgREST
type SupabaseUploadRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

// NewSupabaseUploadRepository creates a new Supabase upload repository
func NewSupabaseUploadRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) *SupabaseUploadRepository {
	return &SupabaseUploadRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

// RecordUpload inserts the record and returns the stored ID
func (r *SupabaseUploadRepository) RecordUpload(ctx context.Context, record *domain.UploadRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := r.supabaseClient.DB()
	if client == nil {
		return "", apperrors.NewRecordError("supabase client not initialized", nil)
	}

	data, _, err := client.From(uploadsTable).
		Insert(toUploadRow(record), false, "", "representation", "").
		Execute()
	if err != nil {
		return "", apperrors.NewRecordError("failed to insert upload record", err)
	}

	var rows []uploadRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", apperrors.NewRecordError("failed to unmarshal response", err)
	}
	if len(rows) == 0 || rows[0].ID == "" {
		return "", apperrors.NewRecordError("insert returned no row", nil)
	}

	r.logger.Debug("Upload recorded in Supabase", "id", rows[0].ID)
	return rows[0].ID, nil
}

// FindUpload loads one record by ID
func (r *SupabaseUploadRepository) FindUpload(ctx context.Context, id string) (*domain.UploadRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client := r.supabaseClient.DB()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}

	data, _, err := client.From(uploadsTable).
		Select("*", "", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}

	var rows []uploadRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrUploadNotFound
	}
	return rows[0].toRecord(), nil
}

var _ domain.UploadRepository = (*SupabaseUploadRepository)(nil)
