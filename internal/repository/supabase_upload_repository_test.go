package repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"artifact-stamper/internal/domain"
	apperrors "artifact-stamper/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUploadRepository(t *testing.T, handler http.HandlerFunc) *SupabaseUploadRepository {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewSupabaseClient(server.URL, "service-key", testLogger(t))
	require.NoError(t, client.Initialize())
	return NewSupabaseUploadRepository(client, testLogger(t))
}

func sampleRecord() *domain.UploadRecord {
	return &domain.UploadRecord{
		ID:           "5b0f1c2e-2f55-4e53-9f0e-6d8b8f1f4a10",
		OriginalName: "report.pdf",
		OriginalURL:  "https://blobs.test/public/artifacts/1700000000000-abcdef012345-report.pdf",
		DerivedURL:   "https://blobs.test/public/artifacts/qr-1700000000000-abcdef012345-report.pdf",
		CreatedAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSupabaseUploadRepository_RecordUpload(t *testing.T) {
	var (
		gotPrefer string
		gotRow    uploadRow
	)
	repo := newTestUploadRepository(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/rest/v1/uploads", r.URL.Path)
		gotPrefer = r.Header.Get("Prefer")

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotRow))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode([]uploadRow{gotRow})
	})

	record := sampleRecord()
	id, err := repo.RecordUpload(context.Background(), record)
	require.NoError(t, err)

	assert.Equal(t, record.ID, id)
	assert.Equal(t, "return=representation", gotPrefer)
	assert.Equal(t, record.OriginalName, gotRow.OriginalName)
	assert.Equal(t, record.DerivedURL, gotRow.DerivedURL)
	assert.True(t, record.CreatedAt.Equal(gotRow.CreatedAt))
}

func TestSupabaseUploadRepository_RecordUploadConflict(t *testing.T) {
	repo := newTestUploadRepository(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint \"uploads_pkey\""}`))
	})

	_, err := repo.RecordUpload(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRecord))
	assert.Contains(t, err.Error(), "23505")
}

func TestSupabaseUploadRepository_RecordUploadEmptyResponse(t *testing.T) {
	repo := newTestUploadRepository(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := repo.RecordUpload(context.Background(), sampleRecord())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRecord))
}

func TestSupabaseUploadRepository_FindUpload(t *testing.T) {
	record := sampleRecord()
	repo := newTestUploadRepository(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		query := r.URL.Query()
		assert.Equal(t, "*", query.Get("select"))

		if query.Get("id") != "eq."+record.ID {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_ = json.NewEncoder(w).Encode([]uploadRow{toUploadRow(record)})
	})

	found, err := repo.FindUpload(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, found.ID)
	assert.Equal(t, record.OriginalURL, found.OriginalURL)
	assert.True(t, record.CreatedAt.Equal(found.CreatedAt))

	_, err = repo.FindUpload(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrUploadNotFound)
}

func TestSupabaseUploadRepository_CanceledContext(t *testing.T) {
	repo := newTestUploadRepository(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := repo.RecordUpload(ctx, sampleRecord())
	assert.ErrorIs(t, err, context.Canceled)
}
