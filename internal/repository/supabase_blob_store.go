package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"artifact-stamper/internal/domain"
	apperrors "artifact-stamper/pkg/errors"

	storage_go "github.com/supabase-community/storage-go"
)

const storageObjectPath = "/storage/v1/object/"

// SupabaseBlobStore stores objects in a Supabase Storage bucket.
//
// Uploads go through a context-aware request of our own; storage-go's
// UploadOrUpdateFile takes no context and rewrites shared transport headers,
// so it is unsafe for concurrent uploads. Bucket management, public URLs and
// deletes use storage-go.
type SupabaseBlobStore struct {
	client     domain.SupabaseClient
	bucket     string
	httpClient *http.Client
	logger     domain.Logger

	mu           sync.Mutex
	bucketPublic bool
}

// NewSupabaseBlobStore creates a blob store for the given bucket. The client
// must be initialized.
func NewSupabaseBlobStore(client domain.SupabaseClient, bucket string, logger domain.Logger) *SupabaseBlobStore {
	return &SupabaseBlobStore{
		client:     client,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logger,
	}
}

// Put uploads data under key, overwriting any existing object
func (s *SupabaseBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	url := s.client.ProjectURL() + storageObjectPath + s.bucket + "/" + key

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return apperrors.NewStorageWriteError("build upload request", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.client.APIKey())
	req.Header.Set("apikey", s.client.APIKey())
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")
	req.Header.Set("cache-control", "max-age=3600")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperrors.NewStorageWriteError("upload object", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return apperrors.NewStorageWriteError("upload object", decodeStorageError(resp))
	}

	s.logger.Debug("Object uploaded to Supabase", "bucket", s.bucket, "key", key, "size", len(data))
	return nil
}

// MakePublic makes the object readable without credentials. Supabase
// visibility is per bucket, so this ensures the bucket is public, creating
// it if missing. Success is cached; a failure is re-checked on the next call.
func (s *SupabaseBlobStore) MakePublic(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bucketPublic {
		return nil
	}

	storage := s.client.DB().Storage
	bucket, err := storage.GetBucket(s.bucket)
	switch {
	case err != nil && isNotFound(err):
		s.logger.Info("Creating public bucket", "bucket", s.bucket)
		if _, err := storage.CreateBucket(s.bucket, storage_go.BucketOptions{Public: true}); err != nil {
			return apperrors.NewStorageWriteError("create public bucket", err)
		}
	case err != nil:
		return apperrors.NewStorageWriteError("inspect bucket", err)
	case !bucket.Public:
		s.logger.Info("Making bucket public", "bucket", s.bucket)
		if _, err := storage.UpdateBucket(s.bucket, storage_go.BucketOptions{Public: true}); err != nil {
			return apperrors.NewStorageWriteError("make bucket public", err)
		}
	}

	s.bucketPublic = true
	return nil
}

// PublicURL derives the public URL of key. It never touches the network.
func (s *SupabaseBlobStore) PublicURL(key string) string {
	return s.client.DB().Storage.GetPublicUrl(s.bucket, key).SignedURL
}

func (s *SupabaseBlobStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.DB().Storage.RemoveFile(s.bucket, []string{key}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func decodeStorageError(resp *http.Response) error {
	storageErr := &storage_go.StorageError{}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = json.Unmarshal(body, storageErr)

	if storageErr.Status == 0 {
		storageErr.Status = resp.StatusCode
	}
	if storageErr.Message == "" {
		storageErr.Message = http.StatusText(resp.StatusCode)
	}
	return storageErr
}

func isNotFound(err error) bool {
	var storageErr *storage_go.StorageError
	if !errors.As(err, &storageErr) {
		return false
	}
	return storageErr.Status == http.StatusNotFound || storageErr.Message == "Bucket not found"
}

var _ domain.BlobStore = (*SupabaseBlobStore)(nil)
