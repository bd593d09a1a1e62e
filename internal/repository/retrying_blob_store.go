package repository

import (
	"context"
	"errors"
	"net/http"
	"time"

	"artifact-stamper/internal/domain"
	apperrors "artifact-stamper/pkg/errors"

	backoff "github.com/cenkalti/backoff/v4"
	storage_go "github.com/supabase-community/storage-go"
)

// RetryingBlobStore retries the idempotent writes of a delegate store with
// bounded exponential backoff. Deletes and URL derivation pass through.
type RetryingBlobStore struct {
	delegate     domain.BlobStore
	buildBackoff func() backoff.BackOff
	logger       domain.Logger
}

// NewRetryingBlobStore wraps delegate. A non-positive maxElapsed disables
// retries and returns the delegate itself.
func NewRetryingBlobStore(delegate domain.BlobStore, maxElapsed time.Duration, logger domain.Logger) domain.BlobStore {
	if maxElapsed <= 0 {
		return delegate
	}
	return NewRetryingBlobStoreWith(delegate, func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 100 * time.Millisecond
		b.MaxElapsedTime = maxElapsed
		return b
	}, logger)
}

// NewRetryingBlobStoreWith wraps delegate using a custom backoff policy
func NewRetryingBlobStoreWith(delegate domain.BlobStore, factory func() backoff.BackOff, logger domain.Logger) *RetryingBlobStore {
	return &RetryingBlobStore{delegate: delegate, buildBackoff: factory, logger: logger}
}

func (s *RetryingBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return s.retry(ctx, "put", key, func() error { return s.delegate.Put(ctx, key, data, contentType) })
}

func (s *RetryingBlobStore) MakePublic(ctx context.Context, key string) error {
	return s.retry(ctx, "make_public", key, func() error { return s.delegate.MakePublic(ctx, key) })
}

func (s *RetryingBlobStore) PublicURL(key string) string {
	return s.delegate.PublicURL(key)
}

func (s *RetryingBlobStore) Delete(ctx context.Context, key string) error {
	return s.delegate.Delete(ctx, key)
}

func (s *RetryingBlobStore) retry(ctx context.Context, op, key string, fn func() error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		s.logger.Warn("Blob store operation failed, retrying", "op", op, "key", key, "attempt", attempt, "error", err)
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(s.buildBackoff(), ctx))
}

// retryable reports whether err may succeed on a later attempt. Client errors
// other than timeouts and throttling are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, domain.ErrObjectNotFound) || apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		return false
	}
	var storageErr *storage_go.StorageError
	if errors.As(err, &storageErr) {
		status := storageErr.Status
		if status >= 400 && status < 500 {
			return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
		}
	}
	return true
}

var _ domain.BlobStore = (*RetryingBlobStore)(nil)
