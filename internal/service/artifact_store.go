package service

import (
	"context"
	"errors"
	"fmt"

	"artifact-stamper/internal/domain"
	apperrors "artifact-stamper/pkg/errors"
)

// ArtifactStore layers the publish-after-write sequence and the
// reserve/commit protocol over a BlobStore.
type ArtifactStore struct {
	blobs    domain.BlobStore
	observer PipelineObserver
}

func NewArtifactStore(blobs domain.BlobStore, observer PipelineObserver) *ArtifactStore {
	if observer == nil {
		observer = nopObserver{}
	}
	return &ArtifactStore{blobs: blobs, observer: observer}
}

// Store writes data under key and makes it publicly readable. written
// reports whether the bytes reached the store, which stays true when only
// the publish step failed.
func (s *ArtifactStore) Store(ctx context.Context, key string, data []byte, contentType string) (obj *domain.StoredObject, written bool, err error) {
	if err := s.blobs.Put(ctx, key, data, contentType); err != nil {
		return nil, false, storageError("write object", key, err)
	}
	s.observer.RecordStored(len(data))

	if err := s.blobs.MakePublic(ctx, key); err != nil {
		return nil, true, storageError("make object public", key, err)
	}

	return &domain.StoredObject{
		Key:         key,
		PublicURL:   s.blobs.PublicURL(key),
		ContentType: contentType,
	}, true, nil
}

// Reserve fixes the public URL of key before anything is written under it
func (s *ArtifactStore) Reserve(key string) domain.Reservation {
	return domain.Reservation{
		Key:       key,
		PublicURL: s.blobs.PublicURL(key),
	}
}

// Commit stores data under a reservation. The returned object's URL is the
// reserved URL.
func (s *ArtifactStore) Commit(ctx context.Context, reservation domain.Reservation, data []byte, contentType string) (*domain.StoredObject, bool, error) {
	obj, written, err := s.Store(ctx, reservation.Key, data, contentType)
	if err != nil {
		return nil, written, err
	}
	if obj.PublicURL != reservation.PublicURL {
		return nil, written, apperrors.NewInternalError("committed URL differs from reservation",
			fmt.Errorf("reserved %s, got %s", reservation.PublicURL, obj.PublicURL))
	}
	return obj, written, nil
}

// Delete removes key, used for compensating cleanup
func (s *ArtifactStore) Delete(ctx context.Context, key string) error {
	return s.blobs.Delete(ctx, key)
}

func storageError(op, key string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewStorageWriteError(fmt.Sprintf("%s %s", op, key), err)
}
