package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"artifact-stamper/internal/domain"
	apperrors "artifact-stamper/pkg/errors"
)

const metaSuffix = ".meta.json"

// objectMeta is the sidecar written next to every local object
type objectMeta struct {
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	StoredAt    time.Time `json:"stored_at"`
}

// LocalBlobStore keeps objects as files under a root directory. Objects are
// public as soon as they exist; the HTTP router serves them under /files/.
type LocalBlobStore struct {
	root    string
	baseURL string
	logger  domain.Logger
}

// NewLocalBlobStore creates the root directory if needed
func NewLocalBlobStore(root, publicBaseURL string, logger domain.Logger) (*LocalBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalBlobStore{
		root:    root,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:  logger,
	}, nil
}

// Put writes data atomically: a temp file is renamed into place so readers
// never see a partial object.
func (s *LocalBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := writeAtomic(path, data); err != nil {
		return apperrors.NewStorageWriteError("write object", err)
	}

	meta, err := json.Marshal(objectMeta{ContentType: contentType, Size: len(data), StoredAt: time.Now().UTC()})
	if err != nil {
		return apperrors.NewInternalError("encode object metadata", err)
	}
	if err := writeAtomic(path+metaSuffix, meta); err != nil {
		return apperrors.NewStorageWriteError("write object metadata", err)
	}

	if err := ctx.Err(); err != nil {
		_ = s.Delete(context.Background(), key)
		return err
	}

	s.logger.Debug("Object written to disk", "key", key, "size", len(data))
	return nil
}

// MakePublic checks the object is in place; local objects need no ACL change
func (s *LocalBlobStore) MakePublic(ctx context.Context, key string) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperrors.NewStorageWriteError("make object public", fmt.Errorf("%s: %w", key, domain.ErrObjectNotFound))
		}
		return apperrors.NewStorageWriteError("make object public", err)
	}
	return nil
}

func (s *LocalBlobStore) PublicURL(key string) string {
	return s.baseURL + "/files/" + url.PathEscape(key)
}

func (s *LocalBlobStore) Delete(ctx context.Context, key string) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	for _, p := range []string{path, path + metaSuffix} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return nil
}

// Open returns the object and its content type for serving
func (s *LocalBlobStore) Open(key string) (*os.File, string, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", domain.ErrObjectNotFound
		}
		return nil, "", err
	}

	contentType := "application/octet-stream"
	if raw, err := os.ReadFile(path + metaSuffix); err == nil {
		var meta objectMeta
		if json.Unmarshal(raw, &meta) == nil && meta.ContentType != "" {
			contentType = meta.ContentType
		}
	}
	return f, contentType, nil
}

// pathFor maps a key to a file directly under root. Keys are flat; anything
// that could escape the root or collide with a sidecar is refused.
func (s *LocalBlobStore) pathFor(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.HasSuffix(key, metaSuffix) {
		return "", apperrors.NewValidationError("invalid object key", key)
	}
	return filepath.Join(s.root, key), nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var _ domain.BlobStore = (*LocalBlobStore)(nil)
