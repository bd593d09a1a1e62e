package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"artifact-stamper/internal/domain"
	apperrors "artifact-stamper/pkg/errors"

	_ "modernc.org/sqlite"
)

const sqliteUploadsSchema = `
CREATE TABLE IF NOT EXISTS uploads (
    id            TEXT PRIMARY KEY,
    original_name TEXT NOT NULL,
    original_url  TEXT NOT NULL DEFAULT '',
    derived_url   TEXT NOT NULL,
    created_at    TEXT NOT NULL
)`

// SQLiteUploadRepository implements domain.UploadRepository on a local
// SQLite file, for running without a database server
type SQLiteUploadRepository struct {
	db     *sql.DB
	logger domain.Logger
}

// NewSQLiteUploadRepository opens (or creates) the database at path
func NewSQLiteUploadRepository(path string, logger domain.Logger) (*SQLiteUploadRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer at a time; concurrent batch items queue here
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		sqliteUploadsSchema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initialize sqlite: %w", err)
		}
	}

	logger.Info("SQLite upload repository ready", "path", path)
	return &SQLiteUploadRepository{db: db, logger: logger}, nil
}

func (r *SQLiteUploadRepository) RecordUpload(ctx context.Context, record *domain.UploadRecord) (string, error) {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO uploads (id, original_name, original_url, derived_url, created_at)
VALUES (?, ?, ?, ?, ?)`,
		record.ID, record.OriginalName, record.OriginalURL, record.DerivedURL,
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", apperrors.NewRecordError("failed to insert upload record", err)
	}

	r.logger.Debug("Upload recorded in SQLite", "id", record.ID)
	return record.ID, nil
}

func (r *SQLiteUploadRepository) FindUpload(ctx context.Context, id string) (*domain.UploadRecord, error) {
	var (
		row       uploadRow
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, `
SELECT id, original_name, original_url, derived_url, created_at
FROM uploads
WHERE id = ?`, id,
	).Scan(&row.ID, &row.OriginalName, &row.OriginalURL, &row.DerivedURL, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query upload %s: %w", id, err)
	}

	row.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at of %s: %w", id, err)
	}
	return row.toRecord(), nil
}

func (r *SQLiteUploadRepository) Close() error {
	return r.db.Close()
}

var _ domain.UploadRepository = (*SQLiteUploadRepository)(nil)
