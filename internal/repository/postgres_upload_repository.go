package repository

import (
	"context"
	"errors"
	"fmt"

	"artifact-stamper/internal/domain"
	apperrors "artifact-stamper/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresUploadsSchema = `
CREATE TABLE IF NOT EXISTS uploads (
    id            TEXT PRIMARY KEY,
    original_name TEXT NOT NULL,
    original_url  TEXT NOT NULL DEFAULT '',
    derived_url   TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// pgExecutor is the subset of pgxpool.Pool the repository uses
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresUploadRepository implements domain.UploadRepository directly on
// Postgres
type PostgresUploadRepository struct {
	db     pgExecutor
	logger domain.Logger
}

func NewPostgresUploadRepository(db pgExecutor, logger domain.Logger) *PostgresUploadRepository {
	return &PostgresUploadRepository{db: db, logger: logger}
}

// OpenPostgresUploadRepository connects to databaseURL and ensures the
// uploads table exists. The returned pool must be closed by the caller.
func OpenPostgresUploadRepository(ctx context.Context, databaseURL string, logger domain.Logger) (*PostgresUploadRepository, *pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is required for the postgres record backend")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	repo := NewPostgresUploadRepository(pool, logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("Postgres upload repository ready")
	return repo, pool, nil
}

// EnsureSchema creates the uploads table if missing
func (r *PostgresUploadRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, postgresUploadsSchema); err != nil {
		return fmt.Errorf("create uploads table: %w", err)
	}
	return nil
}

func (r *PostgresUploadRepository) RecordUpload(ctx context.Context, record *domain.UploadRecord) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, `
INSERT INTO uploads (id, original_name, original_url, derived_url, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`,
		record.ID, record.OriginalName, record.OriginalURL, record.DerivedURL, record.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return "", apperrors.NewRecordError("failed to insert upload record", err)
	}

	r.logger.Debug("Upload recorded in Postgres", "id", id)
	return id, nil
}

func (r *PostgresUploadRepository) FindUpload(ctx context.Context, id string) (*domain.UploadRecord, error) {
	var row uploadRow
	err := r.db.QueryRow(ctx, `
SELECT id, original_name, original_url, derived_url, created_at
FROM uploads
WHERE id = $1`, id,
	).Scan(&row.ID, &row.OriginalName, &row.OriginalURL, &row.DerivedURL, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query upload %s: %w", id, err)
	}
	return row.toRecord(), nil
}

var _ domain.UploadRepository = (*PostgresUploadRepository)(nil)
