package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nutribot/internal/storage"
)

// Queries wraps the hand-written SQL for the upload index.
type Queries struct {
	pool *pgxpool.Pool
}

// New returns a Queries bound to the pool.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

const createUploadFilesTable = `
CREATE TABLE IF NOT EXISTS upload_files (
	file_id           UUID PRIMARY KEY,
	stored_filename   TEXT NOT NULL,
	original_filename TEXT NOT NULL,
	mime              TEXT NOT NULL,
	size_bytes        BIGINT NOT NULL,
	sha256            TEXT NOT NULL,
	uploaded_at       BIGINT NOT NULL
)`

// EnsureSchema creates the upload index table when missing.
func (q *Queries) EnsureSchema(ctx context.Context) error {
	_, err := q.pool.Exec(ctx, createUploadFilesTable)
	return err
}

const insertUploadFile = `
INSERT INTO upload_files (file_id, stored_filename, original_filename, mime, size_bytes, sha256, uploaded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (file_id) DO NOTHING`

// InsertUploadFile records one upload's metadata.
func (q *Queries) InsertUploadFile(ctx context.Context, meta storage.UploadedFileMeta) error {
	_, err := q.pool.Exec(ctx, insertUploadFile,
		meta.FileID,
		meta.StoredFilename,
		meta.OriginalFilename,
		meta.Mime,
		meta.SizeBytes,
		meta.SHA256,
		meta.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to index upload %s: %w", meta.FileID, err)
	}
	return nil
}

const getUploadFile = `
SELECT file_id, stored_filename, original_filename, mime, size_bytes, sha256, uploaded_at
FROM upload_files
WHERE file_id = $1`

// GetUploadFile looks one upload up by ID. Returns storage.ErrNotFound when
// the index has no such row.
func (q *Queries) GetUploadFile(ctx context.Context, fileID string) (storage.UploadedFileMeta, error) {
	var meta storage.UploadedFileMeta
	err := q.pool.QueryRow(ctx, getUploadFile, fileID).Scan(
		&meta.FileID,
		&meta.StoredFilename,
		&meta.OriginalFilename,
		&meta.Mime,
		&meta.SizeBytes,
		&meta.SHA256,
		&meta.UploadedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.UploadedFileMeta{}, fmt.Errorf("%w: %s", storage.ErrNotFound, fileID)
	}
	if err != nil {
		return storage.UploadedFileMeta{}, fmt.Errorf("failed to load upload %s: %w", fileID, err)
	}
	return meta, nil
}
