/*
Package storage persists uploaded report files (PDF or image) to disk with a
content checksum and a JSON metadata sidecar. The sidecar is the source of
truth for file metadata; the database index over the same records is a
best-effort convenience.
*/
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Allowed upload types. Extend the map when new report formats are needed.
var allowedMime = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
}

var (
	// ErrUnsupportedType rejects uploads outside the MIME allowlist.
	ErrUnsupportedType = errors.New("unsupported content type")
	// ErrTooLarge rejects uploads over the configured byte cap.
	ErrTooLarge = errors.New("file too large")
	// ErrNotFound means no stored file matches the requested ID.
	ErrNotFound = errors.New("uploaded file not found")
)

// UploadedFileMeta describes one stored upload. Created once at upload time
// and never mutated afterwards.
type UploadedFileMeta struct {
	FileID           string `json:"file_id"`
	StoredFilename   string `json:"stored_filename"`
	OriginalFilename string `json:"original_filename"`
	Mime             string `json:"mime"`
	SizeBytes        int64  `json:"size_bytes"`
	SHA256           string `json:"sha256"`
	UploadedAt       int64  `json:"uploaded_at"`
}

// Store writes uploads into a single directory with a per-file size cap.
type Store struct {
	dir      string
	maxBytes int64
}

// NewStore creates the upload directory if needed and returns the store.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Save streams src to disk under a fresh UUID filename, hashing as it
// writes and enforcing the size cap. Oversized or disallowed uploads leave
// no partial file behind.
func (s *Store) Save(src io.Reader, originalFilename, contentType string) (UploadedFileMeta, error) {
	ext, ok := allowedMime[contentType]
	if !ok {
		return UploadedFileMeta{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	fileID := uuid.New().String()
	storedFilename := fileID + ext
	destPath := filepath.Join(s.dir, storedFilename)

	out, err := os.Create(destPath)
	if err != nil {
		return UploadedFileMeta{}, fmt.Errorf("failed to create %s: %w", destPath, err)
	}

	hasher := sha256.New()
	// LimitReader reads one byte past the cap so we can tell "exactly at
	// the cap" from "over it".
	limited := io.LimitReader(src, s.maxBytes+1)
	size, err := io.Copy(io.MultiWriter(out, hasher), limited)
	closeErr := out.Close()

	if err == nil && closeErr != nil {
		err = closeErr
	}
	if err == nil && size > s.maxBytes {
		err = fmt.Errorf("%w: limit %d bytes", ErrTooLarge, s.maxBytes)
	}
	if err != nil {
		if removeErr := os.Remove(destPath); removeErr != nil {
			log.Warn().Err(removeErr).Str("path", destPath).Msg("Failed to clean up partial upload")
		}
		return UploadedFileMeta{}, err
	}

	meta := UploadedFileMeta{
		FileID:           fileID,
		StoredFilename:   storedFilename,
		OriginalFilename: originalFilename,
		Mime:             contentType,
		SizeBytes:        size,
		SHA256:           hex.EncodeToString(hasher.Sum(nil)),
		UploadedAt:       time.Now().Unix(),
	}

	if err := s.writeSidecar(destPath, meta); err != nil {
		return UploadedFileMeta{}, err
	}
	return meta, nil
}

// writeSidecar drops a <stored>.json next to the file for quick lookups
// without any database.
func (s *Store) writeSidecar(destPath string, meta UploadedFileMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal upload metadata: %w", err)
	}
	if err := os.WriteFile(destPath+".json", data, 0o644); err != nil {
		return fmt.Errorf("failed to write upload sidecar: %w", err)
	}
	return nil
}

// LoadMeta reads the sidecar metadata for a file ID. Returns ErrNotFound
// when no stored file matches.
func (s *Store) LoadMeta(fileID string) (UploadedFileMeta, error) {
	// The extension is unknown until the sidecar is found, so probe the
	// allowlisted extensions.
	for _, ext := range allowedMime {
		sidecar := filepath.Join(s.dir, fileID+ext+".json")
		data, err := os.ReadFile(sidecar)
		if err != nil {
			continue
		}
		var meta UploadedFileMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return UploadedFileMeta{}, fmt.Errorf("corrupt sidecar for %s: %w", fileID, err)
		}
		return meta, nil
	}
	return UploadedFileMeta{}, fmt.Errorf("%w: %s", ErrNotFound, fileID)
}

// PathFor returns the on-disk path of a stored file.
func (s *Store) PathFor(meta UploadedFileMeta) string {
	return filepath.Join(s.dir, meta.StoredFilename)
}
