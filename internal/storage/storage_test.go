package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, maxBytes int64) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "uploads"), maxBytes)
	require.NoError(t, err)
	return store
}

func TestSaveAndLoadMeta(t *testing.T) {
	store := newTestStore(t, 1024)
	content := "fake pdf bytes"

	meta, err := store.Save(strings.NewReader(content), "report.pdf", "application/pdf")
	require.NoError(t, err)

	assert.NotEmpty(t, meta.FileID)
	assert.Equal(t, meta.FileID+".pdf", meta.StoredFilename)
	assert.Equal(t, "report.pdf", meta.OriginalFilename)
	assert.Equal(t, "application/pdf", meta.Mime)
	assert.Equal(t, int64(len(content)), meta.SizeBytes)

	sum := sha256.Sum256([]byte(content))
	assert.Equal(t, hex.EncodeToString(sum[:]), meta.SHA256)

	stored, err := os.ReadFile(store.PathFor(meta))
	require.NoError(t, err)
	assert.Equal(t, content, string(stored))

	loaded, err := store.LoadMeta(meta.FileID)
	require.NoError(t, err)
	assert.Equal(t, meta, loaded)
}

func TestSaveRejectsUnsupportedType(t *testing.T) {
	store := newTestStore(t, 1024)

	_, err := store.Save(strings.NewReader("gif bytes"), "anim.gif", "image/gif")

	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestSaveEnforcesSizeCap(t *testing.T) {
	store := newTestStore(t, 10)

	_, err := store.Save(strings.NewReader("exactly 10"), "ok.png", "image/png")
	require.NoError(t, err)

	_, err = store.Save(strings.NewReader("eleven chars"), "big.png", "image/png")
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestSaveCleansUpOversizedFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewStore(dir, 4)
	require.NoError(t, err)

	_, err = store.Save(strings.NewReader("way too big"), "big.jpg", "image/jpeg")
	require.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadMetaNotFound(t *testing.T) {
	store := newTestStore(t, 1024)

	_, err := store.LoadMeta("no-such-id")

	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadMetaCorruptSidecar(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewStore(dir, 1024)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-id.pdf.json"), []byte("{broken"), 0o644))

	_, err = store.LoadMeta("bad-id")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
