package fs_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavecms/mediastore/pkg/mediastore"
	fsstorage "github.com/wavecms/mediastore/pkg/mediastore/storage/fs"
)

func newBackend(t *testing.T) (*fsstorage.Backend, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := fsstorage.New(fsstorage.Config{BaseDir: dir, URLPrefix: "/media/"})
	require.NoError(t, err)
	return backend, dir
}

func TestNew(t *testing.T) {
	t.Run("RequiresBaseDir", func(t *testing.T) {
		_, err := fsstorage.New(fsstorage.Config{})
		assert.Error(t, err)
	})

	t.Run("CreatesBaseDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "storage")
		_, err := fsstorage.New(fsstorage.Config{BaseDir: dir})
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestFilesystemBackend(t *testing.T) {
	ctx := context.Background()
	backend, dir := newBackend(t)
	key := "media/2026/02/01-093000-cafebabe.pdf"
	data := "pdf bytes"

	t.Run("UploadAndDownload", func(t *testing.T) {
		require.NoError(t, backend.Upload(ctx, key, strings.NewReader(data)))

		reader, err := backend.Download(ctx, key)
		require.NoError(t, err)
		defer reader.Close()

		content, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, data, string(content))
	})

	t.Run("UploadOverwrites", func(t *testing.T) {
		require.NoError(t, backend.Upload(ctx, key, strings.NewReader("updated")))

		reader, err := backend.Download(ctx, key)
		require.NoError(t, err)
		defer reader.Close()

		content, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "updated", string(content))
	})

	t.Run("DownloadMissing", func(t *testing.T) {
		_, err := backend.Download(ctx, "media/none.pdf")
		assert.ErrorIs(t, err, mediastore.ErrBlobNotFound)
	})

	t.Run("URLFor", func(t *testing.T) {
		assert.Equal(t, "/media/"+key, backend.URLFor(key))
	})

	t.Run("RejectsTraversal", func(t *testing.T) {
		err := backend.Upload(ctx, "../outside.txt", strings.NewReader("x"))
		assert.Error(t, err)
	})

	t.Run("DeletePrunesEmptyDirectories", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, key))

		_, err := os.Stat(filepath.Join(dir, "media", "2026", "02"))
		assert.True(t, os.IsNotExist(err))

		// Base directory survives.
		_, err = os.Stat(dir)
		assert.NoError(t, err)
	})

	t.Run("DeleteMissingIsNoOp", func(t *testing.T) {
		assert.NoError(t, backend.Delete(ctx, "media/never-existed.bin"))
	})

	t.Run("Exists", func(t *testing.T) {
		require.NoError(t, backend.Upload(ctx, "probe.bin", strings.NewReader("x")))

		exists, err := backend.Exists(ctx, "probe.bin")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = backend.Exists(ctx, "gone.bin")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}
