package destination

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
)

func TestLocalStore_PutGetRoundTrip(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	content := []byte("-- dump\nSELECT 1;\n")
	require.NoError(t, store.Put(ctx, "backup_relational-postgres_20260823_120000.sql", bytes.NewReader(content)))

	rc, err := store.Get(ctx, "backup_relational-postgres_20260823_120000.sql")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestLocalStore_Put_NoPartialArtifactVisible(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)

	require.NoError(t, store.Put(context.Background(), "artifact.sql", bytes.NewReader([]byte("x"))))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "artifact.sql", entries[0].Name())
}

func TestLocalStore_Get_NotFound(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	_, err := store.Get(context.Background(), "missing.sql")
	require.Error(t, err)
	assert.True(t, backuperr.Is(err, backuperr.KindDestination))
}

func TestLocalStore_List(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a.sql", bytes.NewReader([]byte("aaa"))))
	require.NoError(t, store.Put(ctx, "b.sql.gz", bytes.NewReader([]byte("bb"))))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o750))

	artifacts, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	names := []string{artifacts[0].Name, artifacts[1].Name}
	assert.Contains(t, names, "a.sql")
	assert.Contains(t, names, "b.sql.gz")
}

func TestLocalStore_List_MissingDirIsEmpty(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "never-created"))

	artifacts, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestLocalStore_Delete(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a.sql", bytes.NewReader([]byte("aaa"))))
	require.NoError(t, store.Delete(ctx, "a.sql"))

	err := store.Delete(ctx, "a.sql")
	require.Error(t, err)
	assert.True(t, backuperr.Is(err, backuperr.KindDestination))
}
