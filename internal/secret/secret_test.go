package secret

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Empty(t *testing.T) {
	value, err := NewResolver().Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "", value)
}

func TestResolve_Env(t *testing.T) {
	t.Setenv("ORDERS_DB_PASSWORD", "hunter2")

	value, err := NewResolver().Resolve("env:ORDERS_DB_PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", value)
}

func TestResolve_EnvMissing(t *testing.T) {
	os.Unsetenv("NO_SUCH_SECRET")

	_, err := NewResolver().Resolve("env:NO_SUCH_SECRET")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NO_SUCH_SECRET")
}

func TestResolve_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pw")
	require.NoError(t, os.WriteFile(path, []byte("s3cret\n"), 0o600))

	value, err := NewResolver().Resolve("file:" + path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", value)
}

func TestResolve_UnknownScheme(t *testing.T) {
	_, err := NewResolver().Resolve("vault:kv/orders")
	require.Error(t, err)
}
