package backuperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(KindBackup, "pg_dump failed", nil))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindConnection, "dial target", cause)

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, err.Error(), "dial target")
}

func TestKindOf_Classified(t *testing.T) {
	err := New(KindToolUnavailable, "pg_dump not found in PATH")
	assert.Equal(t, KindToolUnavailable, KindOf(err, KindBackup))
}

func TestKindOf_WrappedDeep(t *testing.T) {
	err := fmt.Errorf("create backup: %w", New(KindTimeout, "mysqldump exceeded 30m"))
	assert.Equal(t, KindTimeout, KindOf(err, KindBackup))
}

func TestKindOf_Fallback(t *testing.T) {
	assert.Equal(t, KindBackup, KindOf(errors.New("boom"), KindBackup))
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("run restore: %w", New(KindLockContention, "target busy"))
	assert.True(t, Is(err, KindLockContention))
	assert.False(t, Is(err, KindRestore))
	assert.False(t, Is(errors.New("plain"), KindLockContention))
}
