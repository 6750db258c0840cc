package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFileMatchesHashString(t *testing.T) {
	path := filepath.Join(t.TempDir(), "step.log")
	require.NoError(t, os.WriteFile(path, []byte("build output"), 0o644))

	fileHash, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, HashString("build output"), fileHash)
	assert.Len(t, fileHash, 64)
}

func TestHashFileMissing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
