package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveStepLog(t *testing.T) {
	ls := NewLogStorage(t.TempDir())

	path, err := ls.SaveStepLog("run-1", "amd64-buster", 3, "Build liboqs", "make output\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ls.BaseDir, "run-1", "amd64-buster", "03_Build_liboqs.log"), path)

	data, err := ls.ReadLog(path)
	require.NoError(t, err)
	assert.Equal(t, "make output\n", string(data))
}

func TestSaveStepLogSanitizesNames(t *testing.T) {
	ls := NewLogStorage(t.TempDir())

	path, err := ls.SaveStepLog("run-1", "job", 1, `rm -rf "$HOME" && echo; ../escape`, "out")
	require.NoError(t, err)
	assert.NotContains(t, filepath.Base(path), "$")
	assert.NotContains(t, filepath.Base(path), ";")
	assert.Contains(t, path, filepath.Join(ls.BaseDir, "run-1", "job"))
}

func TestReadLogRejectsOutsidePaths(t *testing.T) {
	ls := NewLogStorage(filepath.Join(t.TempDir(), "logs"))

	_, err := ls.ReadLog("/etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the log directory")

	_, err = ls.ReadLog(filepath.Join(ls.BaseDir, "..", "secret"))
	require.Error(t, err)
}
