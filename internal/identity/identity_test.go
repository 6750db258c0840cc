package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	s, err := Generate()
	require.NoError(t, err)

	data := []byte("record hash")
	sig := s.Sign(data)

	ok, err := Verify(s.PublicKeyHex(), data, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify(s.PublicKeyHex(), []byte("other data"), sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pubPath := filepath.Join(dir, "runner.pub")
	privPath := filepath.Join(dir, "runner.priv")

	s, err := Generate()
	require.NoError(t, err)
	require.NoError(t, s.Save(pubPath, privPath))

	loaded, err := Load(pubPath, privPath)
	require.NoError(t, err)
	assert.Equal(t, s.PublicKeyHex(), loaded.PublicKeyHex())

	// signatures from the loaded key verify against the original public key
	sig := loaded.Sign([]byte("data"))
	ok, err := Verify(s.PublicKeyHex(), []byte("data"), sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoadOrGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")

	first, err := LoadOrGenerate(dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "runner.pub"))
	assert.FileExists(t, filepath.Join(dir, "runner.priv"))

	second, err := LoadOrGenerate(dir)
	require.NoError(t, err)
	assert.Equal(t, first.PublicKeyHex(), second.PublicKeyHex())
}

func TestLoadRejectsBadKey(t *testing.T) {
	dir := t.TempDir()
	pubPath := filepath.Join(dir, "runner.pub")
	privPath := filepath.Join(dir, "runner.priv")
	require.NoError(t, os.WriteFile(pubPath, []byte("not-hex"), 0o600))
	require.NoError(t, os.WriteFile(privPath, []byte("abcd"), 0o600))

	_, err := Load(pubPath, privPath)
	require.Error(t, err)
}
