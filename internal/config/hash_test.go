package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyIntegrity_NoSidecarPasses(t *testing.T) {
	path := writeConfig(t, validConfig)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.NoError(t, VerifyIntegrity(path, data))
}

func TestWriteChecksumThenLoad(t *testing.T) {
	path := writeConfig(t, validConfig)
	require.NoError(t, WriteChecksum(path))

	_, err := Load(path)
	assert.NoError(t, err)
}

func TestVerifyIntegrity_DetectsTampering(t *testing.T) {
	path := writeConfig(t, validConfig)
	require.NoError(t, WriteChecksum(path))

	// Out-of-band edit after the checksum was recorded.
	require.NoError(t, os.WriteFile(path, []byte(validConfig+"\n# edited\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integrity check failed")
}

func TestVerifyIntegrity_CorruptManifest(t *testing.T) {
	path := writeConfig(t, validConfig)
	require.NoError(t, os.WriteFile(path+checksumSuffix, []byte("::::"), 0600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Error(t, VerifyIntegrity(path, data))
}

func TestComputeHash_Deterministic(t *testing.T) {
	a := ComputeHash([]byte("payload"))
	b := ComputeHash([]byte("payload"))
	c := ComputeHash([]byte("payload!"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestWriteChecksum_MissingConfig(t *testing.T) {
	err := WriteChecksum(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
