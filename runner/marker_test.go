package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "fail-marker")
	m := NewFailMarker(path)

	assert.Equal(t, path, m.Path())
	assert.Equal(t, FailMarkerEnvVar+"="+path, m.Env())
	assert.False(t, m.IsMarked())
	require.NoError(t, m.Reset(), "resetting a missing marker is fine")

	require.NoError(t, m.Mark("Tests.Admin"))
	assert.True(t, m.IsMarked())
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Tests.Admin\n", string(content))

	require.NoError(t, m.Reset())
	assert.False(t, m.IsMarked())
}

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(8)
	_, err := b.Write([]byte("0123"))
	require.NoError(t, err)
	assert.Equal(t, "0123", b.String())
	assert.False(t, b.Truncated())

	n, err := b.Write([]byte("456789ab"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, "456789ab", b.String())
	assert.True(t, b.Truncated())
}
