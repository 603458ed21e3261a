// pkg/backing/file_test.go

package backing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenReadWrite(t *testing.T) {
	name := filepath.Join(t.TempDir(), "data")
	f, err := Open(name, os.O_RDWR|os.O_CREATE)
	require.NoError(t, err)

	n, err := f.WriteAt([]byte("hello"), 3)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	size, err := f.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)

	buf := make([]byte, 12)
	for i := range buf {
		buf[i] = 0xff
	}
	n, err = ReadFull(f, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte("\x00\x00\x00hello\x00\x00\x00\x00"), buf)

	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x00\x00\x00hello"), data)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"), os.O_RDONLY)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
