// pkg/compress/compress_test.go

package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCompress(t *testing.T, c Compressor) {
	src := bytes.Repeat([]byte("tierbuf block "), 300)
	dst := make([]byte, c.CompressBound(len(src)))
	n, err := c.Compress(dst, src)
	require.NoError(t, err, c.Name())

	out := make([]byte, len(src))
	m, err := c.Decompress(out, dst[:n])
	require.NoError(t, err, c.Name())
	assert.Equal(t, len(src), m)
	assert.Equal(t, src, out)
}

func TestCompressors(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		c := NewCompressor(name)
		require.NotNil(t, c, name)
		testCompress(t, c)
	}
	assert.Nil(t, NewCompressor("gzip"))
}
