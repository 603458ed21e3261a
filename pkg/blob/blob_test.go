// pkg/blob/blob_test.go

package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"TierBuf/pkg/compress"
	"TierBuf/pkg/object"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBlock = 1024

func block(b byte) []byte {
	return bytes.Repeat([]byte{b}, testBlock)
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateContainer(ctx, "f1"))
	require.NoError(t, s.CreateContainer(ctx, "f2"))

	ok, err := s.Contains(ctx, "f1", BlockKey(0))
	require.NoError(t, err)
	assert.False(t, ok)
	buf := make([]byte, testBlock)
	assert.True(t, errors.Is(s.Get(ctx, "f1", BlockKey(0), buf), ErrNotFound))

	require.NoError(t, s.Put(ctx, "f1", BlockKey(0), block('a')))
	require.NoError(t, s.Put(ctx, "f1", BlockKey(1), block('b')))
	require.NoError(t, s.Put(ctx, "f2", BlockKey(0), block('c')))

	ok, err = s.Contains(ctx, "f1", BlockKey(1))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Get(ctx, "f1", BlockKey(0), buf))
	assert.Equal(t, block('a'), buf)
	require.NoError(t, s.Get(ctx, "f2", BlockKey(0), buf))
	assert.Equal(t, block('c'), buf)

	require.NoError(t, s.Put(ctx, "f1", BlockKey(0), block('d')))
	require.NoError(t, s.Get(ctx, "f1", BlockKey(0), buf))
	assert.Equal(t, block('d'), buf)

	assert.Error(t, s.Get(ctx, "f1", BlockKey(0), make([]byte, testBlock/2)))

	require.NoError(t, s.DestroyContainer(ctx, "f1"))
	ok, err = s.Contains(ctx, "f1", BlockKey(1))
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.Get(ctx, "f2", BlockKey(0), buf))
	assert.Equal(t, block('c'), buf)
	require.NoError(t, s.DestroyContainer(ctx, "f2"))
}

func TestBlockKey(t *testing.T) {
	assert.Equal(t, "0", BlockKey(0))
	assert.Equal(t, "123456", BlockKey(123456))
	assert.Equal(t, "18446744073709551615", BlockKey(1<<64-1))
	assert.NotEqual(t, BlockKey(1), BlockKey(10))
}

func TestMemStore(t *testing.T) {
	m := NewMemStore(0)
	testStore(t, m)
	n, used := m.Stats()
	assert.Zero(t, n)
	assert.Zero(t, used)
}

func newObjectStore(t *testing.T, algr string) *ObjectStore {
	storage, err := object.CreateStorage("file", t.TempDir()+"/", "", "")
	require.NoError(t, err)
	require.NoError(t, storage.Create())
	return NewObjectStore(storage, compress.NewCompressor(algr))
}

func TestObjectStore(t *testing.T) {
	for _, algr := range []string{"none", "lz4", "zstd"} {
		t.Run(algr, func(t *testing.T) {
			testStore(t, newObjectStore(t, algr))
		})
	}
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TIERBUF_TEST_REDIS")
	if url == "" {
		t.Skip("TIERBUF_TEST_REDIS is not set")
	}
	r, err := NewRedisStore(url, 2)
	require.NoError(t, err)
	defer r.Close()
	testStore(t, r)
	names, err := r.Containers(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, names, "f1")
}

func TestObjectStoreEscapesContainer(t *testing.T) {
	ctx := context.Background()
	s := newObjectStore(t, "none")
	require.NoError(t, s.Put(ctx, "/data/a", BlockKey(0), block('a')))
	require.NoError(t, s.Put(ctx, "/data/a/b", BlockKey(0), block('b')))
	require.NoError(t, s.DestroyContainer(ctx, "/data/a"))
	ok, err := s.Contains(ctx, "/data/a", BlockKey(0))
	require.NoError(t, err)
	assert.False(t, ok)
	buf := make([]byte, testBlock)
	require.NoError(t, s.Get(ctx, "/data/a/b", BlockKey(0), buf))
	assert.Equal(t, block('b'), buf)
}

func TestShouldRetry(t *testing.T) {
	assert.False(t, shouldRetry(nil))
	assert.False(t, shouldRetry(context.Canceled))
	assert.True(t, shouldRetry(io.EOF))
	assert.True(t, shouldRetry(redis.TxFailedErr))
	assert.True(t, shouldRetry(errors.New("LOADING Redis is loading the dataset in memory")))
	assert.True(t, shouldRetry(errors.New("ERR NOWRITE")))
	assert.False(t, shouldRetry(errors.New("ERR unknown command")))
	assert.False(t, shouldRetry(errors.New("WRONGTYPE Operation against a key")))
}

func TestTiered(t *testing.T) {
	testStore(t, NewTiered(NewMemStore(2*testBlock), newObjectStore(t, "lz4")))
}

func TestTieredDemotion(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore(2 * testBlock)
	lower := NewMemStore(0)
	s := NewTiered(mem, lower)
	require.NoError(t, s.CreateContainer(ctx, "f"))

	for i := 0; i < 8; i++ {
		require.NoError(t, s.Put(ctx, "f", BlockKey(uint64(i)), block(byte('a'+i))))
	}
	assert.LessOrEqual(t, mem.UsedMemory(), int64(2*testBlock))
	n, _ := lower.Stats()
	assert.GreaterOrEqual(t, n, int64(6))

	buf := make([]byte, testBlock)
	for i := 0; i < 8; i++ {
		ok, err := s.Contains(ctx, "f", BlockKey(uint64(i)))
		require.NoError(t, err)
		assert.True(t, ok, "block %d", i)
		require.NoError(t, s.Get(ctx, "f", BlockKey(uint64(i)), buf))
		assert.Equal(t, block(byte('a'+i)), buf, "block %d", i)
	}

	require.NoError(t, s.DestroyContainer(ctx, "f"))
	n, _ = lower.Stats()
	assert.Zero(t, n)
}

func TestTieredConcurrentGet(t *testing.T) {
	ctx := context.Background()
	lower := newObjectStore(t, "none")
	s := NewTiered(NewMemStore(0), lower)
	require.NoError(t, lower.Put(ctx, "f", BlockKey(3), block('z')))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, testBlock)
			assert.NoError(t, s.Get(ctx, "f", BlockKey(3), buf))
			assert.Equal(t, block('z'), buf)
		}()
	}
	wg.Wait()
	assert.True(t, errors.Is(s.Get(ctx, "f", BlockKey(4), make([]byte, testBlock)), ErrNotFound))
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore(0)
	reg := NewRegistry(mem)
	assert.Same(t, mem, reg.Store())

	a, err := reg.Acquire(ctx, "file")
	require.NoError(t, err)
	b, err := reg.Acquire(ctx, "file")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, int32(2), a.Refs())

	require.NoError(t, a.Put(ctx, BlockKey(0), block('x')))
	require.NoError(t, a.Release(ctx))
	ok, err := b.Contains(ctx, BlockKey(0))
	require.NoError(t, err)
	assert.True(t, ok, "container survives while referenced")

	require.NoError(t, b.Release(ctx))
	ok, err = mem.Contains(ctx, "file", BlockKey(0))
	require.NoError(t, err)
	assert.False(t, ok, "last release destroys the container")
	assert.Error(t, b.Release(ctx))

	c, err := reg.Acquire(ctx, "file")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Equal(t, int32(1), c.Refs())
	require.NoError(t, c.Release(ctx))
}

func TestRegistryConcurrent(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMemStore(0))
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := reg.Acquire(ctx, fmt.Sprintf("f%d", i%4))
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, c.Put(ctx, BlockKey(uint64(i)), block(byte(i))))
			assert.NoError(t, c.Release(ctx))
		}(i)
	}
	wg.Wait()
	reg.Lock()
	defer reg.Unlock()
	assert.Empty(t, reg.containers)
}
