// pkg/object/object_test.go

package object

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, s ObjectStorage, key string, off, limit int64) []byte {
	r, err := s.Get(key, off, limit)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func testStorage(t *testing.T, s ObjectStorage) {
	require.NoError(t, s.Create())

	_, err := s.Get("missing", 0, -1)
	assert.True(t, errors.Is(err, ErrNotFound), "get missing: %v", err)
	_, err = s.Head("missing")
	assert.True(t, errors.Is(err, ErrNotFound), "head missing: %v", err)

	require.NoError(t, s.Put("c1/0", bytes.NewReader([]byte("hello world"))))
	require.NoError(t, s.Put("c1/1", bytes.NewReader([]byte("block one"))))
	require.NoError(t, s.Put("c2/0", bytes.NewReader([]byte("other"))))

	assert.Equal(t, []byte("hello world"), get(t, s, "c1/0", 0, -1))
	assert.Equal(t, []byte("world"), get(t, s, "c1/0", 6, -1))
	assert.Equal(t, []byte("lo w"), get(t, s, "c1/0", 3, 4))

	o, err := s.Head("c1/1")
	require.NoError(t, err)
	assert.Equal(t, "c1/1", o.Key())
	assert.Equal(t, int64(9), o.Size())

	objs, err := s.List("c1/", "", 10)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "c1/0", objs[0].Key())
	assert.Equal(t, "c1/1", objs[1].Key())

	objs, err = s.List("c1/", "c1/0", 10)
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "c1/1", objs[0].Key())

	all, err := ListAll(s, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, s.Put("c1/0", bytes.NewReader([]byte("replaced"))))
	assert.Equal(t, []byte("replaced"), get(t, s, "c1/0", 0, -1))

	for _, k := range []string{"c1/0", "c1/1", "c2/0", "c2/0"} {
		require.NoError(t, s.Delete(k))
	}
	all, err = ListAll(s, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDisk(t *testing.T) {
	s, err := CreateStorage("file", t.TempDir()+"/", "", "")
	require.NoError(t, err)
	testStorage(t, s)
}

func TestPrefix(t *testing.T) {
	s, err := CreateStorage("file", t.TempDir()+"/", "", "")
	require.NoError(t, err)
	testStorage(t, WithPrefix(s, "vol/"))
}

func TestLimited(t *testing.T) {
	s, err := CreateStorage("file", t.TempDir()+"/", "", "")
	require.NoError(t, err)
	assert.Same(t, s, NewLimited(s, 0, 0))
	testStorage(t, NewLimited(s, 10<<20, 10<<20))
}

func TestEncrypted(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemText, err := ExportRsaPrivateKeyToPem(key, "secret")
	require.NoError(t, err)
	_, err = ParseRsaPrivateKeyFromPem(pemText, "")
	assert.Error(t, err)
	parsed, err := ParseRsaPrivateKeyFromPem(pemText, "secret")
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed))

	dir := t.TempDir() + "/"
	s, err := CreateStorage("file", dir, "", "")
	require.NoError(t, err)
	enc := NewEncrypted(s, NewAESEncryptor(NewRSAEncryptor(parsed)))
	testStorage(t, enc)

	require.NoError(t, enc.Put("k", bytes.NewReader([]byte("plain text"))))
	raw, err := os.ReadFile(dir + "k")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "plain text")
	assert.Equal(t, []byte("text"), get(t, enc, "k", 6, -1))
}

func TestUnknownStorage(t *testing.T) {
	_, err := CreateStorage("nope", "x", "", "")
	assert.Error(t, err)
}

func TestMinio(t *testing.T) {
	endpoint := os.Getenv("TIERBUF_TEST_MINIO")
	if endpoint == "" {
		t.Skip("TIERBUF_TEST_MINIO is not set")
	}
	s, err := CreateStorage("minio", endpoint, os.Getenv("ACCESS_KEY"), os.Getenv("SECRET_KEY"))
	require.NoError(t, err)
	testStorage(t, WithPrefix(s, "tierbuf-test/"))
}

func TestSftp(t *testing.T) {
	endpoint := os.Getenv("TIERBUF_TEST_SFTP")
	if endpoint == "" {
		t.Skip("TIERBUF_TEST_SFTP is not set")
	}
	s, err := CreateStorage("sftp", endpoint, os.Getenv("SFTP_USER"), os.Getenv("SFTP_PASSWORD"))
	require.NoError(t, err)
	testStorage(t, s)
}
