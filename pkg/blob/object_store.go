// pkg/blob/object_store.go

package blob

import (
	"bytes"
	"context"
	"io"
	"net/url"

	"TierBuf/pkg/compress"
	"TierBuf/pkg/object"

	"github.com/pkg/errors"
)

// ObjectStore keeps one object per block at <container>/<key>, compressed.
// The container name is path-escaped so it stays a single path element.
type ObjectStore struct {
	storage    object.ObjectStorage
	compressor compress.Compressor
}

// NewObjectStore stores blocks in storage, compressed with compressor (nil means none).
func NewObjectStore(storage object.ObjectStorage, compressor compress.Compressor) *ObjectStore {
	if compressor == nil {
		compressor = compress.NewCompressor("none")
	}
	return &ObjectStore{storage: storage, compressor: compressor}
}

func (s *ObjectStore) Name() string {
	return s.storage.String()
}

func (s *ObjectStore) prefix(container string) string {
	return url.PathEscape(container) + "/"
}

func (s *ObjectStore) objectKey(container, key string) string {
	return s.prefix(container) + key
}

func (s *ObjectStore) CreateContainer(ctx context.Context, name string) error {
	return nil
}

func (s *ObjectStore) DestroyContainer(ctx context.Context, name string) error {
	objs, err := object.ListAll(s.storage, s.prefix(name))
	if err != nil {
		return errors.Wrapf(err, "list %s", name)
	}
	for _, o := range objs {
		if err := s.storage.Delete(o.Key()); err != nil {
			return errors.Wrapf(err, "delete %s", o.Key())
		}
	}
	logger.Debugf("removed %d blocks of %s from %s", len(objs), name, s.storage)
	return nil
}

func (s *ObjectStore) Contains(ctx context.Context, container, key string) (bool, error) {
	_, err := s.storage.Head(s.objectKey(container, key))
	if errors.Is(err, object.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *ObjectStore) Get(ctx context.Context, container, key string, buf []byte) error {
	k := s.objectKey(container, key)
	r, err := s.storage.Get(k, 0, -1)
	if errors.Is(err, object.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "get %s", k)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrapf(err, "read %s", k)
	}
	n, err := s.compressor.Decompress(buf, data)
	if err != nil {
		return errors.Wrapf(err, "decompress %s with %s", k, s.compressor.Name())
	}
	if n != len(buf) {
		return errors.Errorf("block %s has %d bytes, want %d", k, n, len(buf))
	}
	return nil
}

func (s *ObjectStore) Put(ctx context.Context, container, key string, buf []byte) error {
	k := s.objectKey(container, key)
	dst := make([]byte, s.compressor.CompressBound(len(buf)))
	n, err := s.compressor.Compress(dst, buf)
	if err != nil {
		return errors.Wrapf(err, "compress %s with %s", k, s.compressor.Name())
	}
	if err := s.storage.Put(k, bytes.NewReader(dst[:n])); err != nil {
		return errors.Wrapf(err, "put %s", k)
	}
	return nil
}

var _ Store = &ObjectStore{}
