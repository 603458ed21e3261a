// pkg/pagebuf/helpers_test.go

package pagebuf

import (
	"context"
	"io"
	"sync/atomic"

	"TierBuf/pkg/blob"
)

// countingStore counts the calls reaching the wrapped store and can fail gets.
type countingStore struct {
	blob.Store
	gets, puts atomic.Int64
	failGet    error
}

func (s *countingStore) Get(ctx context.Context, container, key string, buf []byte) error {
	s.gets.Add(1)
	if s.failGet != nil {
		return s.failGet
	}
	return s.Store.Get(ctx, container, key, buf)
}

func (s *countingStore) Put(ctx context.Context, container, key string, buf []byte) error {
	s.puts.Add(1)
	return s.Store.Put(ctx, container, key, buf)
}

func (s *countingStore) calls() int64 {
	return s.gets.Load() + s.puts.Load()
}

type writeRecord struct {
	off int64
	n   int
}

// memFile is an in-memory backing file recording every call.
type memFile struct {
	data      []byte
	reads     int
	writes    []writeRecord
	synced    bool
	closed    bool
	failWrite error
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	m.reads++
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	if m.failWrite != nil {
		return 0, m.failWrite
	}
	m.writes = append(m.writes, writeRecord{off, len(p)})
	if end := off + int64(len(p)); end > int64(len(m.data)) {
		m.data = append(m.data, make([]byte, end-int64(len(m.data)))...)
	}
	copy(m.data[off:], p)
	return len(p), nil
}

func (m *memFile) Size() (int64, error) {
	return int64(len(m.data)), nil
}

func (m *memFile) Sync() error {
	m.synced = true
	return nil
}

func (m *memFile) Close() error {
	m.closed = true
	return nil
}
