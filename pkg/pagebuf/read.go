// pkg/pagebuf/read.go

package pagebuf

import (
	"context"
	"time"

	"TierBuf/pkg/backing"
	"TierBuf/pkg/blob"
)

// ReadAt fills p with the bytes at addr. Bytes past the logical end read as
// zeros. Blocks read for the first time are seeded from the backing file and
// kept in the block store.
func (f *File) ReadAt(ctx context.Context, p []byte, addr uint64) error {
	size := uint64(len(p))
	if err := f.check("read", addr, size); err != nil {
		return f.fail(err)
	}
	if size == 0 {
		return nil
	}
	start := time.Now()
	err := f.read(ctx, p, addr)
	logit(f, start, err, "read (%d,%d)", addr, size)
	if err != nil {
		return f.fail(opError("read", addr, size, err))
	}
	f.pos, f.op = addr+size, opRead
	return nil
}

func (f *File) read(ctx context.Context, p []byte, addr uint64) error {
	if addr >= f.logicalEnd {
		clear(p)
		return nil
	}
	return forEachSpan(addr, uint64(len(p)), f.blockSize, func(s span) error {
		if s.kind == fullBlock {
			return f.loadBlock(ctx, s.index, p[s.pos:s.pos+s.n])
		}
		if err := f.loadBlock(ctx, s.index, f.scratch); err != nil {
			return err
		}
		copy(p[s.pos:s.pos+s.n], f.scratch[s.off:s.off+s.n])
		return nil
	})
}

// loadBlock fills buf with the content of block index. An unknown block below
// the logical end is seeded and materialized, one past it reads as zeros.
func (f *File) loadBlock(ctx context.Context, index uint64, buf []byte) error {
	if f.index.Contains(index) {
		if err := f.container.Get(ctx, blob.BlockKey(index), buf); err != nil {
			return blockError(index, ErrBlockRetrieval, err)
		}
		return nil
	}
	start := index * f.blockSize
	if start >= f.logicalEnd {
		clear(buf)
		return nil
	}
	if ok, err := f.adopt(ctx, index, buf); ok || err != nil {
		return err
	}
	if err := f.seed(index, buf, f.logicalEnd); err != nil {
		return err
	}
	if err := f.container.Put(ctx, blob.BlockKey(index), buf); err != nil {
		return blockError(index, ErrContainer, err)
	}
	f.index.Mark(index)
	logger.Debugf("materialized block %d of %s", index, f.name)
	return nil
}

// adopt loads a block another session on the same container already stored
// and marks it known, so it is not seeded over.
func (f *File) adopt(ctx context.Context, index uint64, buf []byte) (bool, error) {
	key := blob.BlockKey(index)
	ok, err := f.container.Contains(ctx, key)
	if err != nil {
		return false, blockError(index, ErrContainer, err)
	}
	if !ok {
		return false, nil
	}
	if err := f.container.Get(ctx, key, buf); err != nil {
		return false, blockError(index, ErrBlockRetrieval, err)
	}
	f.index.Mark(index)
	return true, nil
}

// seed fills buf with the bytes of block index found in the backing file
// below end. The rest of buf is zero.
func (f *File) seed(index uint64, buf []byte, end uint64) error {
	clear(buf)
	start := index * f.blockSize
	if f.fd == nil || start >= f.diskEnd {
		return nil
	}
	n := min(end, start+f.blockSize) - start
	if _, err := backing.ReadFull(f.fd, buf[:n], int64(start)); err != nil {
		return blockError(index, ErrBackingIO, err)
	}
	return nil
}
