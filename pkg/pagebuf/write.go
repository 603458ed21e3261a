// pkg/pagebuf/write.go

package pagebuf

import (
	"context"
	"time"

	"TierBuf/pkg/blob"

	"github.com/pkg/errors"
)

// WriteAt stores p at addr. Partially covered blocks are merged with what the
// block held before, every touched block is put into the block store.
func (f *File) WriteAt(ctx context.Context, p []byte, addr uint64) error {
	size := uint64(len(p))
	if err := f.check("write", addr, size); err != nil {
		return f.fail(err)
	}
	if !f.writable() {
		return f.fail(&OpError{Op: "write", Addr: addr, Size: size, Block: UndefinedAddr,
			Kind: ErrInvalidArgument, Err: errors.Errorf("%s is opened read-only", f.name)})
	}
	if size == 0 {
		return nil
	}
	start := time.Now()
	err := forEachSpan(addr, size, f.blockSize, func(s span) error {
		data := p[s.pos : s.pos+s.n]
		if s.kind != fullBlock {
			if err := f.mergeBase(ctx, s.index); err != nil {
				return err
			}
			copy(f.scratch[s.off:], data)
			data = f.scratch
		}
		if err := f.container.Put(ctx, blob.BlockKey(s.index), data); err != nil {
			return blockError(s.index, ErrContainer, err)
		}
		f.index.Mark(s.index)
		return nil
	})
	logit(f, start, err, "write (%d,%d)", addr, size)
	if err != nil {
		return f.fail(opError("write", addr, size, err))
	}
	f.logicalEnd = max(f.logicalEnd, addr+size)
	f.dirty = true
	f.pos, f.op = addr+size, opWrite
	return nil
}

// mergeBase loads into scratch what block index holds before it is partially
// overwritten: the stored block, the bytes on disk, or zeros.
func (f *File) mergeBase(ctx context.Context, index uint64) error {
	if f.index.Contains(index) {
		if err := f.container.Get(ctx, blob.BlockKey(index), f.scratch); err != nil {
			return blockError(index, ErrBlockRetrieval, err)
		}
		return nil
	}
	if ok, err := f.adopt(ctx, index, f.scratch); ok || err != nil {
		return err
	}
	return f.seed(index, f.scratch, f.diskEnd)
}
