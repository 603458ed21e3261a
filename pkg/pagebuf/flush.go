// pkg/pagebuf/flush.go

package pagebuf

import (
	"context"

	"TierBuf/pkg/blob"
	"TierBuf/pkg/utils"

	"go.uber.org/multierr"
)

// Close ends the session. A persistent session that was written to drains
// every block below the logical end into the backing file first. The
// container and buffers are released even when that fails.
func (f *File) Close(ctx context.Context) error {
	if f.scratch == nil {
		return &OpError{Op: "close", Addr: UndefinedAddr, Block: UndefinedAddr, Kind: ErrUninitialized}
	}
	var err error
	if f.fd != nil {
		if f.dirty && f.writable() {
			err = f.flush(ctx)
		}
		if e := f.fd.Close(); e != nil {
			err = multierr.Append(err, &OpError{Op: "close", Addr: UndefinedAddr, Block: UndefinedAddr, Kind: ErrBackingIO, Err: e})
		}
		f.fd = nil
	}
	if e := f.container.Release(ctx); e != nil {
		err = multierr.Append(err, &OpError{Op: "close", Addr: UndefinedAddr, Block: UndefinedAddr, Kind: ErrContainer, Err: e})
	}
	utils.Free(f.scratch)
	f.scratch = nil
	f.index = nil
	f.pos, f.op = UndefinedAddr, opUnknown
	logger.Debugf("closed %s: %v", f.name, err)
	return err
}

func (f *File) flush(ctx context.Context) error {
	bs := f.blockSize
	count := (f.logicalEnd + bs - 1) / bs
	var written uint64
	for i := uint64(0); i < count; i++ {
		start := i * bs
		if !f.index.Contains(i) {
			if start < f.diskEnd {
				continue
			}
			return &OpError{Op: "flush", Addr: start, Size: bs, Block: i, Kind: ErrLogicalGap}
		}
		if err := f.container.Get(ctx, blob.BlockKey(i), f.scratch); err != nil {
			return &OpError{Op: "flush", Addr: start, Size: bs, Block: i, Kind: ErrBlockRetrieval, Err: err}
		}
		n := min(bs, f.logicalEnd-start)
		if _, err := f.fd.WriteAt(f.scratch[:n], int64(start)); err != nil {
			return &OpError{Op: "flush", Addr: start, Size: n, Block: i, Kind: ErrBackingIO, Err: err}
		}
		written += n
	}
	if err := f.fd.Sync(); err != nil {
		return &OpError{Op: "flush", Addr: UndefinedAddr, Block: UndefinedAddr, Kind: ErrBackingIO, Err: err}
	}
	logger.Debugf("flushed %d bytes of %s in %d blocks", written, f.name, count)
	return nil
}
