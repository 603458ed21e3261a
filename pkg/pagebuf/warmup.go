// pkg/pagebuf/warmup.go

package pagebuf

import (
	"context"

	"github.com/pkg/errors"
)

// Warmup materializes the blocks covering [off, off+length) without copying
// them out. Blocks past the logical end are skipped.
func (f *File) Warmup(ctx context.Context, off, length uint64) error {
	if err := f.check("warmup", off, length); err != nil {
		return f.fail(err)
	}
	end := min(off+length, f.logicalEnd)
	if off >= end {
		return nil
	}
	bs := f.blockSize
	var loaded int
	for i := off / bs; i*bs < end; i++ {
		if f.index.Contains(i) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return f.fail(opError("warmup", off, length, errors.Wrapf(err, "warmup %s", f.name)))
		}
		if err := f.loadBlock(ctx, i, f.scratch); err != nil {
			return f.fail(opError("warmup", off, length, err))
		}
		loaded++
	}
	logger.Debugf("warmed up %d blocks of %s in [%d,%d)", loaded, f.name, off, end)
	return nil
}
