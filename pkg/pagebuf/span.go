// pkg/pagebuf/span.go

package pagebuf

import "fmt"

type spanKind uint8

const (
	// the range starts inside the block
	headPartial spanKind = iota
	// the range starts at or before the block and ends inside it
	tailPartial
	// the range covers the whole block
	fullBlock
)

func (k spanKind) String() string {
	switch k {
	case headPartial:
		return "head"
	case tailPartial:
		return "tail"
	case fullBlock:
		return "full"
	}
	return "unknown"
}

// span is the part of a byte range that falls into one block.
type span struct {
	kind  spanKind
	index uint64 // block index
	off   uint64 // first byte inside the block
	n     uint64 // bytes inside the block
	pos   uint64 // offset of the first byte in the caller buffer
}

// forEachSpan calls fn for every block touched by [addr, addr+size), in
// increasing order, and stops at the first error. size must not be zero and
// addr+size must not overflow.
func forEachSpan(addr, size, bs uint64, fn func(s span) error) error {
	rlast := addr + size - 1
	for k := addr / bs; k <= rlast/bs; k++ {
		start := k * bs
		last := start + bs - 1
		s := span{index: k}
		switch {
		case start < addr && addr <= last:
			s.kind = headPartial
			s.off = addr - start
			s.n = min(rlast, last) - addr + 1
		case addr <= start && start <= rlast && rlast < last:
			s.kind = tailPartial
			s.pos = start - addr
			s.n = rlast - start + 1
		case addr <= start && rlast >= last:
			s.kind = fullBlock
			s.pos = start - addr
			s.n = bs
		default:
			panic(fmt.Sprintf("block %d [%d,%d] is outside of range [%d,%d]", k, start, last, addr, rlast))
		}
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}
