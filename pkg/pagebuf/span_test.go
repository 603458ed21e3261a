// pkg/pagebuf/span_test.go

package pagebuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpanClassification(t *testing.T) {
	for _, bs := range []uint64{1, 2, 3, 4, 7, 8, 16} {
		for addr := uint64(0); addr < 3*bs+2; addr++ {
			for size := uint64(1); size <= 3*bs+2; size++ {
				var spans []span
				err := forEachSpan(addr, size, bs, func(s span) error {
					spans = append(spans, s)
					return nil
				})
				require.NoError(t, err)
				require.NotEmpty(t, spans)
				require.Equal(t, addr/bs, spans[0].index, "bs %d addr %d size %d", bs, addr, size)
				require.Equal(t, (addr+size-1)/bs, spans[len(spans)-1].index, "bs %d addr %d size %d", bs, addr, size)

				var covered uint64
				for i, s := range spans {
					if i > 0 {
						require.Equal(t, spans[i-1].index+1, s.index)
					}
					require.Equal(t, covered, s.pos)
					require.Equal(t, addr+s.pos, s.index*bs+s.off, "bs %d addr %d size %d block %d", bs, addr, size, s.index)
					require.LessOrEqual(t, s.off+s.n, bs)
					require.NotZero(t, s.n)
					switch {
					case s.off > 0:
						require.Equal(t, headPartial, s.kind)
						require.Zero(t, i)
					case s.n < bs:
						require.Equal(t, tailPartial, s.kind)
						require.Equal(t, len(spans)-1, i)
					default:
						require.Equal(t, fullBlock, s.kind)
					}
					covered += s.n
				}
				require.Equal(t, size, covered)
			}
		}
	}
}

func TestSpanBlockAlignedEnd(t *testing.T) {
	var spans []span
	_ = forEachSpan(0, 8, 4, func(s span) error {
		spans = append(spans, s)
		return nil
	})
	require.Len(t, spans, 2)
	require.Equal(t, fullBlock, spans[1].kind)
	require.Equal(t, uint64(1), spans[1].index)
}

func TestSpanStopsOnError(t *testing.T) {
	var n int
	err := forEachSpan(1, 100, 4, func(s span) error {
		n++
		if s.index == 2 {
			return ErrContainer
		}
		return nil
	})
	require.ErrorIs(t, err, ErrContainer)
	require.Equal(t, 3, n)
}

func TestSpanLargeAddress(t *testing.T) {
	var spans []span
	_ = forEachSpan(MaxAddr-5, 5, 1<<20, func(s span) error {
		spans = append(spans, s)
		return nil
	})
	require.Len(t, spans, 1)
	require.Equal(t, headPartial, spans[0].kind)
	require.Equal(t, uint64(5), spans[0].n)
}
