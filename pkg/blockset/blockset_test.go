// pkg/blockset/blockset_test.go

package blockset

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmpty(t *testing.T) {
	s := New(0)
	assert.Equal(t, uint64(64), s.Capacity())
	for _, i := range []uint64{0, 1, 63, 64, 1 << 40} {
		assert.False(t, s.Contains(i), "index %d", i)
	}
	assert.Zero(t, s.Count())
}

func TestMarkIncreasing(t *testing.T) {
	s := New(0)
	for i := uint64(0); i <= 10000; i++ {
		s.Mark(i)
		require.True(t, s.Contains(i), "index %d", i)
	}
	for i := uint64(0); i <= 10000; i++ {
		require.True(t, s.Contains(i), "index %d", i)
	}
	assert.False(t, s.Contains(10001))
	assert.Equal(t, uint64(10001), s.Count())
}

func TestMarkRandom(t *testing.T) {
	s := New(0)
	r := rand.New(rand.NewSource(42))
	perm := r.Perm(10001)
	marked := make(map[uint64]bool)
	for n, p := range perm {
		i := uint64(p)
		s.Mark(i)
		marked[i] = true
		if n%500 == 0 {
			for j := range marked {
				require.True(t, s.Contains(j), "index %d lost after marking %d", j, i)
			}
		}
	}
	for i := uint64(0); i <= 10000; i++ {
		require.True(t, s.Contains(i), "index %d", i)
	}
}

func TestGrowth(t *testing.T) {
	s := New(64)
	s.Mark(3)
	s.Mark(64)
	// (64/64 + 1) * 2 words
	assert.Equal(t, uint64(4*64), s.Capacity())
	assert.True(t, s.Contains(3))

	s.Mark(1000)
	assert.Equal(t, uint64((1000/64+1)*2*64), s.Capacity())
	assert.True(t, s.Contains(3))
	assert.True(t, s.Contains(64))
	for i := uint64(65); i < s.Capacity(); i++ {
		if i != 1000 {
			require.False(t, s.Contains(i), "index %d", i)
		}
	}

	before := s.Capacity()
	s.Mark(5)
	assert.Equal(t, before, s.Capacity())
}

func TestEach(t *testing.T) {
	s := New(0)
	for _, i := range []uint64{700, 1, 65, 2} {
		s.Mark(i)
	}
	var got []uint64
	s.Each(func(i uint64) bool {
		got = append(got, i)
		return true
	})
	assert.Equal(t, []uint64{1, 2, 65, 700}, got)

	got = got[:0]
	s.Each(func(i uint64) bool {
		got = append(got, i)
		return len(got) < 2
	})
	assert.Equal(t, []uint64{1, 2}, got)
}
