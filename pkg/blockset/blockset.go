// pkg/blockset/blockset.go

// Package blockset tracks which block indices have been materialized in the
// blob store. Indices are only ever added.
package blockset

import (
	"github.com/bits-and-blooms/bitset"
)

const wordBits = 64

// Set is a growable bitmap of block indices. It is not safe for concurrent use.
type Set struct {
	bits *bitset.BitSet
}

// New returns an empty set able to hold indices below hint without growing.
func New(hint uint64) *Set {
	n := (hint + wordBits - 1) / wordBits
	if n == 0 {
		n = 1
	}
	return &Set{bits: bitset.From(make([]uint64, n))}
}

// Capacity returns the number of indices the set holds without growing.
func (s *Set) Capacity() uint64 {
	return uint64(s.bits.Len())
}

// Contains reports whether index was marked.
func (s *Set) Contains(index uint64) bool {
	if index >= s.Capacity() {
		return false
	}
	return s.bits.Test(uint(index))
}

// Mark adds index to the set, doubling the word storage when index is past
// the current capacity.
func (s *Set) Mark(index uint64) {
	if index >= s.Capacity() {
		s.grow((index/wordBits + 1) * 2)
	}
	s.bits.Set(uint(index))
}

func (s *Set) grow(n uint64) {
	words := make([]uint64, n)
	copy(words, s.bits.Bytes())
	s.bits = bitset.From(words)
}

// Count returns the number of marked indices.
func (s *Set) Count() uint64 {
	return uint64(s.bits.Count())
}

// Each calls fn for every marked index in increasing order until fn returns false.
func (s *Set) Each(fn func(index uint64) bool) {
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		if !fn(uint64(i)) {
			return
		}
	}
}
