// pkg/utils/alloc.go

package utils

import "sync/atomic"

var used int64

// Alloc returns a zeroed buffer of size bytes and accounts it as used memory.
func Alloc(size int) []byte {
	atomic.AddInt64(&used, int64(size))
	return make([]byte, size)
}

// Free releases the accounting of a buffer returned by Alloc.
func Free(b []byte) {
	atomic.AddInt64(&used, -int64(cap(b)))
}

// AllocMemory returns the number of bytes currently handed out by Alloc.
func AllocMemory() int64 {
	return atomic.LoadInt64(&used)
}
