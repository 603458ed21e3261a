// pkg/pagebuf/config.go

package pagebuf

import (
	"os"
	"time"
)

const (
	// DefaultBlockSize is used when Config.BlockSize is zero.
	DefaultBlockSize = 64 << 10
	// MaxBlockSize is the largest block a session will use.
	MaxBlockSize = 16 << 20
)

// Config tunes a buffered session.
type Config struct {
	// BlockSize is the size of one stored block in bytes. It is rounded down
	// to a power of two and capped at MaxBlockSize.
	BlockSize int
	// Persistent sessions are backed by a real file that seeds unseen blocks
	// and receives every block at close. Ephemeral ones never touch disk.
	Persistent bool
	// SlowOp is the duration from which reads and writes are logged as slow,
	// zero disables it.
	SlowOp time.Duration
}

func fixBlockSize(s int) int {
	if s == 0 {
		return DefaultBlockSize
	}
	var bits uint
	for s > 1 {
		bits++
		s >>= 1
	}
	s = s << bits
	if s > MaxBlockSize {
		s = MaxBlockSize
	}
	return s
}

// Flag selects how a session opens its file.
type Flag int

const (
	ReadWrite Flag = 1 << iota
	Create
	Truncate
	Exclusive
)

func (f Flag) String() string {
	s := "r"
	if f&ReadWrite != 0 {
		s += "w"
	}
	if f&Create != 0 {
		s += "c"
	}
	if f&Truncate != 0 {
		s += "t"
	}
	if f&Exclusive != 0 {
		s += "x"
	}
	return s
}

func (f Flag) osFlag() int {
	flag := os.O_RDONLY
	if f&ReadWrite != 0 {
		flag = os.O_RDWR
	}
	if f&Create != 0 {
		flag |= os.O_CREATE
	}
	if f&Truncate != 0 {
		flag |= os.O_TRUNC
	}
	if f&Exclusive != 0 {
		flag |= os.O_EXCL
	}
	return flag
}
