// pkg/pagebuf/errors.go

package pagebuf

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

const (
	// MaxAddr is the highest address a session accepts, backing offsets are int64.
	MaxAddr uint64 = math.MaxInt64
	// UndefinedAddr marks an unknown position.
	UndefinedAddr uint64 = math.MaxUint64
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUninitialized   = errors.New("session is not open")
	ErrBlockRetrieval  = errors.New("cannot retrieve known block")
	ErrBackingIO       = errors.New("backing file I/O failed")
	ErrContainer       = errors.New("blob store failed")
	ErrLogicalGap      = errors.New("block below logical end was never materialized")
)

// OpError describes a failed operation on a session. Kind is one of the Err*
// sentinels above and matches with errors.Is, Err is the underlying cause.
type OpError struct {
	Op    string
	Addr  uint64
	Size  uint64
	Block uint64
	Kind  error
	Err   error
}

func (e *OpError) Error() string {
	s := e.Op
	if e.Addr != UndefinedAddr {
		s += fmt.Sprintf(" [%d,+%d)", e.Addr, e.Size)
	}
	if e.Block != UndefinedAddr {
		s += fmt.Sprintf(" block %d", e.Block)
	}
	s += ": " + e.Kind.Error()
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func (e *OpError) Is(target error) bool {
	return target == e.Kind
}

func blockError(block uint64, kind, err error) *OpError {
	return &OpError{Addr: UndefinedAddr, Block: block, Kind: kind, Err: err}
}

// opError fills in the operation context of err, converting it to an *OpError.
func opError(op string, addr, size uint64, err error) *OpError {
	var e *OpError
	if !errors.As(err, &e) {
		e = &OpError{Block: UndefinedAddr, Kind: ErrContainer, Err: err}
	}
	e.Op, e.Addr, e.Size = op, addr, size
	return e
}
