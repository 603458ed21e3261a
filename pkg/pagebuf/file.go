// pkg/pagebuf/file.go

// Package pagebuf buffers a byte-addressed file in a block store. Reads and
// writes at any offset are translated into whole-block gets and puts, blocks
// never seen before are seeded from the backing file, and a persistent
// session writes every block back when it is closed.
package pagebuf

import (
	"context"
	"strings"

	"TierBuf/pkg/backing"
	"TierBuf/pkg/blob"
	"TierBuf/pkg/blockset"
	"TierBuf/pkg/utils"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var logger = utils.GetLogger("tierbuf")

type opKind uint8

const (
	opUnknown opKind = iota
	opRead
	opWrite
)

// File is one buffered session on a file. It is driven by a single caller at
// a time, sessions on the same name share their container.
type File struct {
	name      string
	flags     Flag
	conf      Config
	blockSize uint64

	logicalEnd uint64 // one past the highest byte addressed
	diskEnd    uint64 // size of the backing file at open
	eoa        uint64
	pos        uint64
	op         opKind
	dirty      bool

	index     *blockset.Set
	scratch   []byte
	container *blob.Container
	fd        backing.File
}

// Stat is a snapshot of the state of a session.
type Stat struct {
	Name        string
	BlockSize   uint64
	KnownBlocks uint64
	Capacity    uint64
	LogicalEnd  uint64
	DiskEnd     uint64
	Dirty       bool
}

func checkOpen(name string, conf *Config) error {
	if name == "" && conf.Persistent {
		return errors.New("persistent session needs a file name")
	}
	if conf.BlockSize < 0 {
		return errors.Errorf("block size %d is negative", conf.BlockSize)
	}
	return nil
}

// Open starts a session on name. A persistent session opens the backing file
// with flags, an ephemeral one only uses the block store, an empty name gives
// it a private container.
func Open(ctx context.Context, name string, flags Flag, conf Config, reg *blob.Registry) (*File, error) {
	if err := checkOpen(name, &conf); err != nil {
		return nil, &OpError{Op: "open", Addr: UndefinedAddr, Block: UndefinedAddr, Kind: ErrInvalidArgument, Err: err}
	}
	var fd backing.File
	if conf.Persistent {
		var err error
		if fd, err = backing.Open(name, flags.osFlag()); err != nil {
			return nil, &OpError{Op: "open", Addr: UndefinedAddr, Block: UndefinedAddr, Kind: ErrBackingIO, Err: err}
		}
	}
	return NewFile(ctx, name, flags, conf, reg, fd)
}

// NewFile starts a session over an already opened backing file. fd must be
// nil for an ephemeral session. The session owns fd from now on, it is closed
// here when the session cannot be started.
func NewFile(ctx context.Context, name string, flags Flag, conf Config, reg *blob.Registry, fd backing.File) (*File, error) {
	fail := func(kind, err error) (*File, error) {
		if fd != nil {
			_ = fd.Close()
		}
		return nil, &OpError{Op: "open", Addr: UndefinedAddr, Block: UndefinedAddr, Kind: kind, Err: err}
	}
	if err := checkOpen(name, &conf); err != nil {
		return fail(ErrInvalidArgument, err)
	}
	if conf.Persistent != (fd != nil) {
		return fail(ErrInvalidArgument, errors.Errorf("persistent=%t with backing file %v", conf.Persistent, fd))
	}
	conf.BlockSize = fixBlockSize(conf.BlockSize)

	var size uint64
	if fd != nil && flags&Truncate == 0 {
		n, err := fd.Size()
		if err != nil {
			return fail(ErrBackingIO, err)
		}
		size = uint64(n)
	}
	cname := name
	if cname == "" {
		cname = "anon-" + uuid.NewString()
	}
	container, err := reg.Acquire(ctx, cname)
	if err != nil {
		return fail(ErrContainer, err)
	}
	bs := uint64(conf.BlockSize)
	f := &File{
		name:       name,
		flags:      flags,
		conf:       conf,
		blockSize:  bs,
		logicalEnd: size,
		diskEnd:    size,
		pos:        UndefinedAddr,
		index:      blockset.New((size + bs - 1) / bs),
		scratch:    utils.Alloc(conf.BlockSize),
		container:  container,
		fd:         fd,
	}
	logger.Debugf("open %s (%s) in %s: block size %d, size %d, refs %d",
		cname, flags, reg.Store().Name(), bs, size, container.Refs())
	return f, nil
}

func (f *File) Name() string {
	return f.name
}

func (f *File) BlockSize() uint64 {
	return f.blockSize
}

// EOF returns the logical end of the file.
func (f *File) EOF() uint64 {
	return f.logicalEnd
}

// EOA returns the end-of-allocated marker kept for the caller.
func (f *File) EOA() uint64 {
	return f.eoa
}

func (f *File) SetEOA(addr uint64) error {
	if addr > MaxAddr {
		return &OpError{Op: "set eoa", Addr: addr, Block: UndefinedAddr, Kind: ErrInvalidArgument}
	}
	f.eoa = addr
	return nil
}

// Compare orders sessions by file name.
func (f *File) Compare(o *File) int {
	return strings.Compare(f.name, o.name)
}

func (f *File) Stats() Stat {
	st := Stat{
		Name:       f.name,
		BlockSize:  f.blockSize,
		LogicalEnd: f.logicalEnd,
		DiskEnd:    f.diskEnd,
		Dirty:      f.dirty,
	}
	if f.index != nil {
		st.KnownBlocks = f.index.Count()
		st.Capacity = f.index.Capacity()
	}
	return st
}

func (f *File) writable() bool {
	return f.flags&ReadWrite != 0
}

// check validates a read or write of size bytes at addr.
func (f *File) check(op string, addr, size uint64) *OpError {
	if f.scratch == nil {
		return &OpError{Op: op, Addr: addr, Size: size, Block: UndefinedAddr, Kind: ErrUninitialized}
	}
	if addr == UndefinedAddr || addr > MaxAddr || size > MaxAddr-addr {
		return &OpError{Op: op, Addr: addr, Size: size, Block: UndefinedAddr, Kind: ErrInvalidArgument,
			Err: errors.Errorf("range overflows %d", MaxAddr)}
	}
	return nil
}

// fail forgets the position after a failed operation.
func (f *File) fail(err *OpError) error {
	f.pos = UndefinedAddr
	f.op = opUnknown
	return err
}
