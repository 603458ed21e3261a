// pkg/backing/file.go

// Package backing is the plain persistent file a buffered session seeds
// unseen blocks from and drains dirty blocks to.
package backing

import (
	"io"
	"os"

	"TierBuf/pkg/utils"

	"github.com/pkg/errors"
)

var logger = utils.GetLogger("tierbuf")

// File is a byte-addressed persistence sink.
type File interface {
	io.ReaderAt
	io.WriterAt
	// Size returns the current length of the file in bytes.
	Size() (int64, error)
	// Sync flushes written data to stable storage.
	Sync() error
	io.Closer
}

type osFile struct {
	*os.File
}

// Open opens or creates the file `name` with the os.O_* flags in flag.
func Open(name string, flag int) (File, error) {
	f, err := os.OpenFile(name, flag, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	logger.Debugf("opened backing file %s (flag %#x)", name, flag)
	return &osFile{f}, nil
}

func (f *osFile) Size() (int64, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", f.Name())
	}
	return st.Size(), nil
}

func (f *osFile) Sync() error {
	if err := datasync(f.File); err != nil {
		return errors.Wrapf(err, "sync %s", f.Name())
	}
	return nil
}

// ReadFull reads len(buf) bytes at off. Bytes past the end of the file are
// left zero. It returns the number of bytes actually read from f.
func ReadFull(f File, buf []byte, off int64) (int, error) {
	n, err := f.ReadAt(buf, off)
	if err == io.EOF {
		clear(buf[n:])
		return n, nil
	}
	return n, err
}
