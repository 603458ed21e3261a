// pkg/pagebuf/accesslog.go

package pagebuf

import (
	"fmt"
	"sync"
	"time"
)

type logReader struct {
	sync.Mutex
	buffer chan []byte
	last   []byte
}

var (
	readerLock sync.Mutex
	readers    map[uint64]*logReader
)

func init() {
	readers = make(map[uint64]*logReader)
}

func logit(f *File, start time.Time, err error, format string, args ...interface{}) {
	used := time.Since(start)
	slow := f.conf.SlowOp > 0 && used >= f.conf.SlowOp
	readerLock.Lock()
	defer readerLock.Unlock()
	if len(readers) == 0 && !slow {
		return
	}

	cmd := fmt.Sprintf(format, args...)
	if err != nil {
		cmd += ": " + err.Error()
	}
	cmd += fmt.Sprintf(" <%.6f>", used.Seconds())
	if slow {
		logger.Infof("slow operation on %s: %s", f.name, cmd)
	}
	ts := time.Now().Format("2006.01.02 15:04:05.000000")
	line := []byte(fmt.Sprintf("%s [%s] %s\n", ts, f.name, cmd))

	for _, r := range readers {
		select {
		case r.buffer <- line:
		default:
		}
	}
}

// OpenAccessLog starts collecting one line per read and write of every
// session under id.
func OpenAccessLog(id uint64) {
	readerLock.Lock()
	defer readerLock.Unlock()
	readers[id] = &logReader{buffer: make(chan []byte, 10240)}
}

func CloseAccessLog(id uint64) {
	readerLock.Lock()
	defer readerLock.Unlock()
	delete(readers, id)
}

// ReadAccessLog copies collected lines into buf, waiting up to wait for the
// first one. It returns the number of bytes copied.
func ReadAccessLog(id uint64, buf []byte, wait time.Duration) int {
	readerLock.Lock()
	r, ok := readers[id]
	readerLock.Unlock()
	if !ok {
		return 0
	}
	r.Lock()
	defer r.Unlock()
	var n int
	if len(r.last) > 0 {
		n = copy(buf, r.last)
		r.last = r.last[n:]
	}
	var t = time.NewTimer(wait)
	defer t.Stop()
	for n < len(buf) {
		select {
		case line := <-r.buffer:
			l := copy(buf[n:], line)
			n += l
			if l < len(line) {
				r.last = line[l:]
				return n
			}
		case <-t.C:
			return n
		}
	}
	return n
}
