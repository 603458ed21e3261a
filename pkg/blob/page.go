// pkg/blob/page.go

package blob

import (
	"sync/atomic"

	"TierBuf/pkg/utils"
)

// Page is a reference counted block buffer.
type Page struct {
	refs int32
	Data []byte
}

// NewPage allocates a page of size bytes with one reference.
func NewPage(size int) *Page {
	if size <= 0 {
		panic("size of page should > 0")
	}
	return &Page{refs: 1, Data: utils.Alloc(size)}
}

// Acquire increase the refcount
func (p *Page) Acquire() {
	atomic.AddInt32(&p.refs, 1)
}

// Release decreases the refcount, the buffer is freed with the last reference
func (p *Page) Release() {
	refs := atomic.AddInt32(&p.refs, -1)
	if refs == 0 {
		utils.Free(p.Data)
		p.Data = nil
	} else if refs < 0 {
		logger.Errorf("refcount of page %p is negative: %d", p, refs)
	}
}
