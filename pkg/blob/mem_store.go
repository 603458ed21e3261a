// pkg/blob/mem_store.go

package blob

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type memItem struct {
	atime time.Time
	page  *Page
}

// EvictFunc receives a block pushed out of a memory tier. The page is released
// once it returns, an error keeps the block in memory.
type EvictFunc func(container, key string, p *Page) error

// MemStore keeps blocks in memory. With a capacity it evicts the older of two
// random blocks until the used memory fits again.
type MemStore struct {
	sync.Mutex
	capacity   int64
	used       int64
	containers map[string]map[string]memItem
	onEvict    EvictFunc
}

// NewMemStore returns a memory store holding up to capacity bytes, zero or
// less means unlimited.
func NewMemStore(capacity int64) *MemStore {
	return &MemStore{
		capacity:   capacity,
		containers: make(map[string]map[string]memItem),
	}
}

// OnEvict sets where evicted blocks go. Without it, evicted blocks are dropped.
func (c *MemStore) OnEvict(fn EvictFunc) {
	c.Lock()
	defer c.Unlock()
	c.onEvict = fn
}

func (c *MemStore) Name() string {
	if c.capacity <= 0 {
		return "mem"
	}
	return fmt.Sprintf("mem(%d MiB)", c.capacity>>20)
}

// UsedMemory returns the bytes held by cached blocks.
func (c *MemStore) UsedMemory() int64 {
	c.Lock()
	defer c.Unlock()
	return c.used
}

// Stats returns the number of cached blocks and the bytes they hold.
func (c *MemStore) Stats() (int64, int64) {
	c.Lock()
	defer c.Unlock()
	var n int64
	for _, pages := range c.containers {
		n += int64(len(pages))
	}
	return n, c.used
}

func (c *MemStore) CreateContainer(ctx context.Context, name string) error {
	c.Lock()
	defer c.Unlock()
	if _, ok := c.containers[name]; !ok {
		c.containers[name] = make(map[string]memItem)
	}
	return nil
}

func (c *MemStore) DestroyContainer(ctx context.Context, name string) error {
	c.Lock()
	defer c.Unlock()
	for key, item := range c.containers[name] {
		c.delete(name, key, item.page)
	}
	delete(c.containers, name)
	return nil
}

func (c *MemStore) Contains(ctx context.Context, container, key string) (bool, error) {
	c.Lock()
	defer c.Unlock()
	_, ok := c.containers[container][key]
	return ok, nil
}

func (c *MemStore) Get(ctx context.Context, container, key string, buf []byte) error {
	c.Lock()
	defer c.Unlock()
	pages := c.containers[container]
	item, ok := pages[key]
	if !ok {
		return ErrNotFound
	}
	if len(item.page.Data) != len(buf) {
		return errors.Errorf("block %s/%s has %d bytes, want %d", container, key, len(item.page.Data), len(buf))
	}
	copy(buf, item.page.Data)
	pages[key] = memItem{time.Now(), item.page}
	return nil
}

func (c *MemStore) Put(ctx context.Context, container, key string, buf []byte) error {
	p := NewPage(len(buf))
	copy(p.Data, buf)
	c.Lock()
	defer c.Unlock()
	pages, ok := c.containers[container]
	if !ok {
		pages = make(map[string]memItem)
		c.containers[container] = pages
	}
	if old, ok := pages[key]; ok {
		c.delete(container, key, old.page)
	}
	pages[key] = memItem{time.Now(), p}
	c.used += int64(cap(p.Data))
	if c.capacity > 0 && c.used > c.capacity {
		c.cleanup()
	}
	return nil
}

// locked
func (c *MemStore) delete(container, key string, p *Page) {
	c.used -= int64(cap(p.Data))
	p.Release()
	delete(c.containers[container], key)
}

// locked
func (c *MemStore) cleanup() {
	var cnt int
	var lastContainer, lastKey string
	var lastValue memItem
	var now = time.Now()
	// for each two random keys, then compare the access time, evict the older one
	for name, pages := range c.containers {
		for k, v := range pages {
			if cnt == 0 || lastValue.atime.After(v.atime) {
				lastContainer = name
				lastKey = k
				lastValue = v
			}
			cnt++
			if cnt > 1 {
				if c.onEvict != nil {
					if err := c.onEvict(lastContainer, lastKey, lastValue.page); err != nil {
						logger.Errorf("demote %s/%s: %s", lastContainer, lastKey, err)
						return
					}
				}
				logger.Debugf("evict %s/%s from memory, age: %s", lastContainer, lastKey, now.Sub(lastValue.atime))
				c.delete(lastContainer, lastKey, lastValue.page)
				cnt = 0
				if c.used <= c.capacity {
					return
				}
			}
		}
	}
}

var _ Store = &MemStore{}
