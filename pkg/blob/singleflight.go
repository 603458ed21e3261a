// pkg/blob/singleflight.go

package blob

import "sync"

type request struct {
	wg  sync.WaitGroup
	val *Page
	ref int
	err error
}

// Controller runs one fetch per key at a time, concurrent callers share its page.
type Controller struct {
	sync.Mutex
	rs map[string]*request
}

// Execute returns the page produced by fn for key. Every caller owns one
// reference of the returned page and must release it.
func (con *Controller) Execute(key string, fn func() (*Page, error)) (*Page, error) {
	con.Lock()
	if con.rs == nil {
		con.rs = make(map[string]*request)
	}
	if c, ok := con.rs[key]; ok {
		c.ref++
		con.Unlock()
		c.wg.Wait()
		if c.val != nil {
			c.val.Acquire()
		}
		con.Lock()
		c.ref--
		if c.ref == 0 && c.val != nil {
			c.val.Release()
		}
		con.Unlock()
		return c.val, c.err
	}
	c := new(request)
	c.wg.Add(1)
	c.ref++
	con.rs[key] = c
	con.Unlock()

	c.val, c.err = fn()
	if c.val != nil {
		// the request holds one reference until every waiter took its own
		c.val.Acquire()
	}
	c.wg.Done()

	con.Lock()
	c.ref--
	if c.ref == 0 && c.val != nil {
		c.val.Release()
	}
	delete(con.rs, key)
	con.Unlock()

	return c.val, c.err
}
