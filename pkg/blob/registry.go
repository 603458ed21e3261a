// pkg/blob/registry.go

package blob

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Registry hands out shared container handles. Sessions opening the same name
// share one container, which is destroyed when the last of them releases it.
type Registry struct {
	sync.Mutex
	store      Store
	containers map[string]*Container
}

// NewRegistry returns a registry of containers kept in store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store, containers: make(map[string]*Container)}
}

// Store returns the store the containers live in.
func (r *Registry) Store() Store {
	return r.store
}

// Acquire returns the container called name, creating it on first use.
func (r *Registry) Acquire(ctx context.Context, name string) (*Container, error) {
	r.Lock()
	defer r.Unlock()
	if c, ok := r.containers[name]; ok {
		c.refs.Add(1)
		return c, nil
	}
	if err := r.store.CreateContainer(ctx, name); err != nil {
		return nil, errors.Wrapf(err, "create container %s", name)
	}
	c := &Container{name: name, reg: r}
	c.refs.Store(1)
	r.containers[name] = c
	logger.Debugf("created container %s in %s", name, r.store.Name())
	return c, nil
}

// Container is a handle to a named group of blocks.
type Container struct {
	name string
	reg  *Registry
	refs atomic.Int32
}

func (c *Container) Name() string {
	return c.name
}

// Refs returns the number of sessions holding the container.
func (c *Container) Refs() int32 {
	return c.refs.Load()
}

func (c *Container) Contains(ctx context.Context, key string) (bool, error) {
	return c.reg.store.Contains(ctx, c.name, key)
}

func (c *Container) Get(ctx context.Context, key string, buf []byte) error {
	return c.reg.store.Get(ctx, c.name, key, buf)
}

func (c *Container) Put(ctx context.Context, key string, buf []byte) error {
	return c.reg.store.Put(ctx, c.name, key, buf)
}

// Release drops one reference. The last one destroys the container.
func (c *Container) Release(ctx context.Context) error {
	r := c.reg
	r.Lock()
	defer r.Unlock()
	refs := c.refs.Add(-1)
	if refs > 0 {
		logger.Debugf("closed handle of container %s, %d left", c.name, refs)
		return nil
	}
	if refs < 0 {
		return errors.Errorf("container %s released more than acquired", c.name)
	}
	delete(r.containers, c.name)
	if err := r.store.DestroyContainer(ctx, c.name); err != nil {
		return errors.Wrapf(err, "destroy container %s", c.name)
	}
	logger.Debugf("destroyed container %s", c.name)
	return nil
}
