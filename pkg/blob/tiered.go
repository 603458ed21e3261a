// pkg/blob/tiered.go

package blob

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Tiered stacks stores from fastest to slowest. Blocks land in the first tier,
// a memory tier with a capacity demotes what it evicts into the tier below it,
// reads probe the tiers in order.
type Tiered struct {
	tiers []Store
	group Controller
}

// NewTiered stacks tiers, the first one is the fastest.
func NewTiered(tiers ...Store) *Tiered {
	if len(tiers) == 0 {
		panic("tiered store needs at least one tier")
	}
	t := &Tiered{tiers: tiers}
	for i, s := range tiers[:len(tiers)-1] {
		if m, ok := s.(*MemStore); ok {
			next := tiers[i+1]
			m.OnEvict(func(container, key string, p *Page) error {
				return next.Put(context.Background(), container, key, p.Data)
			})
		}
	}
	return t
}

// Tiers returns the stacked stores, fastest first.
func (t *Tiered) Tiers() []Store {
	return t.tiers
}

func (t *Tiered) Name() string {
	names := make([]string, len(t.tiers))
	for i, s := range t.tiers {
		names[i] = s.Name()
	}
	return "tiered(" + strings.Join(names, ", ") + ")"
}

func (t *Tiered) each(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range t.tiers {
		s := s
		g.Go(func() error {
			return fn(ctx, s)
		})
	}
	return g.Wait()
}

func (t *Tiered) CreateContainer(ctx context.Context, name string) error {
	return t.each(ctx, func(ctx context.Context, s Store) error {
		return errors.Wrapf(s.CreateContainer(ctx, name), "create %s in %s", name, s.Name())
	})
}

func (t *Tiered) DestroyContainer(ctx context.Context, name string) error {
	return t.each(ctx, func(ctx context.Context, s Store) error {
		return errors.Wrapf(s.DestroyContainer(ctx, name), "destroy %s in %s", name, s.Name())
	})
}

func (t *Tiered) Contains(ctx context.Context, container, key string) (bool, error) {
	for _, s := range t.tiers {
		ok, err := s.Contains(ctx, container, key)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (t *Tiered) Get(ctx context.Context, container, key string, buf []byte) error {
	err := t.tiers[0].Get(ctx, container, key, buf)
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	for _, s := range t.tiers[1:] {
		p, err := t.group.Execute(s.Name()+"|"+container+"/"+key, func() (*Page, error) {
			p := NewPage(len(buf))
			if err := s.Get(ctx, container, key, p.Data); err != nil {
				p.Release()
				return nil, err
			}
			return p, nil
		})
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if len(p.Data) == len(buf) {
			copy(buf, p.Data)
		} else {
			err = errors.Errorf("block %s/%s has %d bytes, want %d", container, key, len(p.Data), len(buf))
		}
		p.Release()
		return err
	}
	return ErrNotFound
}

func (t *Tiered) Put(ctx context.Context, container, key string, buf []byte) error {
	return t.tiers[0].Put(ctx, container, key, buf)
}

var _ Store = &Tiered{}
