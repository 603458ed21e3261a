// pkg/object/prefix.go

package object

import (
	"fmt"
	"io"
	"strings"
)

type withPrefix struct {
	os     ObjectStorage
	prefix string
}

// WithPrefix returns an object storage that adds the prefix to every key.
func WithPrefix(os ObjectStorage, prefix string) ObjectStorage {
	return &withPrefix{os, prefix}
}

func (p *withPrefix) String() string {
	return fmt.Sprintf("%s%s", p.os, p.prefix)
}

func (p *withPrefix) Create() error {
	return p.os.Create()
}

func (p *withPrefix) Get(key string, off, limit int64) (io.ReadCloser, error) {
	return p.os.Get(p.prefix+key, off, limit)
}

func (p *withPrefix) Put(key string, in io.Reader) error {
	return p.os.Put(p.prefix+key, in)
}

func (p *withPrefix) Delete(key string) error {
	return p.os.Delete(p.prefix + key)
}

func (p *withPrefix) Head(key string) (Object, error) {
	o, err := p.os.Head(p.prefix + key)
	if err != nil {
		return nil, err
	}
	return &obj{strings.TrimPrefix(o.Key(), p.prefix), o.Size(), o.Mtime()}, nil
}

func (p *withPrefix) List(prefix, marker string, limit int64) ([]Object, error) {
	if marker != "" {
		marker = p.prefix + marker
	}
	objs, err := p.os.List(p.prefix+prefix, marker, limit)
	if err != nil {
		return nil, err
	}
	ln := len(p.prefix)
	for i, o := range objs {
		objs[i] = &obj{o.Key()[ln:], o.Size(), o.Mtime()}
	}
	return objs, nil
}

var _ ObjectStorage = &withPrefix{}
