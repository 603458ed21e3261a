// pkg/object/file.go

package object

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type filestore struct {
	root string
}

func (d *filestore) String() string {
	return "file://" + d.root
}

// root without a trailing slash is a prefix of the file names, not a directory
func (d *filestore) path(key string) string {
	return d.root + key
}

func (d *filestore) Create() error {
	dir := d.root
	if !strings.HasSuffix(dir, "/") {
		dir = filepath.Dir(dir)
	}
	return os.MkdirAll(dir, 0755)
}

type sectionReadCloser struct {
	io.Reader
	f *os.File
}

func (s *sectionReadCloser) Close() error {
	return s.f.Close()
}

func (d *filestore) Get(key string, off, limit int64) (io.ReadCloser, error) {
	f, err := os.Open(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if off == 0 && limit < 0 {
		return f, nil
	}
	if limit < 0 {
		st, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		limit = st.Size() - off
	}
	return &sectionReadCloser{io.NewSectionReader(f, off, limit), f}, nil
}

func (d *filestore) Put(key string, in io.Reader) error {
	p := d.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	tmp := p + ".tmp." + uuid.NewString()[:8]
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err = io.Copy(f, in); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "write %s", key)
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, p)
}

func (d *filestore) Delete(key string) error {
	err := os.Remove(d.path(key))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (d *filestore) Head(key string) (Object, error) {
	st, err := os.Stat(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%s is a directory", key)
	}
	return &obj{key, st.Size(), st.ModTime()}, nil
}

func (d *filestore) List(prefix, marker string, limit int64) ([]Object, error) {
	var objs []Object
	base := d.root
	if !strings.HasSuffix(base, "/") {
		base = filepath.Dir(base) + "/"
	}
	trim := d.root
	err := filepath.WalkDir(base, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if e.IsDir() || strings.Contains(e.Name(), ".tmp.") || !strings.HasPrefix(p, trim) {
			return nil
		}
		key := filepath.ToSlash(p[len(trim):])
		if !strings.HasPrefix(key, prefix) || key <= marker {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		objs = append(objs, &obj{key, info.Size(), info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key() < objs[j].Key() })
	if limit > 0 && int64(len(objs)) > limit {
		objs = objs[:limit]
	}
	return objs, nil
}

func newDisk(root, accesskey, secretkey string) (ObjectStorage, error) {
	root = strings.TrimPrefix(root, "file://")
	if root == "" {
		return nil, fmt.Errorf("empty root for file storage")
	}
	return &filestore{root: root}, nil
}

func init() {
	Register("file", newDisk)
}
