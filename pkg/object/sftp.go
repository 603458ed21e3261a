// pkg/object/sftp.go

package object

import (
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type sftpStore struct {
	sync.Mutex
	host   string
	root   string
	config *ssh.ClientConfig
	client *sftp.Client
}

func (f *sftpStore) String() string {
	return fmt.Sprintf("sftp://%s@%s:%s", f.config.User, f.host, f.root)
}

// sftpClient returns the cached client, redialing when the connection was lost.
func (f *sftpStore) sftpClient() (*sftp.Client, error) {
	f.Lock()
	defer f.Unlock()
	if f.client != nil {
		if _, err := f.client.Getwd(); err == nil {
			return f.client, nil
		}
		_ = f.client.Close()
		f.client = nil
	}
	conn, err := ssh.Dial("tcp", f.host, f.config)
	if err != nil {
		return nil, err
	}
	c, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	f.client = c
	return c, nil
}

func (f *sftpStore) path(key string) string {
	return path.Join(f.root, key)
}

func (f *sftpStore) Create() error {
	c, err := f.sftpClient()
	if err != nil {
		return err
	}
	return c.MkdirAll(f.root)
}

type sftpReader struct {
	io.Reader
	f *sftp.File
}

func (r *sftpReader) Close() error {
	return r.f.Close()
}

func (f *sftpStore) Get(key string, off, limit int64) (io.ReadCloser, error) {
	c, err := f.sftpClient()
	if err != nil {
		return nil, err
	}
	ff, err := c.Open(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if off > 0 {
		if _, err := ff.Seek(off, io.SeekStart); err != nil {
			_ = ff.Close()
			return nil, err
		}
	}
	if limit >= 0 {
		return &sftpReader{io.LimitReader(ff, limit), ff}, nil
	}
	return ff, nil
}

func (f *sftpStore) Put(key string, in io.Reader) error {
	c, err := f.sftpClient()
	if err != nil {
		return err
	}
	p := f.path(key)
	if err := c.MkdirAll(path.Dir(p)); err != nil {
		return err
	}
	tmp := path.Join(path.Dir(p), fmt.Sprintf(".%s.tmp.%d", path.Base(p), time.Now().UnixNano()))
	ff, err := c.Create(tmp)
	if err != nil {
		return err
	}
	if _, err = ff.ReadFrom(in); err != nil {
		_ = ff.Close()
		_ = c.Remove(tmp)
		return err
	}
	if err = ff.Close(); err != nil {
		_ = c.Remove(tmp)
		return err
	}
	return c.PosixRename(tmp, p)
}

func (f *sftpStore) Delete(key string) error {
	c, err := f.sftpClient()
	if err != nil {
		return err
	}
	err = c.Remove(f.path(key))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *sftpStore) Head(key string) (Object, error) {
	c, err := f.sftpClient()
	if err != nil {
		return nil, err
	}
	st, err := c.Stat(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &obj{key, st.Size(), st.ModTime()}, nil
}

func (f *sftpStore) List(prefix, marker string, limit int64) ([]Object, error) {
	c, err := f.sftpClient()
	if err != nil {
		return nil, err
	}
	var objs []Object
	walker := c.Walk(f.root)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		st := walker.Stat()
		if st.IsDir() || strings.Contains(st.Name(), ".tmp.") {
			continue
		}
		key := strings.TrimPrefix(strings.TrimPrefix(walker.Path(), f.root), "/")
		if strings.HasPrefix(key, prefix) && key > marker {
			objs = append(objs, &obj{key, st.Size(), st.ModTime()})
		}
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key() < objs[j].Key() })
	if limit > 0 && int64(len(objs)) > limit {
		objs = objs[:limit]
	}
	return objs, nil
}

// newSftp accepts endpoints in the form host[:port]:/path
func newSftp(endpoint, user, pass string) (ObjectStorage, error) {
	endpoint = strings.TrimPrefix(endpoint, "sftp://")
	idx := strings.LastIndex(endpoint, ":")
	if idx <= 0 {
		return nil, fmt.Errorf("invalid sftp endpoint %s, expect host[:port]:/path", endpoint)
	}
	host, root := endpoint[:idx], endpoint[idx+1:]
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "22")
	}
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(pass)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         time.Second * 10,
	}
	return &sftpStore{host: host, root: root, config: config}, nil
}

func init() {
	Register("sftp", newSftp)
}
