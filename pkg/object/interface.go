// pkg/object/interface.go

package object

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"TierBuf/pkg/utils"
)

var logger = utils.GetLogger("tierbuf")

// UserAgent is sent by the backends that talk HTTP.
var UserAgent = "TierBuf"

// ErrNotFound is returned by Get and Head for a missing key.
var ErrNotFound = os.ErrNotExist

// Object is the metadata of a stored object.
type Object interface {
	Key() string
	Size() int64
	Mtime() time.Time
}

type obj struct {
	key   string
	size  int64
	mtime time.Time
}

func (o *obj) Key() string      { return o.key }
func (o *obj) Size() int64      { return o.size }
func (o *obj) Mtime() time.Time { return o.mtime }

// ObjectStorage is a flat key space of immutable objects.
type ObjectStorage interface {
	// String describes the storage, e.g. file:///var/tierbuf/
	String() string
	// Create creates the bucket if it does not exist.
	Create() error
	// Get returns up to limit bytes of the object starting at off; limit -1 reads to the end.
	Get(key string, off, limit int64) (io.ReadCloser, error)
	// Put stores the object, replacing an existing one.
	Put(key string, in io.Reader) error
	// Delete removes the object. Deleting a missing key is not an error.
	Delete(key string) error
	// Head returns the metadata of the object.
	Head(key string) (Object, error)
	// List returns up to limit objects whose key has prefix and sorts after marker.
	List(prefix, marker string, limit int64) ([]Object, error)
}

type Creator func(bucket, accessKey, secretKey string) (ObjectStorage, error)

var storages = make(map[string]Creator)

// Register makes a backend available to CreateStorage.
func Register(name string, register Creator) {
	storages[name] = register
}

// CreateStorage builds the backend registered as name.
func CreateStorage(name, endpoint, accessKey, secretKey string) (ObjectStorage, error) {
	f, ok := storages[strings.ToLower(name)]
	if ok {
		logger.Debugf("Creating %s storage at endpoint %s", name, endpoint)
		return f(endpoint, accessKey, secretKey)
	}
	return nil, fmt.Errorf("invalid storage: %s", name)
}

// ListAll pages through List until every key under prefix is returned.
func ListAll(store ObjectStorage, prefix string) ([]Object, error) {
	var all []Object
	marker := ""
	for {
		objs, err := store.List(prefix, marker, 1000)
		if err != nil {
			return nil, err
		}
		all = append(all, objs...)
		if len(objs) < 1000 {
			return all, nil
		}
		marker = objs[len(objs)-1].Key()
	}
}
