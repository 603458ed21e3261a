// pkg/object/minio.go

package object

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ctx = context.Background()

type minioStore struct {
	client   *minio.Client
	endpoint string
	bucket   string
}

func (m *minioStore) String() string {
	return fmt.Sprintf("minio://%s/%s/", m.endpoint, m.bucket)
}

func (m *minioStore) Create() error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
}

func notFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func (m *minioStore) Get(key string, off, limit int64) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}
	if off > 0 || limit > 0 {
		end := int64(0)
		if limit > 0 {
			end = off + limit - 1
		}
		if err := opts.SetRange(off, end); err != nil {
			return nil, err
		}
	}
	r, err := m.client.GetObject(ctx, m.bucket, key, opts)
	if err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	// GetObject is lazy, errors only show up on the first read
	if _, err = r.Stat(); err != nil {
		_ = r.Close()
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (m *minioStore) Put(key string, in io.Reader) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, in, -1, minio.PutObjectOptions{})
	return err
}

func (m *minioStore) Delete(key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && notFound(err) {
		return nil
	}
	return err
}

func (m *minioStore) Head(key string) (Object, error) {
	info, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &obj{key, info.Size, info.LastModified}, nil
}

func (m *minioStore) List(prefix, marker string, limit int64) ([]Object, error) {
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var objs []Object
	for info := range m.client.ListObjects(lctx, m.bucket, minio.ListObjectsOptions{
		Prefix:     prefix,
		StartAfter: marker,
		Recursive:  true,
	}) {
		if info.Err != nil {
			return nil, info.Err
		}
		objs = append(objs, &obj{info.Key, info.Size, info.LastModified})
		if limit > 0 && int64(len(objs)) >= limit {
			break
		}
	}
	return objs, nil
}

// newMinio accepts endpoints in the form [http://|https://]host[:port]/bucket
func newMinio(endpoint, accessKey, secretKey string) (ObjectStorage, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	uri, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %s: %s", endpoint, err)
	}
	bucket := strings.Trim(uri.Path, "/")
	if bucket == "" {
		return nil, fmt.Errorf("no bucket in endpoint %s", endpoint)
	}
	client, err := minio.New(uri.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: uri.Scheme == "https",
	})
	if err != nil {
		return nil, err
	}
	client.SetAppInfo("TierBuf", UserAgent)
	return &minioStore{client: client, endpoint: uri.Host, bucket: bucket}, nil
}

func init() {
	Register("minio", newMinio)
	Register("s3", newMinio)
}
