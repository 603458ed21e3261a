// pkg/blob/redis_store.go

package blob

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const allContainers = "containers"

// RedisStore keeps every container in one redis hash, field = block key.
type RedisStore struct {
	rdb    *redis.Client
	addr   string
	prefix string
}

// NewRedisStore connects to the redis at url, e.g. redis://:pass@host:6379/1.
// A host list "master,sentinel1,sentinel2" connects through redis sentinels.
func NewRedisStore(url string, retries int) (*RedisStore, error) {
	if !strings.Contains(url, "://") {
		url = "redis://" + url
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %s", url, err)
	}

	var rdb *redis.Client
	if strings.Contains(opt.Addr, ",") {
		var fopt redis.FailoverOptions
		ps := strings.Split(opt.Addr, ",")
		fopt.MasterName = ps[0]
		fopt.SentinelAddrs = ps[1:]

		defaultSentinelPort := "26379"
		for i, saddr := range fopt.SentinelAddrs {
			h, p, err := net.SplitHostPort(saddr)
			if err != nil {
				fopt.SentinelAddrs[i] = net.JoinHostPort(saddr, defaultSentinelPort)
			} else if p == "" {
				fopt.SentinelAddrs[i] = net.JoinHostPort(h, defaultSentinelPort)
			}
		}

		fopt.Username = opt.Username
		fopt.Password = opt.Password
		if fopt.Password == "" && os.Getenv("REDIS_PASSWORD") != "" {
			fopt.Password = os.Getenv("REDIS_PASSWORD")
		}
		fopt.SentinelPassword = os.Getenv("SENTINEL_PASSWORD")
		fopt.DB = opt.DB
		fopt.TLSConfig = opt.TLSConfig
		fopt.MaxRetries = retries
		fopt.MinRetryBackoff = time.Millisecond * 100
		fopt.MaxRetryBackoff = time.Minute * 1
		fopt.ReadTimeout = time.Second * 30
		fopt.WriteTimeout = time.Second * 5
		rdb = redis.NewFailoverClient(&fopt)
	} else {
		if opt.Password == "" && os.Getenv("REDIS_PASSWORD") != "" {
			opt.Password = os.Getenv("REDIS_PASSWORD")
		}
		opt.MaxRetries = retries
		opt.MinRetryBackoff = time.Millisecond * 100
		opt.MaxRetryBackoff = time.Minute * 1
		opt.ReadTimeout = time.Second * 30
		opt.WriteTimeout = time.Second * 5
		rdb = redis.NewClient(opt)
	}
	return &RedisStore{rdb: rdb, addr: opt.Addr, prefix: "tb:"}, nil
}

func (r *RedisStore) Name() string {
	return "redis://" + r.addr
}

func (r *RedisStore) containerKey(name string) string {
	return r.prefix + "c:" + name
}

// Close closes the connections to redis.
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

func (r *RedisStore) CreateContainer(ctx context.Context, name string) error {
	return r.rdb.SAdd(ctx, r.prefix+allContainers, name).Err()
}

func (r *RedisStore) DestroyContainer(ctx context.Context, name string) error {
	return r.retry(ctx, func() error {
		_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.containerKey(name))
			pipe.SRem(ctx, r.prefix+allContainers, name)
			return nil
		})
		return err
	})
}

// Containers lists the containers created and not yet destroyed.
func (r *RedisStore) Containers(ctx context.Context) ([]string, error) {
	return r.rdb.SMembers(ctx, r.prefix+allContainers).Result()
}

func (r *RedisStore) Contains(ctx context.Context, container, key string) (bool, error) {
	return r.rdb.HExists(ctx, r.containerKey(container), key).Result()
}

func (r *RedisStore) Get(ctx context.Context, container, key string, buf []byte) error {
	data, err := r.rdb.HGet(ctx, r.containerKey(container), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "hget %s/%s", container, key)
	}
	if len(data) != len(buf) {
		return errors.Errorf("block %s/%s has %d bytes, want %d", container, key, len(data), len(buf))
	}
	copy(buf, data)
	return nil
}

func (r *RedisStore) Put(ctx context.Context, container, key string, buf []byte) error {
	err := r.retry(ctx, func() error {
		return r.rdb.HSet(ctx, r.containerKey(container), key, buf).Err()
	})
	if err != nil {
		return errors.Wrapf(err, "hset %s/%s", container, key)
	}
	return nil
}

type timeoutError interface {
	Timeout() bool
}

// shouldRetry reports whether a failed command may succeed when sent again.
// Every command of the store is idempotent, so timeouts and broken
// connections are retried as well.
func shouldRetry(err error) bool {
	switch {
	case errors.Is(err, redis.TxFailedErr):
		return true
	case err == io.EOF, errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}

	if v, ok := err.(timeoutError); ok && v.Timeout() {
		return true
	}

	s := err.Error()
	if s == "ERR max number of clients reached" {
		return true
	}
	ps := strings.SplitN(s, " ", 3)
	switch ps[0] {
	case "LOADING":
	case "READONLY":
	case "CLUSTERDOWN":
	case "TRYAGAIN":
	case "MOVED":
	case "ASK":
	case "ERR":
		if len(ps) > 1 {
			switch ps[1] {
			case "DISABLE":
				fallthrough
			case "NOWRITE":
				fallthrough
			case "NOREAD":
				return true
			}
		}
		return false
	default:
		return false
	}
	return true
}

func (r *RedisStore) retry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < 50; i++ {
		err = fn()
		if !shouldRetry(err) || ctx.Err() != nil {
			return err
		}
		time.Sleep(time.Microsecond * 100 * time.Duration(rand.Int()%(i+1)))
	}
	return err
}

var _ Store = &RedisStore{}
