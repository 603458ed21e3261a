// cmd/check.go

package main

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"TierBuf/pkg/blob"
	"TierBuf/pkg/object"
	"TierBuf/pkg/pagebuf"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

func checkFlags() *cli.Command {
	return &cli.Command{
		Name:   "check",
		Usage:  "check that every configured tier stores and returns blocks",
		Action: check,
		Flags: append(storageFlags(),
			&cli.IntFlag{
				Name:  "retries",
				Value: 3,
				Usage: "attempts for each check",
			},
		),
	}
}

func doTesting(store object.ObjectStorage, key string, data []byte) error {
	if err := store.Put(key, bytes.NewReader(data)); err != nil {
		if strings.Contains(err.Error(), "Access Denied") {
			return fmt.Errorf("Failed to put: %s", err)
		}
		if err2 := store.Create(); err2 != nil {
			return fmt.Errorf("Failed to create %s: %s,  previous error: %s\nplease create bucket %s manually, then check again",
				store, err2, err, store)
		}
		if err := store.Put(key, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("Failed to put: %s", err)
		}
	}
	p, err := store.Get(key, 0, -1)
	if err != nil {
		return fmt.Errorf("Failed to get: %s", err)
	}
	data2, err := io.ReadAll(p)
	_ = p.Close()
	if err != nil {
		return err
	}
	if !bytes.Equal(data, data2) {
		return fmt.Errorf("Read wrong data")
	}
	err = store.Delete(key)
	if err != nil {
		// it's OK to don't have deletion permission
		logger.Warnf("Failed to delete: %s", err)
	}
	return nil
}

// testBlocks puts a block into every tier of t and reads it back.
func testBlocks(ctx context.Context, t *blob.Tiered, bs int) error {
	name := "check-" + uuid.NewString()
	data := make([]byte, bs)
	_, _ = crand.Read(data)
	key := blob.BlockKey(uint64(time.Now().UnixNano()))
	for _, s := range t.Tiers() {
		if err := s.CreateContainer(ctx, name); err != nil {
			return fmt.Errorf("create container in %s: %s", s.Name(), err)
		}
		err := s.Put(ctx, name, key, data)
		if err == nil {
			var ok bool
			if ok, err = s.Contains(ctx, name, key); err == nil && !ok {
				err = fmt.Errorf("block is missing after put")
			}
		}
		if err == nil {
			got := make([]byte, bs)
			if err = s.Get(ctx, name, key, got); err == nil && !bytes.Equal(data, got) {
				err = fmt.Errorf("read wrong data")
			}
		}
		if e := s.DestroyContainer(ctx, name); e != nil && err == nil {
			err = e
		}
		if err != nil {
			return fmt.Errorf("%s: %s", s.Name(), err)
		}
		logger.Infof("%s is OK", s.Name())
	}
	return nil
}

func retry(n int, fn func() error) error {
	var err error
	for i := 0; i < n; i++ {
		if err = fn(); err == nil {
			return nil
		}
		logger.Warnf("attempt %d: %s", i+1, err)
		time.Sleep(time.Second * time.Duration(i*3+1))
	}
	return err
}

func check(c *cli.Context) error {
	conf, t := setup(c)
	defer t.Close()
	n := max(c.Int("retries"), 1)
	if t.storage != nil {
		key := "testing/" + uuid.NewString()[:10]
		data := make([]byte, 100)
		_, _ = crand.Read(data)
		if err := retry(n, func() error { return doTesting(t.storage, key, data) }); err != nil {
			return fmt.Errorf("storage %s is not configured correctly: %s", t.storage, err)
		}
	}
	bs := conf.BlockSize
	if bs == 0 {
		bs = pagebuf.DefaultBlockSize
	}
	if err := retry(n, func() error { return testBlocks(context.Background(), t.Tiered, bs) }); err != nil {
		return err
	}
	logger.Infof("all tiers of %s are OK", t.Name())
	return nil
}
