// cmd/storage.go

package main

import (
	"fmt"
	"os"
	"path"
	"runtime"
	"strings"
	"time"

	"TierBuf/pkg/blob"
	"TierBuf/pkg/compress"
	"TierBuf/pkg/object"
	"TierBuf/pkg/pagebuf"
	"TierBuf/pkg/version"

	"github.com/urfave/cli/v2"
)

// storeConf is the effective tier configuration of one invocation.
type storeConf struct {
	BlockSize   int
	CacheSize   int64
	Redis       string `json:",omitempty"`
	Storage     string `json:",omitempty"`
	Bucket      string `json:",omitempty"`
	AccessKey   string `json:",omitempty"`
	SecretKey   string `json:",omitempty"`
	EncryptKey  string `json:",omitempty"`
	Compression string
	UploadLimit int64 `json:",omitempty"`
	DownLimit   int64 `json:",omitempty"`
	SlowOp      time.Duration
}

func (c *storeConf) removeSecret() {
	if c.SecretKey != "" {
		c.SecretKey = "removed"
	}
	if c.EncryptKey != "" {
		c.EncryptKey = "removed"
	}
	if i := strings.Index(c.Redis, "@"); i > 0 {
		if j := strings.Index(c.Redis, "://"); j > 0 && j < i {
			c.Redis = c.Redis[:j+3] + "***" + c.Redis[i:]
		}
	}
}

func (c *storeConf) session(persistent bool) pagebuf.Config {
	return pagebuf.Config{BlockSize: c.BlockSize, Persistent: persistent, SlowOp: c.SlowOp}
}

func storageFlags() []cli.Flag {
	var defaultBucket string
	switch runtime.GOOS {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Fatalf("%v", err)
		}
		defaultBucket = path.Join(homeDir, ".tierbuf", "blocks")
	case "windows":
		defaultBucket = path.Join("C:/tierbuf/blocks")
	default:
		defaultBucket = "/var/tierbuf"
	}
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "block-size",
			Value: pagebuf.DefaultBlockSize >> 10,
			Usage: "size of block in KiB",
		},
		&cli.Int64Flag{
			Name:  "cache-size",
			Value: 1024,
			Usage: "size of the memory tier in MiB, 0 means unlimited",
		},
		&cli.StringFlag{
			Name:  "redis",
			Usage: "redis URL of a tier below memory (e.g. redis://:pass@host:6379/1)",
		},
		&cli.StringFlag{
			Name:  "storage",
			Value: "file",
			Usage: "object storage type of the last tier (file, minio, s3, sftp), empty to disable",
		},
		&cli.StringFlag{
			Name:  "bucket",
			Value: defaultBucket,
			Usage: "a bucket URL to store blocks",
		},
		&cli.StringFlag{
			Name:    "access-key",
			EnvVars: []string{"ACCESS_KEY"},
			Usage:   "access key for object storage",
		},
		&cli.StringFlag{
			Name:    "secret-key",
			EnvVars: []string{"SECRET_KEY"},
			Usage:   "secret key for object storage",
		},
		&cli.StringFlag{
			Name:  "compress",
			Value: "none",
			Usage: "compression algorithm of stored blocks (lz4, zstd, none)",
		},
		&cli.StringFlag{
			Name:  "encrypt-rsa-key",
			Usage: "a path to RSA private key (PEM), passphrase in env TIERBUF_RSA_PASSPHRASE",
		},
		&cli.Int64Flag{
			Name:  "upload-limit",
			Usage: "bandwidth limit for upload in Mbps",
		},
		&cli.Int64Flag{
			Name:  "download-limit",
			Usage: "bandwidth limit for download in Mbps",
		},
		&cli.DurationFlag{
			Name:  "slow-op",
			Value: 10 * time.Second,
			Usage: "log reads and writes slower than this",
		},
	}
}

func loadStoreConf(c *cli.Context) (*storeConf, error) {
	conf := &storeConf{
		BlockSize:   c.Int("block-size") << 10,
		CacheSize:   c.Int64("cache-size") << 20,
		Redis:       c.String("redis"),
		Storage:     strings.ToLower(c.String("storage")),
		Bucket:      c.String("bucket"),
		AccessKey:   c.String("access-key"),
		SecretKey:   c.String("secret-key"),
		Compression: c.String("compress"),
		UploadLimit: c.Int64("upload-limit") * 1e6 / 8,
		DownLimit:   c.Int64("download-limit") * 1e6 / 8,
		SlowOp:      c.Duration("slow-op"),
	}
	if conf.BlockSize < 0 {
		return nil, fmt.Errorf("invalid block size: %d KiB", c.Int("block-size"))
	}
	if compress.NewCompressor(conf.Compression) == nil {
		return nil, fmt.Errorf("unsupported compress algorithm: %s", conf.Compression)
	}
	os.Unsetenv("ACCESS_KEY")
	os.Unsetenv("SECRET_KEY")
	if conf.Storage == "file" && !strings.HasSuffix(conf.Bucket, "/") {
		conf.Bucket += "/"
	}
	if keyPath := c.String("encrypt-rsa-key"); keyPath != "" {
		pem, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("load RSA key from %s: %s", keyPath, err)
		}
		conf.EncryptKey = string(pem)
	}
	return conf, nil
}

func createStorage(conf *storeConf) (object.ObjectStorage, error) {
	object.UserAgent = "TierBuf-" + version.Version()
	store, err := object.CreateStorage(conf.Storage, conf.Bucket, conf.AccessKey, conf.SecretKey)
	if err != nil {
		return nil, err
	}
	store = object.WithPrefix(store, "tierbuf/")

	if conf.EncryptKey != "" {
		passphrase := os.Getenv("TIERBUF_RSA_PASSPHRASE")
		privKey, err := object.ParseRsaPrivateKeyFromPem(conf.EncryptKey, passphrase)
		if err != nil {
			return nil, fmt.Errorf("load private key: %s", err)
		}
		encryptor := object.NewAESEncryptor(object.NewRSAEncryptor(privKey))
		store = object.NewEncrypted(store, encryptor)
	}
	return object.NewLimited(store, conf.UploadLimit, conf.DownLimit), nil
}

// tiers holds the stores of one invocation and what has to be closed with them.
type tiers struct {
	*blob.Tiered
	mem     *blob.MemStore
	storage object.ObjectStorage
	closers []func() error
}

func (t *tiers) Close() {
	for _, c := range t.closers {
		if err := c(); err != nil {
			logger.Warnf("close: %s", err)
		}
	}
}

// createTiers stacks memory, the optional redis tier and the optional object
// storage, fastest first.
func createTiers(conf *storeConf) (*tiers, error) {
	t := &tiers{}
	lower := conf.Redis != "" || conf.Storage != ""
	if !lower && conf.CacheSize > 0 {
		logger.Warnf("no tier below memory, cache size %d MiB is not enforced", conf.CacheSize>>20)
		conf.CacheSize = 0
	}
	t.mem = blob.NewMemStore(conf.CacheSize)
	stores := []blob.Store{t.mem}
	if conf.Redis != "" {
		r, err := blob.NewRedisStore(conf.Redis, 10)
		if err != nil {
			return nil, fmt.Errorf("redis tier: %s", err)
		}
		t.closers = append(t.closers, r.Close)
		stores = append(stores, r)
	}
	if conf.Storage != "" {
		storage, err := createStorage(conf)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("object storage: %s", err)
		}
		t.storage = storage
		stores = append(stores, blob.NewObjectStore(storage, compress.NewCompressor(conf.Compression)))
	}
	t.Tiered = blob.NewTiered(stores...)
	logger.Debugf("blocks are kept in %s", t.Name())
	return t, nil
}

func setup(c *cli.Context) (*storeConf, *tiers) {
	setLoggerLevel(c)
	conf, err := loadStoreConf(c)
	if err != nil {
		logger.Fatalf("%s", err)
	}
	t, err := createTiers(conf)
	if err != nil {
		logger.Fatalf("%s", err)
	}
	return conf, t
}

func newRegistry(t *tiers) *blob.Registry {
	return blob.NewRegistry(t.Tiered)
}
