package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dsnet/compress/bzip2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

type CacheConfig struct {
	// Path is the tile-store directory backing the on-disk blob layer.
	// Empty disables the disk layer, leaving memory-only caching.
	Path       string
	MaxEntries int
}

// Cache stores raw route payloads keyed by request uri: an in-memory lru in
// front of compressed blobs under the tile-store path. The offline source
// serves exclusively from here.
type Cache struct {
	mem  *lru.Cache[string, []byte]
	path string
	log  *zap.Logger
}

func BuildCache(cfg CacheConfig, log *zap.Logger) (*Cache, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 128
	}
	mem, err := lru.New[string, []byte](cfg.MaxEntries)
	if err != nil {
		return nil, err
	}
	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating tile store directory: %w", err)
		}
	}
	return &Cache{
		mem:  mem,
		path: cfg.Path,
		log:  log,
	}, nil
}

func (c *Cache) Get(key string) ([]byte, bool) {
	if payload, ok := c.mem.Get(key); ok {
		return payload, true
	}
	if c.path == "" {
		return nil, false
	}
	payload, err := c.readBlob(key)
	if err != nil {
		return nil, false
	}
	c.mem.Add(key, payload)
	return payload, true
}

func (c *Cache) Put(key string, payload []byte) {
	c.mem.Add(key, payload)
	if c.path == "" {
		return
	}
	if err := c.writeBlob(key, payload); err != nil {
		c.log.Warn("tile store write failed", zap.Error(err))
	}
}

func (c *Cache) Len() int {
	return c.mem.Len()
}

func (c *Cache) blobPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.path, hex.EncodeToString(sum[:])+".bz2")
}

func (c *Cache) readBlob(key string) ([]byte, error) {
	f, err := os.Open(c.blobPath(key))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := bzip2.NewReader(f, nil)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

func (c *Cache) writeBlob(key string, payload []byte) error {
	f, err := os.Create(c.blobPath(key))
	if err != nil {
		return err
	}

	w, err := bzip2.NewWriter(f, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
	if err != nil {
		f.Close()
		return err
	}
	if _, err := w.Write(payload); err != nil {
		w.Close()
		f.Close()
		return err
	}
	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
