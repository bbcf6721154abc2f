package fundmatch

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	bolt "go.etcd.io/bbolt"
)

// VectorCache stores query embeddings in memory and, when a path is
// configured, in a bbolt file with one bucket per model id.
type VectorCache struct {
	mu     sync.RWMutex
	mem    map[uint64][]float32
	db     *bolt.DB
	bucket []byte
}

// OpenVectorCache opens (or creates) the cache. An empty path keeps the
// cache in memory only.
func OpenVectorCache(path, modelID string) (*VectorCache, error) {
	if modelID == "" {
		modelID = "default"
	}
	c := &VectorCache{
		mem:    make(map[uint64][]float32),
		bucket: []byte(modelID),
	}
	if path == "" {
		return c, nil
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open vector cache: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(c.bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}
	c.db = db
	return c, nil
}

// Key hashes model id and text together.
func (c *VectorCache) Key(text string) uint64 {
	d := xxhash.New()
	_, _ = d.Write(c.bucket)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(text)
	return d.Sum64()
}

// Get returns a copy of the cached vector.
func (c *VectorCache) Get(key uint64) ([]float32, bool) {
	c.mu.RLock()
	vec, ok := c.mem[key]
	db := c.db
	c.mu.RUnlock()
	if ok {
		return cloneVector(vec), true
	}
	if db == nil {
		return nil, false
	}
	var data []byte
	_ = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return nil
		}
		if v := b.Get(boltKey(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if data == nil {
		return nil, false
	}
	vec, err := decodeVector(data)
	if err != nil {
		return nil, false
	}
	c.mu.Lock()
	c.mem[key] = cloneVector(vec)
	c.mu.Unlock()
	return vec, true
}

// Lookup is Get restricted to vectors of length dim. Entries of any other
// length are dropped from memory and reported as misses.
func (c *VectorCache) Lookup(key uint64, dim int) ([]float32, bool) {
	vec, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	if len(vec) != dim {
		c.mu.Lock()
		delete(c.mem, key)
		c.mu.Unlock()
		return nil, false
	}
	return vec, true
}

// Put stores vec in memory and, when persistent, on disk.
func (c *VectorCache) Put(key uint64, vec []float32) error {
	c.mu.Lock()
	c.mem[key] = cloneVector(vec)
	db := c.db
	c.mu.Unlock()
	if db == nil {
		return nil
	}
	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(c.bucket)
		if err != nil {
			return err
		}
		return b.Put(boltKey(key), encodeVector(vec))
	})
}

// Len reports how many vectors are held in memory.
func (c *VectorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mem)
}

// Close flushes and closes the bbolt file.
func (c *VectorCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem = make(map[uint64][]float32)
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func boltKey(key uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, key)
	return buf
}
