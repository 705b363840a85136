package upstream

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "github.com/boltdb/bolt"
)

const cacheBucket = "responses"

// cacheEntry holds HTTP cache metadata and the body for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
	Body         []byte    `json:"body"`
}

// Cache is a Bolt-backed store of conditional GET responses keyed by URL.
type Cache struct {
	db *bolt.DB
}

// OpenCache opens (or creates) the cache database at path.
func OpenCache(path string) (*Cache, error) {
	if path == "" {
		return nil, errors.New("cache path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cacheBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db}, nil
}

// Close releases the database file lock.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

// get returns the cached entry for url. ok is false when nothing is cached
// or the cache is nil.
func (c *Cache) get(url string) (cacheEntry, bool) {
	var entry cacheEntry
	if c == nil {
		return entry, false
	}

	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(cacheBucket)).Get(cacheKey(url))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &entry)
	})
	if err != nil || !found {
		return cacheEntry{}, false
	}
	return entry, true
}

func (c *Cache) put(entry cacheEntry) error {
	if c == nil {
		return nil
	}
	entry.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(&entry)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(cacheBucket)).Put(cacheKey(entry.URL), data)
	})
}

func cacheKey(url string) []byte {
	sum := sha256.Sum256([]byte(url))
	return []byte(hex.EncodeToString(sum[:8]))
}
