// Package redirectcache remembers where short links redirect to, so repeat
// resolutions of the same share link skip the network.
package redirectcache

import (
	"encoding/json"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var buckets = struct {
	Metadata  []byte
	Redirects []byte
}{
	Metadata:  []byte("__metadata__"),
	Redirects: []byte("redirects"),
}

var metadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

// A Cache is a bbolt-backed persistent redirect map.
type Cache struct {
	db  *bbolt.DB
	log *zap.SugaredLogger
}

// Open opens (creating if necessary) the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		metadata, err := tx.CreateBucketIfNotExists(buckets.Metadata)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(buckets.Redirects); err != nil {
			return err
		}
		versionBytes, err := json.Marshal(currentVersion)
		if err != nil {
			return err
		}
		return metadata.Put(metadataKeys.Version, versionBytes)
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Cache{db: db, log: zap.S().Named("redirectcache")}, nil
}

// Get returns the recorded final URL for a short link, if any.
func (c *Cache) Get(rawURL string) (string, bool) {
	var final string
	err := c.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(buckets.Redirects).Get([]byte(rawURL)); v != nil {
			final = string(v)
		}
		return nil
	})
	if err != nil || final == "" {
		return "", false
	}
	return final, true
}

// Put records the final URL a redirect chain arrived at. Failures are logged;
// the cache is an optimization, never load-bearing.
func (c *Cache) Put(rawURL, finalURL string) {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(buckets.Redirects).Put([]byte(rawURL), []byte(finalURL))
	})
	if err != nil {
		c.log.Warnw("failed to cache redirect", "url", rawURL, "error", err)
	}
}

func (c *Cache) Close() error {
	return c.db.Close()
}
