// Package cache provides the byte cache used for registry metadata, plus the
// retry helpers shared by every network client.
//
// Three backends implement [Cache]:
//
//   - [FileCache]: one JSON envelope per key under a local directory (default)
//   - [RedisCache]: a shared redis instance, for CI fleets that want one warm cache
//   - [NullCache]: caching disabled (--refresh, tests)
//
// Keys are built with [Key] so that different registries never collide:
//
//	c, _ := cache.NewFileCache(dir)
//	data, hit, _ := c.Get(ctx, cache.Key("metadata", registryURL, "react"))
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache stores opaque byte payloads with an optional time-to-live.
type Cache interface {
	// Get returns the payload for key. A miss (absent or expired) is
	// reported as (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Key joins a namespace and its parts into a cache key.
// The parts are hashed so arbitrary strings (URLs, scoped names) are safe.
func Key(namespace string, parts ...string) string {
	return namespace + ":" + Hash([]byte(strings.Join(parts, "\x00")))
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
