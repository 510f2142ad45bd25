package cache

import "time"

// LayeredCache fronts a slow cache with a fast one. Reads try the front
// layer first; back-layer hits are copied forward with the front TTL.
type LayeredCache struct {
	front    Cache
	back     Cache
	frontTTL time.Duration
}

// NewLayeredCache creates an in-memory layer over a disk cache in diskDir
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return Layer(NewMemoryCache(memoryTTL, 10*time.Minute), NewDiskCache(diskDir, diskTTL), memoryTTL)
}

// Layer composes two caches; frontTTL applies to promoted entries
func Layer(front, back Cache, frontTTL time.Duration) *LayeredCache {
	return &LayeredCache{front: front, back: back, frontTTL: frontTTL}
}

// Get returns the front value, falling back to the back layer
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, ok := c.front.Get(key); ok {
		return val, true
	}
	val, ok := c.back.Get(key)
	if !ok {
		return nil, false
	}
	_ = c.front.Set(key, val, c.frontTTL)
	return val, true
}

// Set writes through to both layers. A front failure does not skip the back layer.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	frontErr := c.front.Set(key, value, ttl)
	if err := c.back.Set(key, value, ttl); err != nil {
		return err
	}
	return frontErr
}

// Delete removes key from both layers
func (c *LayeredCache) Delete(key string) error {
	_ = c.front.Delete(key)
	return c.back.Delete(key)
}

// Clear empties both layers
func (c *LayeredCache) Clear() error {
	_ = c.front.Clear()
	return c.back.Clear()
}
