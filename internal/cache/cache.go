package cache

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// IndexTTL is how long a cached index feed page stays valid without writes.
const IndexTTL = 20 * time.Second

// item wraps cached data with an absolute expiry.
type item struct {
	data      interface{}
	expiresAt time.Time
}

// FragmentCache memoizes rendered page data keyed by feed identity.
// It is an optimization only: entries may be evicted under capacity
// pressure and callers must always be able to recompute. All methods
// are safe for concurrent use.
type FragmentCache struct {
	lruCache *lru.Cache[string, item]
}

// New creates a FragmentCache holding at most size entries.
func New(size int) (*FragmentCache, error) {
	l, err := lru.New[string, item](size)
	if err != nil {
		return nil, err
	}
	return &FragmentCache{lruCache: l}, nil
}

// Set stores data under key until now + ttl. Last writer wins.
func (c *FragmentCache) Set(key string, data interface{}, ttl time.Duration) {
	c.lruCache.Add(key, item{
		data:      data,
		expiresAt: time.Now().Add(ttl),
	})
}

// Get returns the cached data for key, or nil if absent or expired.
func (c *FragmentCache) Get(key string) interface{} {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return nil
	}

	if time.Now().After(val.expiresAt) {
		c.lruCache.Remove(key)
		return nil
	}

	return val.data
}

// Delete expires key immediately regardless of remaining ttl.
func (c *FragmentCache) Delete(key string) {
	c.lruCache.Remove(key)
}

// DeletePrefix expires every key starting with prefix. Used by write
// paths to drop all cached pages of a feed in one call.
func (c *FragmentCache) DeletePrefix(prefix string) {
	for _, key := range c.lruCache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lruCache.Remove(key)
		}
	}
}

// Clear drops all entries.
func (c *FragmentCache) Clear() {
	c.lruCache.Purge()
}
