package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *FragmentCache {
	c, err := New(100)
	require.NoError(t, err)
	return c
}

func TestSetGet(t *testing.T) {
	c := newTestCache(t)

	c.Set("feed:all:page:1", "rendered", time.Minute)

	got := c.Get("feed:all:page:1")
	assert.Equal(t, "rendered", got)
}

func TestGetMiss(t *testing.T) {
	c := newTestCache(t)

	assert.Nil(t, c.Get("nope"))
}

func TestRepeatedGetReturnsSameValue(t *testing.T) {
	c := newTestCache(t)

	data := map[string]int{"posts": 3}
	c.Set("k", data, time.Minute)

	first := c.Get("k")
	second := c.Get("k")
	assert.Equal(t, first, second)
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)

	c.Set("k", "v", 30*time.Millisecond)
	assert.Equal(t, "v", c.Get("k"))

	time.Sleep(60 * time.Millisecond)
	assert.Nil(t, c.Get("k"))
}

func TestDelete(t *testing.T) {
	c := newTestCache(t)

	c.Set("k", "v", time.Minute)
	c.Delete("k")

	// Invalidation wins over the remaining ttl.
	assert.Nil(t, c.Get("k"))
}

func TestDeleteMissingKeyIsNoop(t *testing.T) {
	c := newTestCache(t)
	c.Delete("never-set")
}

func TestDeletePrefix(t *testing.T) {
	c := newTestCache(t)

	c.Set("feed:all:page:1", "p1", time.Minute)
	c.Set("feed:all:page:2", "p2", time.Minute)
	c.Set("feed:group:tech:page:1", "g1", time.Minute)

	c.DeletePrefix("feed:all:")

	assert.Nil(t, c.Get("feed:all:page:1"))
	assert.Nil(t, c.Get("feed:all:page:2"))
	assert.Equal(t, "g1", c.Get("feed:group:tech:page:1"))
}

func TestClear(t *testing.T) {
	c := newTestCache(t)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Clear()

	assert.Nil(t, c.Get("a"))
	assert.Nil(t, c.Get("b"))
}

func TestLastWriterWins(t *testing.T) {
	c := newTestCache(t)

	c.Set("k", "old", time.Minute)
	c.Set("k", "new", time.Minute)

	assert.Equal(t, "new", c.Get("k"))
}

func TestConcurrentAccess(t *testing.T) {
	c := newTestCache(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("feed:all:page:%d", j%5)
				c.Set(key, n, time.Minute)
				c.Get(key)
				if j%10 == 0 {
					c.DeletePrefix("feed:all:")
				}
			}
		}(i)
	}
	wg.Wait()
}
