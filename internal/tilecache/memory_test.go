package tilecache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, b Backend, key string) []byte {
	t.Helper()
	data, ok, err := b.Get(context.Background(), key)
	require.NoError(t, err)
	if !ok {
		return nil
	}
	return data
}

func set(t *testing.T, b Backend, key, value string, ttl time.Duration) {
	t.Helper()
	require.NoError(t, b.Set(context.Background(), key, []byte(value), ttl))
}

func TestMemory_BasicGetSet(t *testing.T) {
	cache := NewMemory(100, time.Hour)

	assert.Nil(t, get(t, cache, "g100000:1:2"))

	set(t, cache, "g100000:1:2", "fc", 0)
	assert.Equal(t, []byte("fc"), get(t, cache, "g100000:1:2"))
	assert.Nil(t, get(t, cache, "g100000:1:3"))
}

func TestMemory_TTLExpiration(t *testing.T) {
	now := time.Now()
	cache := NewMemory(100, time.Hour)
	cache.now = func() time.Time { return now }

	set(t, cache, "short", "x", time.Minute)
	set(t, cache, "default", "y", 0)
	assert.NotNil(t, get(t, cache, "short"))

	now = now.Add(2 * time.Minute)
	assert.Nil(t, get(t, cache, "short"))
	assert.NotNil(t, get(t, cache, "default"))

	cache.mu.Lock()
	_, exists := cache.entries["short"]
	cache.mu.Unlock()
	assert.False(t, exists)

	now = now.Add(time.Hour)
	assert.Nil(t, get(t, cache, "default"))
}

func TestMemory_NoDefaultTTLNeverExpires(t *testing.T) {
	now := time.Now()
	cache := NewMemory(10, 0)
	cache.now = func() time.Time { return now }

	set(t, cache, "k", "v", 0)
	now = now.Add(24 * 365 * time.Hour)
	assert.NotNil(t, get(t, cache, "k"))
}

func TestMemory_LRUEviction_AccessOrder(t *testing.T) {
	cache := NewMemory(3, time.Hour)

	set(t, cache, "a", "1", 0)
	set(t, cache, "b", "2", 0)
	set(t, cache, "c", "3", 0)

	get(t, cache, "a")
	set(t, cache, "d", "4", 0)

	assert.NotNil(t, get(t, cache, "a"))
	assert.Nil(t, get(t, cache, "b"))
	assert.NotNil(t, get(t, cache, "c"))
	assert.NotNil(t, get(t, cache, "d"))
}

func TestMemory_UpdateExistingKey(t *testing.T) {
	cache := NewMemory(100, time.Hour)

	set(t, cache, "a", "old", 0)
	set(t, cache, "a", "new", 0)

	assert.Equal(t, []byte("new"), get(t, cache, "a"))
	assert.Equal(t, 1, cache.Stats().Entries)
}

func TestMemory_Invalidate(t *testing.T) {
	cache := NewMemory(100, time.Hour)

	set(t, cache, "zones:g1:1:1", "a", 0)
	set(t, cache, "zones:g1:1:2", "b", 0)
	set(t, cache, "other", "c", 0)

	assert.Equal(t, 2, cache.Invalidate("zones:"))
	assert.Nil(t, get(t, cache, "zones:g1:1:1"))
	assert.NotNil(t, get(t, cache, "other"))
}

func TestMemory_Stats(t *testing.T) {
	cache := NewMemory(100, time.Hour)

	set(t, cache, "a", "1", 0)
	set(t, cache, "b", "2", 0)
	get(t, cache, "a")
	get(t, cache, "b")
	get(t, cache, "c")

	stats := cache.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 100, stats.MaxEntries)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.6667, stats.HitRate, 0.01)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	cache := NewMemory(50, time.Hour)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n)
			_ = cache.Set(context.Background(), key, []byte("data"), 0)
			_, _, _ = cache.Get(context.Background(), key)
		}(i)
	}
	wg.Wait()

	stats := cache.Stats()
	assert.LessOrEqual(t, stats.Entries, 50)
	assert.Equal(t, int64(100), stats.Hits+stats.Misses)
}
