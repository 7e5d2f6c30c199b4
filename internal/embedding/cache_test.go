package embedding

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorCache(t *testing.T) {
	t.Run("basic operations", func(t *testing.T) {
		cache := newVectorCache(10, 5*time.Minute)
		defer cache.Close()

		_, found := cache.get("non-existent")
		assert.False(t, found)

		vector := []float32{0.1, 0.2, 0.3}
		cache.set("key1", vector)

		retrieved, found := cache.get("key1")
		assert.True(t, found)
		assert.Equal(t, vector, retrieved)
		assert.Equal(t, 1, cache.size())
	})

	t.Run("expiration", func(t *testing.T) {
		cache := newVectorCache(10, 50*time.Millisecond)
		defer cache.Close()

		cache.set("key2", []float32{0.5})

		_, found := cache.get("key2")
		assert.True(t, found)

		time.Sleep(100 * time.Millisecond)

		_, found = cache.get("key2")
		assert.False(t, found)
	})

	t.Run("bound evicts the oldest entry", func(t *testing.T) {
		cache := newVectorCache(3, 5*time.Minute)
		defer cache.Close()

		for i := 0; i < 3; i++ {
			cache.set(fmt.Sprintf("key%d", i), []float32{float32(i)})
			time.Sleep(2 * time.Millisecond)
		}
		require.Equal(t, 3, cache.size())

		cache.set("key3", []float32{3})

		assert.Equal(t, 3, cache.size(), "the bound should hold")
		_, found := cache.get("key0")
		assert.False(t, found, "the oldest entry should have been evicted")
		_, found = cache.get("key3")
		assert.True(t, found)
	})

	t.Run("overwriting a key does not evict", func(t *testing.T) {
		cache := newVectorCache(2, 5*time.Minute)
		defer cache.Close()

		cache.set("a", []float32{1})
		cache.set("b", []float32{2})
		cache.set("a", []float32{3})

		assert.Equal(t, 2, cache.size())
		retrieved, found := cache.get("a")
		require.True(t, found)
		assert.Equal(t, []float32{3}, retrieved)
		_, found = cache.get("b")
		assert.True(t, found)
	})

	t.Run("concurrent access", func(t *testing.T) {
		cache := newVectorCache(100, 5*time.Minute)
		defer cache.Close()

		done := make(chan bool)
		go func() {
			for i := 0; i < 100; i++ {
				cache.set("concurrent", []float32{float32(i)})
			}
			done <- true
		}()

		go func() {
			for i := 0; i < 100; i++ {
				_, _ = cache.get("concurrent")
			}
			done <- true
		}()

		for i := 0; i < 2; i++ {
			<-done
		}

		cache.set("after-concurrent", []float32{0.9})
		_, found := cache.get("after-concurrent")
		assert.True(t, found)
	})
}
