package importerrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMappingCache(t *testing.T) {
	t.Run("Should store and retrieve mappings", func(t *testing.T) {
		c := newMappingCache(4)

		c.Put("Maria", "client-1")

		clientID, hit := c.Get("Maria")
		assert.True(t, hit)
		assert.Equal(t, "client-1", clientID)

		_, hit = c.Get("João")
		assert.False(t, hit)
	})

	t.Run("Should update existing entries", func(t *testing.T) {
		c := newMappingCache(4)

		c.Put("Maria", "client-1")
		c.Put("Maria", "client-2")

		clientID, hit := c.Get("Maria")
		assert.True(t, hit)
		assert.Equal(t, "client-2", clientID)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("Should evict least recently used entry at capacity", func(t *testing.T) {
		c := newMappingCache(2)

		c.Put("a", "1")
		c.Put("b", "2")
		c.Get("a") // refresh a
		c.Put("c", "3")

		_, hit := c.Get("b")
		assert.False(t, hit, "Oldest entry should have been evicted")

		_, hit = c.Get("a")
		assert.True(t, hit)

		_, hit = c.Get("c")
		assert.True(t, hit)
	})

	t.Run("Should clear all entries", func(t *testing.T) {
		c := newMappingCache(8)
		for i := 0; i < 5; i++ {
			c.Put(fmt.Sprintf("folder-%d", i), "id")
		}

		assert.Equal(t, 5, c.Len())
		c.Clear()
		assert.Equal(t, 0, c.Len())
	})
}
