package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryglass/queryglass/pkg/models"
)

func TestSearchCachePutGet(t *testing.T) {
	cache := NewSearchCache(time.Minute, 10)
	results := []models.SchemaVectorEntry{{ID: "table_students"}}

	cache.Put("students|5", results)

	got, ok := cache.Get("students|5")
	require.True(t, ok)
	assert.Equal(t, results, got)

	_, ok = cache.Get("students|10")
	assert.False(t, ok, "limit is part of the key")
}

func TestSearchCacheExpiry(t *testing.T) {
	cache := NewSearchCache(10*time.Millisecond, 10)
	cache.Put("q|5", []models.SchemaVectorEntry{{ID: "x"}})

	time.Sleep(20 * time.Millisecond)

	_, ok := cache.Get("q|5")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len(), "expired entry is removed on read")
}

func TestSearchCacheEvictsOldestOverCap(t *testing.T) {
	cache := NewSearchCache(time.Minute, 3)
	for i := 0; i < 5; i++ {
		cache.Put(fmt.Sprintf("q%d|5", i), []models.SchemaVectorEntry{{ID: fmt.Sprintf("e%d", i)}})
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, 3, cache.Len())
	_, ok := cache.Get("q0|5")
	assert.False(t, ok, "oldest entries evicted first")
	_, ok = cache.Get("q4|5")
	assert.True(t, ok)
}
