package cache_test

import (
	"testing"
	"time"

	"github.com/boddenberg/hatacrm/internal/infra/cache"
	"github.com/boddenberg/hatacrm/internal/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ port.Cache[[]byte] = (*cache.InMemory[[]byte])(nil)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[[]byte](5 * time.Minute)
	defer c.Close()

	c.Set("monthly_2024", []byte(`{"year":2024}`))
	val, ok := c.Get("monthly_2024")
	require.True(t, ok)
	assert.JSONEq(t, `{"year":2024}`, string(val))
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	_, ok := c.Get("by_apartment_2024_3")
	assert.False(t, ok)
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Close()

	c.Set("k", "v")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok, "expected entry to be expired")
}

func TestCache_JanitorEvicts(t *testing.T) {
	c := cache.New[string](20 * time.Millisecond)
	defer c.Close()

	c.Set("k", "v")
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("k", "v")
	c.Delete("k")

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_NonPositiveTTL(t *testing.T) {
	c := cache.New[string](0)
	defer c.Close()

	c.Set("k", "v")
	_, ok := c.Get("k")
	assert.True(t, ok)

	c.Close() // idempotent
}
