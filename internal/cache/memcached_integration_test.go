//go:build integration
// +build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// liveMemcached connects to MEMCACHED_ADDRS (or localhost) and skips when
// nothing answers.
func liveMemcached(t *testing.T) *MemcachedCache {
	t.Helper()
	addrs := os.Getenv("MEMCACHED_ADDRS")
	if addrs == "" {
		addrs = "localhost:11211"
	}
	c, err := NewMemcachedCache(addrs, 500*time.Millisecond, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Ping(); err != nil {
		t.Skipf("memcached at %s unreachable: %v", addrs, err)
	}
	return c
}

type carrierCount struct {
	Carrier string
	Flights int
}

// TestMemcachedCache_EncodedAggregate_Integration stores a msgpack payload and
// decodes it back after the round trip.
func TestMemcachedCache_EncodedAggregate_Integration(t *testing.T) {
	c := liveMemcached(t)
	ctx := context.Background()

	want := []carrierCount{{"AA", 3}, {"DL", 1}}
	val, err := Encode(want)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "v0:carrier_stats:JFK:LAX", val, time.Minute))

	got, ok, err := c.Get(ctx, "v0:carrier_stats:JFK:LAX")
	require.NoError(t, err)
	require.True(t, ok, "Get() ok = false, want true")

	var decoded []carrierCount
	require.NoError(t, Decode(got, &decoded))
	assert.Equal(t, want, decoded)
}

// TestMemcachedCache_SanitizedKey_Integration verifies keys with whitespace
// are rewritten consistently on Set and Get.
func TestMemcachedCache_SanitizedKey_Integration(t *testing.T) {
	c := liveMemcached(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "v0:plane_types:JFK LAX", []byte{0x01}, time.Minute))
	got, ok, err := c.Get(ctx, "v0:plane_types:JFK LAX")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{0x01}, got)
}

// TestMemcachedCache_Get_Miss_Integration verifies a missing key is a miss,
// not an error.
func TestMemcachedCache_Get_Miss_Integration(t *testing.T) {
	c := liveMemcached(t)

	_, ok, err := c.Get(context.Background(), "v0:carrier_stats:nonexistent")
	require.NoError(t, err)
	assert.False(t, ok, "Get() ok = true, want false for miss")
}

// TestMemcachedCache_CancelledContext_Integration verifies a cancelled context
// short-circuits before reaching the server.
func TestMemcachedCache_CancelledContext_Integration(t *testing.T) {
	c := liveMemcached(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.Get(ctx, "v0:carrier_stats:JFK:LAX")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, c.Set(ctx, "v0:carrier_stats:JFK:LAX", []byte{1}, time.Minute), context.Canceled)
}
