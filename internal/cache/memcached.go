package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/cespare/xxhash/v2"
)

const (
	keyPrefix = "routes:"
	// maxKeyLen is memcached's key length limit.
	maxKeyLen = 250
	// maxItemSize is memcached's default slab limit; larger values are
	// refused by the server.
	maxItemSize = 1 << 20
	// maxRelativeExp is the longest expiration memcached reads as an offset;
	// beyond it the value is taken as a Unix timestamp.
	maxRelativeExp = 30 * 24 * time.Hour
)

// ErrValueTooLarge is returned by Set for payloads memcached would refuse.
var ErrValueTooLarge = errors.New("value exceeds memcached item size")

// MemcachedCache stores encoded analytics results in memcached so every
// replica shares them.
type MemcachedCache struct {
	client *memcache.Client
	now    func() time.Time
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client, now: time.Now}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// memcachedKey prefixes k and replaces bytes memcached rejects in keys.
// Keys still over the length limit keep a readable head and end in a hash of
// the whole key.
func memcachedKey(k string) string {
	key := keyPrefix + strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return '_'
		}
		return r
	}, k)
	if len(key) <= maxKeyLen {
		return key
	}
	sum := strconv.FormatUint(xxhash.Sum64String(key), 16)
	return key[:maxKeyLen-len(sum)-1] + "#" + sum
}

// expiration converts ttl to memcached's expiration field. Sub-second TTLs
// round up to one second and TTLs past the relative window become an
// absolute time.
func (c *MemcachedCache) expiration(ttl time.Duration) int32 {
	switch {
	case ttl < time.Second:
		return 1
	case ttl > maxRelativeExp:
		return int32(c.now().Add(ttl).Unix())
	default:
		return int32(ttl / time.Second)
	}
}

// Get implements Cache.Get. Returns false, nil on cache miss; false, err on error.
func (c *MemcachedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	item, err := c.client.Get(memcachedKey(key))
	switch {
	case errors.Is(err, memcache.ErrCacheMiss):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("memcached get %s: %w", key, err)
	}
	return item.Value, true, nil
}

// Set implements Cache.Set.
func (c *MemcachedCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(value) > maxItemSize {
		return fmt.Errorf("memcached set %s: %w (%d bytes)", key, ErrValueTooLarge, len(value))
	}
	err := c.client.Set(&memcache.Item{
		Key:        memcachedKey(key),
		Value:      value,
		Expiration: c.expiration(ttl),
	})
	if err != nil {
		return fmt.Errorf("memcached set %s: %w", key, err)
	}
	return nil
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
