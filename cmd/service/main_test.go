package main

import (
	"testing"

	"github.com/kjstillabower/flight-route-analytics/internal/cache"
	"github.com/kjstillabower/flight-route-analytics/internal/config"
)

func TestNewCache_Backends(t *testing.T) {
	tests := []struct {
		name       string
		backend    string
		wantCloser bool
		wantName   string
	}{
		{"in memory", "in_memory", false, "in_memory"},
		{"unset defaults to in memory", "", false, "in_memory"},
		{"disabled", "none", false, "none"},
		{"memcached", "memcached", true, "memcached"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{CacheBackend: tt.backend, MemcachedAddrs: "127.0.0.1:11211"}
			c, closer, err := newCache(cfg)
			if err != nil {
				t.Fatalf("newCache() error = %v", err)
			}
			if c == nil {
				t.Fatal("newCache() returned nil cache")
			}
			if (closer != nil) != tt.wantCloser {
				t.Errorf("memcached client returned = %v, want %v", closer != nil, tt.wantCloser)
			}
			if got := cacheBackendName(tt.backend); got != tt.wantName {
				t.Errorf("cacheBackendName(%q) = %q, want %q", tt.backend, got, tt.wantName)
			}
			if closer != nil {
				_ = closer.Close()
			}
		})
	}
}

func TestNewCache_NoneIsNop(t *testing.T) {
	c, _, err := newCache(&config.Config{CacheBackend: "none"})
	if err != nil {
		t.Fatalf("newCache() error = %v", err)
	}
	if _, ok := c.(cache.NopCache); !ok {
		t.Errorf("cache type = %T, want cache.NopCache", c)
	}
}
