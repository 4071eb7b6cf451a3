// Package cache provides an in-memory LRU cache for generated responses,
// keyed by the full request identity so identical prompts skip the provider.
package cache

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"appforge/internal/metrics"
)

// Response is a cached generation result.
type Response struct {
	Text     string
	Provider string
}

// Cache wraps an LRU of completed generations.
type Cache struct {
	lru *lru.Cache[string, Response]
}

// New creates a cache holding up to size entries.
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = 128
	}
	l, err := lru.New[string, Response](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

// Key derives the cache key for a request. Two requests share a key only
// when provider, model, system prompt, user prompt and output ceiling all
// match.
func Key(provider, model, system, prompt string, maximize bool) string {
	h := sha256.New()
	for _, part := range []string{provider, model, system, prompt} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	if maximize {
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached response for key, if present.
func (c *Cache) Get(key string) (Response, bool) {
	if c == nil {
		return Response{}, false
	}
	resp, ok := c.lru.Get(key)
	if ok {
		metrics.ResponseCacheTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.ResponseCacheTotal.WithLabelValues("miss").Inc()
	}
	return resp, ok
}

// Put stores a response under key.
func (c *Cache) Put(key string, resp Response) {
	if c == nil {
		return
	}
	c.lru.Add(key, resp)
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
