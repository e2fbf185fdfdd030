package server

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Rendered is a cached render output.
type Rendered struct {
	ContentType string
	Body        []byte
}

// RenderCache keeps recent render outputs keyed by a hash of the request
// content. A cache of size zero stores nothing.
type RenderCache struct {
	lru *lru.Cache[uint64, Rendered]
}

// NewRenderCache creates a cache holding up to size outputs.
func NewRenderCache(size int) (*RenderCache, error) {
	if size <= 0 {
		return &RenderCache{}, nil
	}
	c, err := lru.New[uint64, Rendered](size)
	if err != nil {
		return nil, err
	}
	return &RenderCache{lru: c}, nil
}

// CacheKey hashes the parts with a separator so ("ab","c") and ("a","bc")
// differ.
func CacheKey(parts ...[]byte) uint64 {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.Write(p)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

func (c *RenderCache) Get(key uint64) (Rendered, bool) {
	if c.lru == nil {
		return Rendered{}, false
	}
	return c.lru.Get(key)
}

func (c *RenderCache) Add(key uint64, r Rendered) {
	if c.lru != nil {
		c.lru.Add(key, r)
	}
}

func (c *RenderCache) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
