package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 10000

// Cache is an LRU of vectors. Get and Set copy so cached vectors are never
// shared with callers.
type Cache struct {
	lru *lru.Cache[string, []float32]
}

// NewCache holds up to size vectors; size <= 0 uses the default
func NewCache(size int) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		panic(err) // Only returned for a non-positive size
	}
	return &Cache{lru: c}
}

func (c *Cache) Get(key string) ([]float32, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v...), true
}

func (c *Cache) Set(key string, vector []float32) {
	c.lru.Add(key, append([]float32(nil), vector...))
}

func (c *Cache) Size() int { return c.lru.Len() }

func (c *Cache) Clear() { c.lru.Purge() }

// cacheKey separates entries by provider and model so a config change
// never serves vectors from another embedding space
func cacheKey(provider, model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return provider + "|" + model + "|" + hex.EncodeToString(sum[:])
}

// cachedEmbedder serves repeated texts from an LRU cache
type cachedEmbedder struct {
	Embedder
	cache *Cache
}

// WithCache wraps e so identical texts are embedded once
func WithCache(e Embedder, cache *Cache) Embedder {
	if cache == nil {
		return e
	}
	return &cachedEmbedder{Embedder: e, cache: cache}
}

func (c *cachedEmbedder) key(text string) string {
	return cacheKey(c.Provider(), c.Model(), text)
}

func (c *cachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ValidateText(text); err != nil {
		return nil, err
	}
	key := c.key(text)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, v)
	return v, nil
}

func (c *cachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if v, ok := c.cache.Get(c.key(text)); ok {
			out[i] = v
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.Embedder.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, v := range vectors {
		out[missingIdx[j]] = v
		c.cache.Set(c.key(missing[j]), v)
	}
	return out, nil
}
