package embedding

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedEmbedder is a read-through cache in front of another Embedder, so
// repeated chunks and queries do not re-hit the provider. Entries expire after
// ttl; a zero ttl caches forever.
type CachedEmbedder struct {
	inner Embedder
	cache *gocache.Cache
}

// NewCachedEmbedder wraps inner with an expiring in-process cache.
func NewCachedEmbedder(inner Embedder, ttl time.Duration) *CachedEmbedder {
	expiration := ttl
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	return &CachedEmbedder{
		inner: inner,
		cache: gocache.New(expiration, 10*time.Minute),
	}
}

// Embed returns the cached vector for text, or embeds and caches it.
// Failures are not cached, so a provider outage does not poison the cache.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v.([]float32), nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(text, vec)
	return vec, nil
}

// Dimensions returns the inner embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Close closes the inner embedder.
func (c *CachedEmbedder) Close() error {
	c.cache.Flush()
	return c.inner.Close()
}
