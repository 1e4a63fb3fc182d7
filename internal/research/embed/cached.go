package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached wraps an Embedder with an in-process LRU memoization tier, keyed on
// a SHA-256 digest of the input text. This mirrors the LRU tier of the
// teacher's CachedTranscriptResolver multi-tier cache, deliberately dropping
// its Redis tier: the spec's Non-goal on caching results between
// independent research questions rules out any cross-request persistence,
// but memoizing the embedding of identical text within one process lifetime
// is a pure performance optimization, not a research-results cache.
type Cached struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCached wraps inner with an LRU cache of the given size.
func NewCached(inner Embedder, size int) (*Cached, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := digest(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

func digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
