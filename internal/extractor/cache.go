package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// DefaultCacheSize is the number of extractions kept when no size is given.
const DefaultCacheSize = 256

// cachingExtractor memoizes extractions by image content, so re-submitting
// the same photo does not cost another model call. The least recently used
// entry is evicted once the cache is full.
type cachingExtractor struct {
	next   Extractor
	logger *logrus.Logger
	cache  *lru.Cache[string, *Extraction]
	stats  CacheStats
	mutex  sync.RWMutex
}

// WithCache wraps next with a content-addressed result cache holding at
// most size entries. size <= 0 selects DefaultCacheSize.
func WithCache(next Extractor, size int, logger *logrus.Logger) CachedExtractor {
	if logger == nil {
		logger = logrus.New()
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, *Extraction](size)
	return &cachingExtractor{
		next:   next,
		logger: logger,
		cache:  cache,
	}
}

// Extract returns a cached extraction for identical bytes or delegates.
// Callers always receive their own copy.
func (c *cachingExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*Extraction, error) {
	key := c.getCacheKey(image, mimeType)

	if extraction, ok := c.cache.Get(key); ok {
		c.incrementCacheHits()
		c.logger.WithField("key", key[len(key)-12:]).Debug("Extraction cache hit")
		return extraction.Clone(), nil
	}

	c.incrementCacheMisses()
	extraction, err := c.next.Extract(ctx, image, mimeType)
	if err != nil {
		return nil, err
	}
	if evicted := c.cache.Add(key, extraction.Clone()); evicted {
		c.incrementEvictions()
	}
	return extraction, nil
}

// ClearCache removes all entries from the cache and resets statistics.
func (c *cachingExtractor) ClearCache() {
	c.cache.Purge()
	c.mutex.Lock()
	c.stats = CacheStats{}
	c.mutex.Unlock()
}

// GetCacheStats returns cache statistics.
func (c *cachingExtractor) GetCacheStats() CacheStats {
	c.mutex.RLock()
	stats := c.stats
	c.mutex.RUnlock()

	stats.Size = c.cache.Len()
	if stats.TotalQueries > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.TotalQueries)
	}
	return stats
}

func (c *cachingExtractor) getCacheKey(image []byte, mimeType string) string {
	sum := sha256.Sum256(image)
	return mimeType + ":" + hex.EncodeToString(sum[:])
}

func (c *cachingExtractor) incrementCacheHits() {
	c.mutex.Lock()
	c.stats.Hits++
	c.stats.TotalQueries++
	c.mutex.Unlock()
}

func (c *cachingExtractor) incrementCacheMisses() {
	c.mutex.Lock()
	c.stats.Misses++
	c.stats.TotalQueries++
	c.mutex.Unlock()
}

func (c *cachingExtractor) incrementEvictions() {
	c.mutex.Lock()
	c.stats.Evictions++
	c.mutex.Unlock()
}
