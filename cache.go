package crs

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transformerCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crs_transformer_cache_hits_total",
		Help: "The total number of hits on the transformer cache",
	})
	transformerCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crs_transformer_cache_misses_total",
		Help: "The total number of misses on the transformer cache",
	})
	transformerCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crs_transformer_cache_evictions_total",
		Help: "The total number of evictions from the transformer cache",
	})
)

type transformerKey struct {
	source string
	target string
}

// A TransformerCache is a fixed-size cache of Transformers. It is safe for
// concurrent use.
type TransformerCache struct {
	mutex     sync.Mutex
	cacheSize int
	cache     *lru.Cache[transformerKey, *Transformer]
}

// A TransformerCacheOption sets an option on a TransformerCache.
type TransformerCacheOption func(*TransformerCache)

// NewTransformerCache returns a new TransformerCache with the given options.
func NewTransformerCache(options ...TransformerCacheOption) (*TransformerCache, error) {
	c := &TransformerCache{
		cacheSize: 32,
	}
	for _, option := range options {
		option(c)
	}

	var err error
	c.cache, err = lru.New[transformerKey, *Transformer](c.cacheSize)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// WithCacheSize sets the maximum number of transformers held.
func WithCacheSize(cacheSize int) TransformerCacheOption {
	return func(c *TransformerCache) {
		c.cacheSize = cacheSize
	}
}

// Get returns a Transformer from source to target, creating it if needed.
func (c *TransformerCache) Get(source, target *CRS) (*Transformer, error) {
	if source == nil || target == nil {
		return nil, fmt.Errorf("%w: nil CRS", ErrInvalidCRS)
	}

	key := transformerKey{
		source: source.Definition(),
		target: target.Definition(),
	}

	if transformer, ok := c.cache.Get(key); ok {
		transformerCacheHits.Inc()
		return transformer, nil
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if transformer, ok := c.cache.Get(key); ok {
		transformerCacheHits.Inc()
		return transformer, nil
	}

	transformerCacheMisses.Inc()

	transformer, err := newTransformer(source, target)
	if err != nil {
		return nil, err
	}

	if eviction := c.cache.Add(key, transformer); eviction {
		transformerCacheEvictions.Inc()
	}

	return transformer, nil
}

// Len returns the number of transformers in c.
func (c *TransformerCache) Len() int {
	return c.cache.Len()
}
