package predictor

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cached memoizes successful predictions for a TTL. Errors are not cached
// so a model trained later is picked up immediately.
type Cached struct {
	next  Predictor
	cache *cache.Cache
}

// NewCached wraps next with a TTL cache
func NewCached(next Predictor, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Predict implements Predictor
func (c *Cached) Predict(fileSize uint64, n, k uint32) (time.Duration, error) {
	key := fmt.Sprintf("%d/%d/%d", fileSize, n, k)
	if v, ok := c.cache.Get(key); ok {
		return v.(time.Duration), nil
	}

	d, err := c.next.Predict(fileSize, n, k)
	if err != nil {
		return 0, err
	}
	c.cache.Set(key, d, cache.DefaultExpiration)
	return d, nil
}

// Flush drops all memoized predictions
func (c *Cached) Flush() {
	c.cache.Flush()
}
