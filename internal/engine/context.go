// internal/engine/context.go
package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github-portal/internal/cache"
	apperrors "github-portal/internal/common/errors"
	"github-portal/internal/common/logger"
	"github-portal/internal/common/metrics"
)

// CacheContext resolves descriptors against the cache-aside store. All
// mutation of the store goes through Execute; concurrent callers for the
// same key share a single outstanding fetch, and a stale entry under
// background refresh triggers at most one detached refresh at a time.
type CacheContext struct {
	store    cache.Store
	registry *MethodRegistry
	log      logger.Logger
	now      func() time.Time

	flight singleflight.Group

	refreshMu  sync.Mutex
	refreshing map[string]bool
	refreshWG  sync.WaitGroup
}

func NewCacheContext(store cache.Store, registry *MethodRegistry, log logger.Logger) *CacheContext {
	return &CacheContext{
		store:      store,
		registry:   registry,
		log:        log.WithFields(map[string]interface{}{"component": "cache-context"}),
		now:        time.Now,
		refreshing: make(map[string]bool),
	}
}

// Execute resolves one descriptor: fresh cache hit, stale-while-revalidate,
// or a coalesced synchronous fetch. It fails only when the cache cannot
// serve and the live fetch fails.
func (c *CacheContext) Execute(ctx context.Context, d Descriptor) (*Envelope, error) {
	fn, err := c.registry.Resolve(d.APIName, d.Method)
	if err != nil {
		return nil, err
	}

	key := d.CacheKey()
	maxAge := time.Duration(d.Policy.MaxAgeSeconds) * time.Second

	raw, age, ok, err := c.store.Get(ctx, key)
	if err != nil {
		// A failing store read degrades to a live fetch rather than an error.
		c.log.WithError(err).Warn("cache read failed, fetching live", map[string]interface{}{
			"key": key,
		})
		ok = false
	}

	if ok {
		env, decErr := decodeEnvelope(raw)
		if decErr == nil {
			if age <= maxAge {
				metrics.CacheHits.WithLabelValues(d.APIName).Inc()
				return env, nil
			}
			if d.Policy.BackgroundRefresh {
				metrics.CacheStaleServes.WithLabelValues(d.APIName).Inc()
				c.scheduleRefresh(key, d, fn)
				return env, nil
			}
		} else {
			c.log.WithError(decErr).Warn("cache entry undecodable, refetching", map[string]interface{}{
				"key": key,
			})
		}
	}

	metrics.CacheMisses.WithLabelValues(d.APIName).Inc()

	// Coalesce concurrent fetches for the same key: the first caller fetches,
	// the rest share the encoded result and decode their own copies.
	encoded, err, _ := c.flight.Do(key, func() (interface{}, error) {
		return c.fetchAndStore(ctx, key, d, fn)
	})
	if err != nil {
		return nil, err
	}

	return decodeEnvelope(encoded.([]byte))
}

// fetchAndStore performs the live fetch and records the result with a fresh
// timestamp. Store write failures are logged, not surfaced: the caller still
// gets its data.
func (c *CacheContext) fetchAndStore(ctx context.Context, key string, d Descriptor, fn FetchFunc) ([]byte, error) {
	metrics.UpstreamCalls.WithLabelValues(d.APIName, d.Method).Inc()

	result, err := fn(ctx, d.Token, d.Options)
	if err != nil {
		metrics.UpstreamFailures.WithLabelValues(d.APIName, d.Method).Inc()
		return nil, apperrors.NewUpstreamError(d.APIName, d.Method, err)
	}

	env := &Envelope{
		Data:    result.Data,
		Headers: result.Headers,
		Cost:    result.Cost,
	}

	encoded, err := encodeEnvelope(env)
	if err != nil {
		return nil, apperrors.NewAggregationContractError("upstream payload is not encodable: " + err.Error())
	}

	if putErr := c.store.Put(ctx, key, encoded, c.now()); putErr != nil {
		c.log.WithError(putErr).Warn("cache write failed", map[string]interface{}{
			"key": key,
		})
	}

	return encoded, nil
}

// scheduleRefresh starts at most one detached refresh per key. The refresh
// runs on a background context so an abandoned caller cannot cancel it; on
// failure the existing stale entry stays in place for the next read.
func (c *CacheContext) scheduleRefresh(key string, d Descriptor, fn FetchFunc) {
	c.refreshMu.Lock()
	if c.refreshing[key] {
		c.refreshMu.Unlock()
		return
	}
	c.refreshing[key] = true
	c.refreshMu.Unlock()

	c.refreshWG.Add(1)
	go func() {
		defer c.refreshWG.Done()
		defer func() {
			c.refreshMu.Lock()
			delete(c.refreshing, key)
			c.refreshMu.Unlock()
		}()

		if _, err := c.fetchAndStore(context.Background(), key, d, fn); err != nil {
			metrics.BackgroundRefreshes.WithLabelValues(d.APIName, "failure").Inc()
			c.log.WithError(err).Warn("background refresh failed, keeping stale entry", map[string]interface{}{
				"key": key,
			})
			return
		}
		metrics.BackgroundRefreshes.WithLabelValues(d.APIName, "success").Inc()
	}()
}

// Drain blocks until all in-flight background refreshes have completed.
// Called during shutdown so detached refreshes always run to completion.
func (c *CacheContext) Drain() {
	c.refreshWG.Wait()
}
