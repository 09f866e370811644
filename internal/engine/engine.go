// internal/engine/engine.go
package engine

import (
	"context"

	"github-portal/internal/cache"
	"github-portal/internal/common/config"
	apperrors "github-portal/internal/common/errors"
	"github-portal/internal/common/logger"
)

// Engine is the top-level entry point: the generalized collection method
// (InvokeSingle), the cross-organization fan-out (FanOut) and the nested
// aggregation pipeline (InvokeCollection). One Engine is constructed at
// startup and shared; it owns no mutable state beyond the cache context.
type Engine struct {
	cache    *CacheContext
	registry *MethodRegistry
	log      logger.Logger

	defaultMaxAge  int
	defaultPerPage int
	outerLimit     int
	innerLimit     int
}

func New(cfg config.EngineConfig, store cache.Store, registry *MethodRegistry, log logger.Logger) *Engine {
	defaultMaxAge := cfg.DefaultMaxAgeSeconds
	if defaultMaxAge <= 0 {
		defaultMaxAge = DefaultMaxAgeSeconds
	}
	defaultPerPage := cfg.DefaultPerPage
	if defaultPerPage <= 0 {
		defaultPerPage = 100
	}
	outerLimit := cfg.OuterConcurrency
	if outerLimit <= 0 {
		outerLimit = 1
	}
	innerLimit := cfg.InnerConcurrency
	if innerLimit <= 0 {
		innerLimit = 1
	}

	return &Engine{
		cache:          NewCacheContext(store, registry, log),
		registry:       registry,
		log:            log.WithFields(map[string]interface{}{"component": "engine"}),
		defaultMaxAge:  defaultMaxAge,
		defaultPerPage: defaultPerPage,
		outerLimit:     outerLimit,
		innerLimit:     innerLimit,
	}
}

// InvokeSingle is the uniform seam between "caller wants data" and "cache
// context resolves it". It rejects unresolvable methods before touching the
// cache and fills in the default freshness bound when the caller's policy
// omits one; BackgroundRefresh is forwarded verbatim.
func (e *Engine) InvokeSingle(ctx context.Context, token, apiName, method string, opts Options, policy CachePolicy) (*Envelope, error) {
	if apiName == "" || method == "" {
		return nil, apperrors.NewConfigurationError("apiName and method are required")
	}
	if _, err := e.registry.Resolve(apiName, method); err != nil {
		return nil, err
	}

	d := Descriptor{
		APIName: apiName,
		Method:  method,
		Options: opts,
		Policy:  policy.withDefault(e.defaultMaxAge),
		Token:   token,
	}
	return e.cache.Execute(ctx, d)
}

// Drain blocks until in-flight background refreshes complete. For shutdown.
func (e *Engine) Drain() {
	e.cache.Drain()
}
