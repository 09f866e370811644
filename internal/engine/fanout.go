// internal/engine/fanout.go
package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github-portal/internal/common/errors"
	"github-portal/internal/common/metrics"
)

// FanOutResult merges one upstream collection across every organization,
// keyed by organization login. Ordering across organizations is a property
// of the map, not a sequence. Headers and cost are placeholders here:
// accumulation is deferred to the caller that requested them.
type FanOutResult struct {
	Orgs    map[string]interface{} `json:"orgs"`
	Headers map[string]string      `json:"headers"`
	Cost    float64                `json:"cost,omitempty"`
}

// FanOut drives one collection method once per organization under the outer
// concurrency ceiling. A single failing organization fails the whole call:
// downstream aggregate-permission decisions depend on completeness, so a
// partial cross-organization view is never returned.
func (e *Engine) FanOut(ctx context.Context, tokens *TokenSet, apiName, method string, template Options, policy CachePolicy) (*FanOutResult, error) {
	if tokens == nil || tokens.Len() == 0 {
		return nil, apperrors.NewConfigurationError("fan-out requires at least one organization token")
	}

	started := time.Now()
	defer func() {
		metrics.FanOutDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
	}()

	perOrgPolicy := policy.withDefault(e.defaultMaxAge).individual()

	var mu sync.Mutex
	orgs := make(map[string]interface{}, tokens.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.outerLimit)

	for _, login := range tokens.Logins() {
		login := login
		g.Go(func() error {
			token, ok := tokens.Lookup(login)
			if !ok {
				return apperrors.NewMissingTokenError(login)
			}

			opts := template.Clone()
			opts.Org = login
			if opts.PerPage == 0 {
				opts.PerPage = e.defaultPerPage
			}

			env, err := e.InvokeSingle(gctx, token, apiName, method, opts, perOrgPolicy)
			if err != nil {
				return err
			}

			payload := env.Data
			if inner, nested := asNestedEnvelope(payload); nested {
				// A caller handed us an envelope where the bare payload
				// belongs. Normalize and warn rather than fail.
				e.log.Warn("per-organization payload carried a nested envelope, substituting its data", map[string]interface{}{
					"org":    login,
					"api":    apiName,
					"method": method,
				})
				payload = inner
			}

			mu.Lock()
			orgs[login] = payload
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &FanOutResult{
		Orgs:    orgs,
		Headers: map[string]string{},
	}, nil
}
