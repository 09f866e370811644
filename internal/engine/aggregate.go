// internal/engine/aggregate.go
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github-portal/internal/common/errors"
	"github-portal/internal/common/logger"
	"github-portal/internal/common/metrics"
)

// InnerKeyType selects how the per-entity inner call is keyed.
type InnerKeyType string

const (
	// InnerKeyTeam keys the inner call by the entity's numeric team id.
	InnerKeyTeam InnerKeyType = "team"
	// InnerKeyRepo keys the inner call by owner login and repository name.
	InnerKeyRepo InnerKeyType = "repo"
)

// Job describes one two-level aggregation: an outer per-organization listing
// and, for each returned entity, one nested collection fetch attached under
// CollectionKey. Method identities are resolved at job-construction time.
type Job struct {
	Name          string
	APIName       string
	OuterMethod   string
	InnerMethod   string
	CollectionKey string
	InnerKey      InnerKeyType
	// AnnotateOrgLogin stamps each output entity with its owning
	// organization login. Explicit entity fields always win over the stamp.
	AnnotateOrgLogin bool
}

// AggregateResult is the flat ordered output of one aggregation run.
// Entities keep the relative order in which their organization listed them;
// organizations are processed in token set order.
type AggregateResult struct {
	Data    []interface{}     `json:"data"`
	Headers map[string]string `json:"headers,omitempty"`
	Cost    float64           `json:"cost,omitempty"`
}

// InvokeCollection runs the nested aggregation pipeline for one job. Outer
// (listing) errors abort the whole run; inner (per-entity) errors degrade
// only that entity, which is emitted without its nested collection. An
// entity can legitimately vanish between the outer listing and the inner
// fetch (a deleted team, say), so surfacing inner failures would make every
// aggregation flaky for a routine race.
func (e *Engine) InvokeCollection(ctx context.Context, tokens *TokenSet, job Job, template Options, policy CachePolicy) (*AggregateResult, error) {
	switch job.InnerKey {
	case InnerKeyTeam, InnerKeyRepo:
	default:
		return nil, apperrors.NewInnerKeyTypeError(string(job.InnerKey))
	}
	if job.CollectionKey == "" {
		return nil, apperrors.NewConfigurationError("job is missing a collection key")
	}
	if _, err := e.registry.Resolve(job.APIName, job.InnerMethod); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := e.log.WithFields(map[string]interface{}{
		"job":   job.Name,
		"runId": runID,
	})

	outer, err := e.FanOut(ctx, tokens, job.APIName, job.OuterMethod, template, policy)
	if err != nil {
		return nil, err
	}

	innerPolicy := policy.withDefault(e.defaultMaxAge).individual()

	accumulator := &Envelope{}
	var accMu sync.Mutex

	var output []interface{}
	for _, login := range tokens.Logins() {
		payload, ok := outer.Orgs[login]
		if !ok || payload == nil {
			return nil, apperrors.NewAggregationContractError(
				fmt.Sprintf("fan-out produced no data for organization %q", login))
		}
		entities, ok := payload.([]interface{})
		if !ok {
			return nil, apperrors.NewAggregationContractError(
				fmt.Sprintf("per-organization payload for %q is not a list", login))
		}

		token, ok := tokens.Lookup(login)
		if !ok {
			return nil, apperrors.NewMissingTokenError(login)
		}

		processed := make([]interface{}, len(entities))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.innerLimit)

		for i, raw := range entities {
			i, raw := i, raw
			g.Go(func() error {
				processed[i] = e.aggregateEntity(gctx, log, job, login, token, raw, template, innerPolicy, accumulator, &accMu)
				return nil
			})
		}
		// Inner errors are swallowed per entity; Wait only drains the batch.
		_ = g.Wait()

		output = append(output, processed...)
	}

	result := &AggregateResult{Data: output}
	if output == nil {
		result.Data = []interface{}{}
	}
	// Move the side-channel accumulation into the result envelope.
	if len(accumulator.Headers) > 0 {
		result.Headers = accumulator.Headers
	}
	result.Cost = accumulator.Cost

	log.Info("aggregation completed", map[string]interface{}{
		"entities": len(result.Data),
		"orgs":     tokens.Len(),
	})
	return result, nil
}

// aggregateEntity produces the output form of one entity: a clone of the
// outer entity, optionally stamped with its organization, with the nested
// collection attached when the inner fetch succeeds.
func (e *Engine) aggregateEntity(ctx context.Context, log logger.Logger, job Job, login, token string, raw interface{}, template Options, innerPolicy CachePolicy, accumulator *Envelope, accMu *sync.Mutex) interface{} {
	entity, ok := raw.(map[string]interface{})
	if !ok {
		// Not a shape we can clone or key the inner call from; pass through.
		log.Warn("outer entity is not an object, passing through", map[string]interface{}{
			"org": login,
		})
		return raw
	}

	// Clone base first, then overlay entity fields so explicit fields win
	// over the stamped default.
	out := make(map[string]interface{}, len(entity)+1)
	if job.AnnotateOrgLogin {
		out["organization"] = map[string]interface{}{"login": login}
	}
	for k, v := range entity {
		out[k] = v
	}

	innerOpts, err := innerOptions(job.InnerKey, login, entity)
	if err != nil {
		metrics.EntitiesOmitted.WithLabelValues(job.Name).Inc()
		log.Warn("cannot key inner call for entity, omitting nested collection", map[string]interface{}{
			"org":   login,
			"error": err.Error(),
		})
		return out
	}
	innerOpts = innerOpts.MergeFilters(template.Filters)
	if template.PerPage > 0 {
		innerOpts.PerPage = template.PerPage
	}

	env, err := e.InvokeSingle(ctx, token, job.APIName, job.InnerMethod, innerOpts, innerPolicy)
	if err == nil {
		if _, nested := asNestedEnvelope(env.Data); nested {
			err = apperrors.NewAggregationContractError("inner payload carried a nested envelope")
		}
	}
	if err != nil {
		metrics.EntitiesOmitted.WithLabelValues(job.Name).Inc()
		log.Warn("inner fetch failed, emitting entity without nested collection", map[string]interface{}{
			"org":   login,
			"error": err.Error(),
		})
		return out
	}

	out[job.CollectionKey] = env.Data

	accMu.Lock()
	accumulator.MergeHeaders(env.Headers)
	accumulator.AddCost(env.Cost)
	accMu.Unlock()

	return out
}

// innerOptions builds the identifying parameters for the per-entity call.
func innerOptions(keyType InnerKeyType, login string, entity map[string]interface{}) (Options, error) {
	switch keyType {
	case InnerKeyTeam:
		id, ok := numericID(entity["id"])
		if !ok {
			return Options{}, fmt.Errorf("entity has no numeric id")
		}
		return Options{TeamID: id}, nil
	case InnerKeyRepo:
		name, ok := entity["name"].(string)
		if !ok || name == "" {
			return Options{}, fmt.Errorf("entity has no name")
		}
		return Options{Owner: login, Repo: name}, nil
	default:
		return Options{}, fmt.Errorf("unsupported inner key type %q", keyType)
	}
}

// numericID tolerates the numeric representations JSON decoding produces.
func numericID(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		id, err := n.Int64()
		return id, err == nil
	}
	return 0, false
}
