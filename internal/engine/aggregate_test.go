// internal/engine/aggregate_test.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github-portal/internal/common/errors"
)

// ==========================
// Test Helper Functions
// ==========================

func teamsJob() Job {
	return Job{
		Name:             "teams-with-members",
		APIName:          "github",
		OuterMethod:      "teams.list",
		InnerMethod:      "teams.members",
		CollectionKey:    "members",
		InnerKey:         InnerKeyTeam,
		AnnotateOrgLogin: true,
	}
}

func team(id int, name string) map[string]interface{} {
	return map[string]interface{}{"id": id, "name": name}
}

// registerTwoOrgTeams wires an outer listing of two teams per organization
// and an inner member fetch that fails for the team ids in failIDs.
func registerTwoOrgTeams(reg *MethodRegistry, failIDs map[int64]bool) *callRecorder {
	rec := &callRecorder{}

	reg.Register("github", "teams.list", func(_ context.Context, token string, opts Options) (*FetchResult, error) {
		rec.record(token, opts)
		switch opts.Org {
		case "alpha":
			return &FetchResult{Data: []interface{}{team(1, "platform"), team(2, "infra")}}, nil
		case "beta":
			return &FetchResult{Data: []interface{}{team(3, "web"), team(4, "mobile")}}, nil
		}
		return nil, fmt.Errorf("unknown org %q", opts.Org)
	})

	reg.Register("github", "teams.members", func(_ context.Context, token string, opts Options) (*FetchResult, error) {
		rec.record(token, opts)
		if failIDs[opts.TeamID] {
			return nil, errors.New("team disappeared")
		}
		return &FetchResult{
			Data:    []interface{}{map[string]interface{}{"login": fmt.Sprintf("member-of-%d", opts.TeamID)}},
			Headers: map[string]string{"X-Ratelimit-Remaining": "4000"},
			Cost:    1,
		}, nil
	})

	return rec
}

// ==========================
// End-to-End Scenarios
// ==========================

func TestInvokeCollection_AllInnerFetchesSucceed(t *testing.T) {
	reg := NewMethodRegistry()
	registerTwoOrgTeams(reg, nil)
	eng := newTestEngine(t, reg)

	result, err := eng.InvokeCollection(context.Background(), twoOrgTokens(), teamsJob(), Options{}, CachePolicy{})

	require.NoError(t, err)
	require.Len(t, result.Data, 4)

	// Discovery order per organization, organizations in token set order.
	names := make([]string, 0, 4)
	for _, raw := range result.Data {
		entity := raw.(map[string]interface{})
		names = append(names, entity["name"].(string))
		assert.Contains(t, entity, "members")
	}
	assert.Equal(t, []string{"platform", "infra", "web", "mobile"}, names)

	assert.Equal(t, float64(4), result.Cost, "inner call costs are summed into the result")
	assert.Equal(t, "4000", result.Headers["X-Ratelimit-Remaining"])
}

func TestInvokeCollection_InnerFailureDegradesOneEntity(t *testing.T) {
	// Two organizations with two teams each; beta's second team's member
	// fetch fails. All four entities are still emitted; only that one lacks
	// the nested field.
	reg := NewMethodRegistry()
	registerTwoOrgTeams(reg, map[int64]bool{4: true})
	eng := newTestEngine(t, reg)

	result, err := eng.InvokeCollection(context.Background(), twoOrgTokens(), teamsJob(), Options{}, CachePolicy{})

	require.NoError(t, err, "inner failures never surface to the top-level caller")
	require.Len(t, result.Data, 4)

	for _, raw := range result.Data {
		entity := raw.(map[string]interface{})
		if entity["name"] == "mobile" {
			assert.NotContains(t, entity, "members")
		} else {
			assert.Contains(t, entity, "members")
		}
	}
}

func TestInvokeCollection_OuterFailureAbortsPipeline(t *testing.T) {
	reg := NewMethodRegistry()
	reg.Register("github", "teams.list", func(_ context.Context, _ string, opts Options) (*FetchResult, error) {
		if opts.Org == "beta" {
			return nil, errors.New("listing failed")
		}
		return &FetchResult{Data: []interface{}{team(1, "platform")}}, nil
	})
	reg.Register("github", "teams.members", func(_ context.Context, _ string, _ Options) (*FetchResult, error) {
		return &FetchResult{Data: []interface{}{}}, nil
	})

	eng := newTestEngine(t, reg)
	result, err := eng.InvokeCollection(context.Background(), twoOrgTokens(), teamsJob(), Options{}, CachePolicy{})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, apperrors.ErrCodeUpstreamFailed, apperrors.CodeOf(err))
}

// ==========================
// Entity Construction
// ==========================

func TestInvokeCollection_OrgStampDoesNotOverrideEntityFields(t *testing.T) {
	reg := NewMethodRegistry()
	reg.Register("github", "teams.list", func(_ context.Context, _ string, _ Options) (*FetchResult, error) {
		// The entity carries its own organization field; the stamp must lose.
		return &FetchResult{Data: []interface{}{map[string]interface{}{
			"id":           1,
			"name":         "platform",
			"organization": map[string]interface{}{"login": "explicit-org", "id": 42},
		}}}, nil
	})
	reg.Register("github", "teams.members", func(_ context.Context, _ string, _ Options) (*FetchResult, error) {
		return &FetchResult{Data: []interface{}{}}, nil
	})

	ts := NewTokenSet()
	ts.Add("alpha", "token-alpha")
	eng := newTestEngine(t, reg)

	result, err := eng.InvokeCollection(context.Background(), ts, teamsJob(), Options{}, CachePolicy{})

	require.NoError(t, err)
	require.Len(t, result.Data, 1)
	entity := result.Data[0].(map[string]interface{})
	org := entity["organization"].(map[string]interface{})
	assert.Equal(t, "explicit-org", org["login"])
}

func TestInvokeCollection_AnnotateDisabledLeavesEntityBare(t *testing.T) {
	reg := NewMethodRegistry()
	registerTwoOrgTeams(reg, nil)
	eng := newTestEngine(t, reg)

	job := teamsJob()
	job.AnnotateOrgLogin = false

	result, err := eng.InvokeCollection(context.Background(), twoOrgTokens(), job, Options{}, CachePolicy{})

	require.NoError(t, err)
	for _, raw := range result.Data {
		entity := raw.(map[string]interface{})
		assert.NotContains(t, entity, "organization")
	}
}

func TestInvokeCollection_RepoKeyType(t *testing.T) {
	reg := NewMethodRegistry()
	var innerOptsSeen []Options
	var mu sync.Mutex

	reg.Register("github", "repos.list", func(_ context.Context, _ string, opts Options) (*FetchResult, error) {
		return &FetchResult{Data: []interface{}{
			map[string]interface{}{"id": 10, "name": "api-server"},
		}}, nil
	})
	reg.Register("github", "repos.collaborators", func(_ context.Context, _ string, opts Options) (*FetchResult, error) {
		mu.Lock()
		innerOptsSeen = append(innerOptsSeen, opts)
		mu.Unlock()
		return &FetchResult{Data: []interface{}{map[string]interface{}{"login": "octocat"}}}, nil
	})

	ts := NewTokenSet()
	ts.Add("alpha", "token-alpha")
	eng := newTestEngine(t, reg)

	job := Job{
		Name:          "repos-with-collaborators",
		APIName:       "github",
		OuterMethod:   "repos.list",
		InnerMethod:   "repos.collaborators",
		CollectionKey: "collaborators",
		InnerKey:      InnerKeyRepo,
	}

	result, err := eng.InvokeCollection(context.Background(), ts, job, Options{}, CachePolicy{})

	require.NoError(t, err)
	require.Len(t, result.Data, 1)
	entity := result.Data[0].(map[string]interface{})
	assert.Contains(t, entity, "collaborators")

	require.Len(t, innerOptsSeen, 1)
	assert.Equal(t, "alpha", innerOptsSeen[0].Owner)
	assert.Equal(t, "api-server", innerOptsSeen[0].Repo)
}

func TestInvokeCollection_OuterFiltersForwardedWithoutPolicyKeys(t *testing.T) {
	reg := NewMethodRegistry()
	var innerFilters map[string]string
	var mu sync.Mutex

	reg.Register("github", "teams.list", func(_ context.Context, _ string, _ Options) (*FetchResult, error) {
		return &FetchResult{Data: []interface{}{team(1, "platform")}}, nil
	})
	reg.Register("github", "teams.members", func(_ context.Context, _ string, opts Options) (*FetchResult, error) {
		mu.Lock()
		innerFilters = opts.Filters
		mu.Unlock()
		return &FetchResult{Data: []interface{}{}}, nil
	})

	ts := NewTokenSet()
	ts.Add("alpha", "token-alpha")
	eng := newTestEngine(t, reg)

	template := Options{Filters: map[string]string{
		"role":          "maintainer",
		"maxAgeSeconds": "60",
	}}
	_, err := eng.InvokeCollection(context.Background(), ts, teamsJob(), template, CachePolicy{})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"role": "maintainer"}, innerFilters)
}

// ==========================
// Configuration & Contract Errors
// ==========================

func TestInvokeCollection_InvalidInnerKeyTypeFailsFast(t *testing.T) {
	reg := NewMethodRegistry()
	registerTwoOrgTeams(reg, nil)
	eng := newTestEngine(t, reg)

	job := teamsJob()
	job.InnerKey = InnerKeyType("project")

	_, err := eng.InvokeCollection(context.Background(), twoOrgTokens(), job, Options{}, CachePolicy{})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInnerKeyTypeInvalid, apperrors.CodeOf(err))
}

func TestInvokeCollection_UnresolvableInnerMethodFailsBeforeFanOut(t *testing.T) {
	reg := NewMethodRegistry()
	var outerCalls int
	reg.Register("github", "teams.list", func(_ context.Context, _ string, _ Options) (*FetchResult, error) {
		outerCalls++
		return &FetchResult{Data: []interface{}{}}, nil
	})

	eng := newTestEngine(t, reg)
	job := teamsJob() // teams.members never registered

	_, err := eng.InvokeCollection(context.Background(), twoOrgTokens(), job, Options{}, CachePolicy{})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeMethodNotRegistered, apperrors.CodeOf(err))
	assert.Zero(t, outerCalls, "method resolution happens at construction time, before any fetch")
}

func TestInvokeCollection_MissingOuterDataIsContractError(t *testing.T) {
	reg := NewMethodRegistry()
	reg.Register("github", "teams.list", func(_ context.Context, _ string, _ Options) (*FetchResult, error) {
		return &FetchResult{Data: nil}, nil
	})
	reg.Register("github", "teams.members", func(_ context.Context, _ string, _ Options) (*FetchResult, error) {
		return &FetchResult{Data: []interface{}{}}, nil
	})

	ts := NewTokenSet()
	ts.Add("alpha", "token-alpha")
	eng := newTestEngine(t, reg)

	_, err := eng.InvokeCollection(context.Background(), ts, teamsJob(), Options{}, CachePolicy{})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAggregationContract, apperrors.CodeOf(err))
}

func TestInvokeCollection_NestedInnerEnvelopeTreatedAsInnerError(t *testing.T) {
	reg := NewMethodRegistry()
	reg.Register("github", "teams.list", func(_ context.Context, _ string, _ Options) (*FetchResult, error) {
		return &FetchResult{Data: []interface{}{team(1, "platform")}}, nil
	})
	reg.Register("github", "teams.members", func(_ context.Context, _ string, _ Options) (*FetchResult, error) {
		return &FetchResult{Data: map[string]interface{}{
			"data": []interface{}{"smuggled"},
		}}, nil
	})

	ts := NewTokenSet()
	ts.Add("alpha", "token-alpha")
	eng := newTestEngine(t, reg)

	result, err := eng.InvokeCollection(context.Background(), ts, teamsJob(), Options{}, CachePolicy{})

	require.NoError(t, err)
	require.Len(t, result.Data, 1)
	entity := result.Data[0].(map[string]interface{})
	assert.NotContains(t, entity, "members", "a nested envelope at the inner level degrades the entity")
}

func TestInvokeCollection_CaseInsensitiveTokenResolution(t *testing.T) {
	reg := NewMethodRegistry()
	registerTwoOrgTeams(reg, nil)

	ts := NewTokenSet()
	ts.Add("Alpha", "token-alpha")
	ts.Add("BETA", "token-beta")
	eng := newTestEngine(t, reg)

	result, err := eng.InvokeCollection(context.Background(), ts, teamsJob(), Options{}, CachePolicy{})

	require.NoError(t, err)
	assert.Len(t, result.Data, 4)
}
