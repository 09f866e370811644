// internal/engine/engine_test.go
package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-portal/internal/cache"
	apperrors "github-portal/internal/common/errors"
)

func TestInvokeSingle_RejectsMissingIdentity(t *testing.T) {
	eng := newTestEngine(t, NewMethodRegistry())

	_, err := eng.InvokeSingle(context.Background(), "tok", "", "teams.list", Options{}, CachePolicy{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConfigurationInvalid, apperrors.CodeOf(err))

	_, err = eng.InvokeSingle(context.Background(), "tok", "github", "", Options{}, CachePolicy{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConfigurationInvalid, apperrors.CodeOf(err))
}

func TestInvokeSingle_UnresolvableMethodIsConfigurationError(t *testing.T) {
	eng := newTestEngine(t, NewMethodRegistry())

	_, err := eng.InvokeSingle(context.Background(), "tok", "github", "nope", Options{}, CachePolicy{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeMethodNotRegistered, apperrors.CodeOf(err))
}

func TestInvokeSingle_DefaultFreshnessBoundApplied(t *testing.T) {
	store := cache.NewMemoryStore(0)
	reg := NewMethodRegistry()
	var calls atomic.Int32
	reg.Register("github", "teams.list", countingFetch(&calls, "live"))

	eng := newTestEngineWithStore(t, store, reg)
	opts := Options{Org: "alpha"}
	d := Descriptor{APIName: "github", Method: "teams.list", Options: opts}

	// An entry aged 500s is fresh under the default 600s bound.
	seedEntry(t, store, d, "cached", 500*time.Second)

	env, err := eng.InvokeSingle(context.Background(), "tok", "github", "teams.list", opts, CachePolicy{})
	require.NoError(t, err)
	assert.Equal(t, "cached", env.Data)
	assert.Equal(t, int32(0), calls.Load())

	// Aged past the bound, the same key triggers exactly one synchronous call.
	seedEntry(t, store, d, "cached", 700*time.Second)

	env, err = eng.InvokeSingle(context.Background(), "tok", "github", "teams.list", opts, CachePolicy{BackgroundRefresh: false})
	require.NoError(t, err)
	assert.Equal(t, "live", env.Data)
	assert.Equal(t, int32(1), calls.Load())
}
