// internal/engine/registry.go
package engine

import (
	"context"
	"sync"

	apperrors "github-portal/internal/common/errors"
)

// FetchResult is what one upstream fetch backend invocation produces.
type FetchResult struct {
	Data    interface{}
	Headers map[string]string
	Cost    float64
}

// FetchFunc is the single abstract fetch operation the engine drives. The
// backend receives the already-resolved per-organization token and the typed
// options; everything else (protocol, pagination) is its own business.
type FetchFunc func(ctx context.Context, token string, opts Options) (*FetchResult, error)

// MethodRegistry maps (apiName, method) to fetch operations. Resolution
// happens once per invocation seam, not per entity; an unresolvable method
// is a configuration error.
type MethodRegistry struct {
	mu      sync.RWMutex
	methods map[string]map[string]FetchFunc
}

func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{
		methods: make(map[string]map[string]FetchFunc),
	}
}

// Register binds a fetch operation under (apiName, method). Re-registering
// replaces the previous binding.
func (r *MethodRegistry) Register(apiName, method string, fn FetchFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	api, ok := r.methods[apiName]
	if !ok {
		api = make(map[string]FetchFunc)
		r.methods[apiName] = api
	}
	api[method] = fn
}

// Resolve returns the fetch operation for (apiName, method).
func (r *MethodRegistry) Resolve(apiName, method string) (FetchFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if api, ok := r.methods[apiName]; ok {
		if fn, ok := api[method]; ok && fn != nil {
			return fn, nil
		}
	}
	return nil, apperrors.NewMethodNotRegisteredError(apiName, method)
}
