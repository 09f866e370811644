// internal/engine/descriptor.go
package engine

import "fmt"

// Descriptor identifies one logical upstream call and the policy to resolve
// it with. It is immutable after construction. The auth token is supplied
// fresh on every execution and is never part of the cache identity, so token
// rotation cannot fragment the cache.
type Descriptor struct {
	APIName string
	Method  string
	Options Options
	Policy  CachePolicy
	Token   string
}

// CacheKey derives the cache identity from (apiName, method, options) only.
// Equal identities always map to the same key regardless of filter insertion
// order.
func (d Descriptor) CacheKey() string {
	return fmt.Sprintf("%s:%s:%s", d.APIName, d.Method, d.Options.canonical())
}
