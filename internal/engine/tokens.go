// internal/engine/tokens.go
package engine

import (
	"sort"
	"strings"
)

// TokenSet maps organization logins to already-resolved API tokens. Lookup
// is case-insensitive; iteration follows registration order, which fixes the
// organization processing order of the pipeline.
type TokenSet struct {
	logins []string
	tokens map[string]string
}

func NewTokenSet() *TokenSet {
	return &TokenSet{tokens: make(map[string]string)}
}

// TokenSetFrom builds a TokenSet from a plain map, registering logins in
// sorted order so iteration is deterministic.
func TokenSetFrom(m map[string]string) *TokenSet {
	logins := make([]string, 0, len(m))
	for login := range m {
		logins = append(logins, login)
	}
	sort.Strings(logins)

	ts := NewTokenSet()
	for _, login := range logins {
		ts.Add(login, m[login])
	}
	return ts
}

// Add registers a token for an organization. Re-adding an organization
// replaces its token without changing its position.
func (t *TokenSet) Add(login, token string) {
	normalized := strings.ToLower(login)
	if _, exists := t.tokens[normalized]; !exists {
		t.logins = append(t.logins, normalized)
	}
	t.tokens[normalized] = token
}

// Lookup resolves the token for an organization login, case-insensitively.
func (t *TokenSet) Lookup(login string) (string, bool) {
	token, ok := t.tokens[strings.ToLower(login)]
	return token, ok
}

// Logins returns the registered organization logins in registration order.
func (t *TokenSet) Logins() []string {
	out := make([]string, len(t.logins))
	copy(out, t.logins)
	return out
}

// Len reports the number of registered organizations.
func (t *TokenSet) Len() int {
	return len(t.logins)
}
