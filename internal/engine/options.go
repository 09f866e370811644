// internal/engine/options.go

// Package engine implements the cache execution context, the generalized
// collection method, the cross-organization fan-out and the nested
// aggregation pipeline that together turn many rate-limited upstream calls
// into a small number of cached, aggregated results.
package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Options is the typed call-parameter bag for one upstream operation. The
// recognized keys are enumerated here rather than carried in an open map so
// cache-policy fields can never collide with upstream-call fields. Filters
// holds pass-through query parameters (e.g. role, type) that upstream
// methods forward verbatim.
type Options struct {
	Org     string
	TeamID  int64
	Owner   string
	Repo    string
	PerPage int
	Filters map[string]string
}

// reservedFilterKeys are cache-policy fields that callers sometimes leak into
// option bags. They travel out-of-band only and are stripped on merge.
var reservedFilterKeys = map[string]bool{
	"maxAgeSeconds":     true,
	"backgroundRefresh": true,
}

// Clone returns a deep copy; the original is never aliased.
func (o Options) Clone() Options {
	out := o
	if o.Filters != nil {
		out.Filters = make(map[string]string, len(o.Filters))
		for k, v := range o.Filters {
			out.Filters[k] = v
		}
	}
	return out
}

// MergeFilters overlays the given filters onto a clone of o, dropping
// reserved cache-policy keys. Existing filter values win over merged ones.
func (o Options) MergeFilters(filters map[string]string) Options {
	out := o.Clone()
	if len(filters) == 0 {
		return out
	}
	if out.Filters == nil {
		out.Filters = make(map[string]string, len(filters))
	}
	for k, v := range filters {
		if reservedFilterKeys[k] {
			continue
		}
		if _, exists := out.Filters[k]; !exists {
			out.Filters[k] = v
		}
	}
	return out
}

// canonical renders the options deterministically: fixed fields in a fixed
// order, then filters sorted by key. Two option values that differ only in
// filter insertion order produce the same string.
func (o Options) canonical() string {
	parts := make([]string, 0, 5+len(o.Filters))
	if o.Org != "" {
		parts = append(parts, "org="+o.Org)
	}
	if o.TeamID != 0 {
		parts = append(parts, fmt.Sprintf("team_id=%d", o.TeamID))
	}
	if o.Owner != "" {
		parts = append(parts, "owner="+o.Owner)
	}
	if o.Repo != "" {
		parts = append(parts, "repo="+o.Repo)
	}
	if o.PerPage != 0 {
		parts = append(parts, fmt.Sprintf("per_page=%d", o.PerPage))
	}

	if len(o.Filters) > 0 {
		keys := make([]string, 0, len(o.Filters))
		for k := range o.Filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k+"="+o.Filters[k])
		}
	}

	return strings.Join(parts, "|")
}

// CachePolicy controls freshness for one logical call.
type CachePolicy struct {
	// MaxAgeSeconds is the freshness bound. Zero means "apply the default"
	// (600 seconds).
	MaxAgeSeconds int
	// BackgroundRefresh serves stale entries immediately while refreshing
	// them out-of-band for future reads.
	BackgroundRefresh bool
	// IndividualMaxAgeSeconds, when positive, overrides MaxAgeSeconds for
	// the per-organization and per-entity calls issued during fan-out,
	// letting the orchestrator use a looser top-level bound while sub-calls
	// use a tighter one.
	IndividualMaxAgeSeconds int
}

// DefaultMaxAgeSeconds applies when a caller's cache policy omits a bound.
const DefaultMaxAgeSeconds = 600

// withDefault fills in the default freshness bound.
func (p CachePolicy) withDefault(defaultSeconds int) CachePolicy {
	if p.MaxAgeSeconds == 0 {
		if defaultSeconds > 0 {
			p.MaxAgeSeconds = defaultSeconds
		} else {
			p.MaxAgeSeconds = DefaultMaxAgeSeconds
		}
	}
	return p
}

// individual resolves the effective policy for calls issued during fan-out.
func (p CachePolicy) individual() CachePolicy {
	out := p
	if p.IndividualMaxAgeSeconds > 0 {
		out.MaxAgeSeconds = p.IndividualMaxAgeSeconds
	}
	out.IndividualMaxAgeSeconds = 0
	return out
}
