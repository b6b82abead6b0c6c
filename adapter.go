package parsehub

import (
	"context"
	"fmt"
	"regexp"

	"github.com/hashicorp/go-multierror"

	"github.com/z-mio/parsehub/generic"
)

// A ParseFunc is an adapter's entry point: it receives a resolved URL and
// produces a ParseResult, or fails with an error that the pipeline wraps as a
// ParseError.
type ParseFunc = func(ctx context.Context, resolvedURL string, cfg ParseConfig) (*ParseResult, error)

// An Adapter is the descriptor a platform implementation registers: identity,
// URL matching, resolution behaviour, and the parse entry point. The platform
// parsing itself lives outside the core.
type Adapter struct {
	Platform Platform
	// Pattern is matched against the resolved URL.
	Pattern *regexp.Regexp
	// SupportedTypes are content-type labels for introspection, e.g. "video".
	SupportedTypes []string
	// ReservedParams are the only query parameters this adapter needs kept.
	ReservedParams []string
	// RedirectKeywords trigger redirect-following during resolution.
	RedirectKeywords []string
	Parse            ParseFunc
}

// Rules returns the adapter's resolution rules.
func (a *Adapter) Rules() ResolveRules {
	return ResolveRules{
		ReservedParams:   a.ReservedParams,
		RedirectKeywords: a.RedirectKeywords,
	}
}

func (a *Adapter) validate() error {
	var result error
	if a.Platform.ID == "" {
		result = multierror.Append(result, fmt.Errorf("%w: no platform", ErrInvalidAdapter))
	}
	if a.Pattern == nil {
		result = multierror.Append(result, fmt.Errorf("%w: no match pattern", ErrInvalidAdapter))
	}
	if a.Parse == nil {
		result = multierror.Append(result, fmt.Errorf("%w: no parse entry point", ErrInvalidAdapter))
	}
	return result
}

// PlatformInfo is the read-only introspection record for one registered adapter.
type PlatformInfo struct {
	ID             string
	Name           string
	SupportedTypes []string
}

// A Registry holds every registered adapter. It is built once at process start
// and immutable thereafter, so concurrent lookups need no locking. Adapters
// are tried in registration order; patterns may overlap by design, with
// registration order as the tie-break.
type Registry struct {
	adapters []*Adapter
	byID     map[string]*Adapter
}

// BuildRegistry assembles a Registry from an explicit adapter list. Adapter
// validation failures and duplicate platforms are aggregated into one error.
func BuildRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Adapter, len(adapters))}
	var result error
	for i := range adapters {
		a := adapters[i]
		if err := a.validate(); err != nil {
			result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[%v]", a.Platform.ID)))
			continue
		}
		if _, ok := r.byID[a.Platform.ID]; ok {
			result = multierror.Append(result, fmt.Errorf("%w: %v", ErrDuplicateAdapter, a.Platform.ID))
			continue
		}
		r.byID[a.Platform.ID] = &a
		r.adapters = append(r.adapters, &a)
	}
	if result != nil {
		return nil, result
	}
	return r, nil
}

// MustBuildRegistry wraps BuildRegistry but panics if there is an error.
func MustBuildRegistry(adapters ...Adapter) *Registry {
	return generic.Unwrap(BuildRegistry(adapters...))
}

// Select returns the first adapter whose pattern accepts the resolved URL, in
// registration order, or nil when none match.
func (r *Registry) Select(resolvedURL string) *Adapter {
	for _, a := range r.adapters {
		if a.Pattern.MatchString(resolvedURL) {
			return a
		}
	}
	return nil
}

// Get returns the adapter registered for a platform ID, or nil.
func (r *Registry) Get(platformID string) *Adapter {
	return r.byID[platformID]
}

// List returns introspection records in registration order. No I/O.
func (r *Registry) List() []PlatformInfo {
	infos := make([]PlatformInfo, 0, len(r.adapters))
	for _, a := range r.adapters {
		infos = append(infos, PlatformInfo{
			ID:             a.Platform.ID,
			Name:           a.Platform.Name,
			SupportedTypes: a.SupportedTypes,
		})
	}
	return infos
}
