package parsehub

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/z-mio/parsehub/util"
)

// A Hub binds an adapter registry and a ParseConfig into the parse pipeline:
// share text in, ParseResult out.
type Hub struct {
	registry *Registry
	cfg      ParseConfig
	log      *zap.SugaredLogger
}

// NewHub builds a parse pipeline over a registry. A zero ParseConfig selects
// the defaults.
func NewHub(registry *Registry, cfg ParseConfig) *Hub {
	return &Hub{
		registry: registry,
		cfg:      cfg.withDefaults(),
		log:      zap.S().Named("parsehub"),
	}
}

// Platforms lists the registered platforms.
func (h *Hub) Platforms() []PlatformInfo {
	return h.registry.List()
}

// Parse resolves share text to an adapter and invokes it.
//
// Resolution is two-phase: phase 1 resolves just far enough to identify the
// platform (following redirects with every registered redirect keyword when
// nothing matches the surface URL), then phase 2 re-resolves with the selected
// adapter's own reserved-parameter and redirect rules. A RedirectCache in the
// config makes the repeated hop free.
func (h *Hub) Parse(ctx context.Context, text string) (*ParseResult, error) {
	adapter, err := h.selectAdapter(ctx, text)
	if err != nil {
		return nil, err
	}

	resolved, err := Resolve(ctx, text, adapter.Rules(), h.cfg)
	if err != nil {
		return nil, err
	}

	h.log.Debugw("parsing", "platform", adapter.Platform.ID, "url", resolved)
	result, err := adapter.Parse(ctx, resolved, h.cfg)
	if err != nil {
		return nil, wrapAdapterError(adapter, resolved, err)
	}
	if result == nil {
		return nil, &ParseError{Platform: adapter.Platform, URL: resolved, Err: errors.New("adapter returned no result")}
	}
	result.Platform = adapter.Platform
	return result, nil
}

// RawURL resolves share text with the matching adapter's rules, without
// invoking the adapter.
func (h *Hub) RawURL(ctx context.Context, text string) (string, error) {
	adapter, err := h.selectAdapter(ctx, text)
	if err != nil {
		return "", err
	}
	return Resolve(ctx, text, adapter.Rules(), h.cfg)
}

// selectAdapter is resolution phase 1. Patterns are matched against the
// extracted URL with its query string intact; parameter filtering is an
// adapter-specific policy that only applies in phase 2, after selection.
func (h *Hub) selectAdapter(ctx context.Context, text string) (*Adapter, error) {
	surface, err := util.ExtractURL(text)
	if err != nil {
		return nil, &ResolutionError{Kind: ResolutionNotFound, Input: text, Err: err}
	}
	if a := h.registry.Select(surface); a != nil {
		return a, nil
	}

	// Nothing matched the surface URL; it may be a shortener another adapter
	// declared a redirect keyword for.
	var keywords []string
	for _, a := range h.registry.adapters {
		keywords = append(keywords, a.RedirectKeywords...)
	}
	if matchesAny(surface, keywords) {
		expanded, err := followRedirects(ctx, surface, h.cfg)
		if err != nil {
			return nil, err
		}
		if a := h.registry.Select(expanded); a != nil {
			return a, nil
		}
		surface = expanded
	}
	return nil, &UnknownPlatformError{URL: surface}
}

// wrapAdapterError keeps typed core errors intact and wraps everything else, so
// adapter internals never leak past the pipeline boundary.
func wrapAdapterError(adapter *Adapter, url string, err error) error {
	var (
		parseErr      *ParseError
		resolutionErr *ResolutionError
		downloadErr   *DownloadError
	)
	if errors.As(err, &parseErr) || errors.As(err, &resolutionErr) || errors.As(err, &downloadErr) {
		return err
	}
	return &ParseError{Platform: adapter.Platform, URL: url, Err: err}
}
