package parsehub

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/z-mio/parsehub/util"
)

// A RedirectCache remembers where short links land, so repeat resolutions of
// the same share link skip the network hop.
type RedirectCache interface {
	// Get returns the previously recorded final URL, if any.
	Get(rawURL string) (string, bool)
	// Put records the final URL a redirect chain arrived at.
	Put(rawURL, finalURL string)
}

// ResolveRules are the adapter-declared inputs to URL resolution.
type ResolveRules struct {
	// ReservedParams are the only query parameters kept on the resolved URL.
	ReservedParams []string
	// RedirectKeywords trigger redirect-following when any is a substring of
	// the URL, e.g. a known link-shortener host.
	RedirectKeywords []string
}

// Resolve turns free-form share text into a resolved URL: extract the first
// URL, follow redirects when a redirect keyword matches, then strip all query
// parameters except the reserved ones. The network is touched only when a
// redirect keyword matches.
func Resolve(ctx context.Context, text string, rules ResolveRules, cfg ParseConfig) (string, error) {
	cfg = cfg.withDefaults()

	rawURL, err := util.ExtractURL(text)
	if err != nil {
		return "", &ResolutionError{Kind: ResolutionNotFound, Input: text, Err: err}
	}

	if matchesAny(rawURL, rules.RedirectKeywords) {
		if rawURL, err = followRedirects(ctx, rawURL, cfg); err != nil {
			return "", err
		}
	}

	resolved, err := util.FilterQuery(rawURL, rules.ReservedParams)
	if err != nil {
		return "", &ResolutionError{Kind: ResolutionNotFound, Input: text, Err: err}
	}
	return resolved, nil
}

func matchesAny(url string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(url, k) {
			return true
		}
	}
	return false
}

// followRedirects performs the single GET that expands a short link, returning
// the URL of the final response.
func followRedirects(ctx context.Context, rawURL string, cfg ParseConfig) (string, error) {
	if cfg.RedirectCache != nil {
		if final, ok := cfg.RedirectCache.Get(rawURL); ok {
			return final, nil
		}
	}

	client, err := newHTTPClient(cfg.Proxy, cfg.ResolveTimeout)
	if err != nil {
		return "", &ResolutionError{Kind: ResolutionUnreachable, Input: rawURL, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &ResolutionError{Kind: ResolutionUnreachable, Input: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		kind := ResolutionUnreachable
		if isTimeout(err) {
			kind = ResolutionTimeout
		}
		return "", &ResolutionError{Kind: kind, Input: rawURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", &ResolutionError{
			Kind:  ResolutionUnreachable,
			Input: rawURL,
			Err:   errors.New(resp.Status),
		}
	}

	final := resp.Request.URL.String()
	if cfg.RedirectCache != nil {
		cfg.RedirectCache.Put(rawURL, final)
	}
	return final, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
