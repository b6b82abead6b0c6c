package parsehub

import (
	"net/http"
	"net/url"
	"time"
)

// DefaultUserAgent is sent on redirect-following and download requests unless
// the caller overrides it.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// A ParseConfig carries the knobs the resolver and parse pipeline need. It is
// passed explicitly at call time; the core keeps no process-wide mutable state.
type ParseConfig struct {
	UserAgent string
	// Proxy is an optional proxy URL for redirect resolution and adapters.
	Proxy string
	// ResolveTimeout bounds the single redirect-following request.
	ResolveTimeout time.Duration
	// RedirectCache, when set, short-circuits repeat redirect resolution.
	RedirectCache RedirectCache
}

// DefaultParseConfig returns the configuration used when the caller passes a
// zero ParseConfig.
func DefaultParseConfig() ParseConfig {
	return ParseConfig{
		UserAgent:      DefaultUserAgent,
		ResolveTimeout: 30 * time.Second,
	}
}

func (c ParseConfig) withDefaults() ParseConfig {
	d := DefaultParseConfig()
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = d.ResolveTimeout
	}
	return c
}

// A DownloadConfig carries the knobs the download engine needs.
type DownloadConfig struct {
	// SaveDir is the base directory download directories are created under.
	SaveDir string
	// Proxy is an optional proxy URL for transfers.
	Proxy string
	// Headers are sent on every transfer request.
	Headers   map[string]string
	UserAgent string
	// RetryLimit is how many additional attempts follow a transient failure.
	RetryLimit int
	// RetryBackoff is the first retry delay; subsequent delays double.
	RetryBackoff time.Duration
	// AttemptTimeout bounds each individual transfer attempt, not the whole download.
	AttemptTimeout time.Duration
	// Concurrency bounds parallel transfers within one multi-item download.
	Concurrency int
}

// DefaultDownloadConfig returns the configuration used when the caller passes
// a zero DownloadConfig.
func DefaultDownloadConfig() DownloadConfig {
	return DownloadConfig{
		SaveDir:        "downloads",
		UserAgent:      DefaultUserAgent,
		RetryLimit:     3,
		RetryBackoff:   time.Second,
		AttemptTimeout: 5 * time.Minute,
		Concurrency:    3,
	}
}

func (c DownloadConfig) withDefaults() DownloadConfig {
	d := DefaultDownloadConfig()
	if c.SaveDir == "" {
		c.SaveDir = d.SaveDir
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = d.RetryLimit
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = d.AttemptTimeout
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	return c
}

// newHTTPClient builds a client honouring an optional proxy URL. An empty
// proxy keeps the environment's proxy settings.
func newHTTPClient(proxy string, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}
