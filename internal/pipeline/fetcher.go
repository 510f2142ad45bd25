package pipeline

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ppiankov/imgpull/internal/cache"
	"github.com/ppiankov/imgpull/internal/model"
	"github.com/ppiankov/imgpull/internal/util"
)

// errTooLarge is returned when a response body exceeds the configured limit
var errTooLarge = errors.New("response exceeds max bytes")

// ByteReader reads stored bytes by vault path
type ByteReader interface {
	ReadBytes(ctx context.Context, p string) ([]byte, error)
}

// RateLimiter throttles requests per host
type RateLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// RobotsPolicy decides whether a URL may be fetched
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) (bool, error)
}

// Fetcher retrieves bytes for resolved sources: one GET per remote URL,
// one read per local path. Remote fetches are never retried.
type Fetcher struct {
	httpClient *http.Client
	local      ByteReader
	userAgent  string
	maxBytes   int64

	limiter RateLimiter   // optional
	robots  RobotsPolicy  // optional
	cache   cache.Cache   // optional
	ttl     time.Duration // cache entry lifetime
}

// FetcherOption configures optional Fetcher collaborators
type FetcherOption func(*Fetcher)

// WithRateLimiter throttles remote fetches per host
func WithRateLimiter(l RateLimiter) FetcherOption {
	return func(f *Fetcher) { f.limiter = l }
}

// WithRobots enables robots.txt checks before remote fetches
func WithRobots(r RobotsPolicy) FetcherOption {
	return func(f *Fetcher) { f.robots = r }
}

// WithCache serves repeated remote URLs from c
func WithCache(c cache.Cache, ttl time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.cache = c
		f.ttl = ttl
	}
}

// WithHTTPClient replaces the HTTP client built from configuration
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) { f.httpClient = client }
}

// NewHTTPClient builds the HTTP client used for remote fetches.
// Redirects follow the net/http default policy.
func NewHTTPClient(cfg model.HTTPConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, "")
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via http.insecure_tls
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// NewFetcher creates a fetcher reading local sources from local
func NewFetcher(cfg model.HTTPConfig, local ByteReader, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient: NewHTTPClient(cfg),
		local:      local,
		userAgent:  cfg.UserAgent,
		maxBytes:   cfg.MaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// HTTPClient returns the client used for remote fetches
func (f *Fetcher) HTTPClient() *http.Client {
	return f.httpClient
}

// Fetch returns the bytes behind src. Every failure is a *model.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, src model.ResolvedSource) ([]byte, error) {
	var data []byte
	var err error
	if src.Kind == model.SourceRemote {
		data, err = f.fetchRemote(ctx, src.Location)
	} else {
		data, err = f.local.ReadBytes(ctx, src.Location)
	}
	if err != nil {
		return nil, &model.FetchError{Source: src, Err: err}
	}
	return data, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, rawURL string) ([]byte, error) {
	key := cache.CacheKey(rawURL)
	if f.cache != nil {
		if data, ok := f.cache.Get(key); ok {
			return data, nil
		}
	}

	if f.robots != nil {
		allowed, err := f.robots.Allowed(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, errors.New("disallowed by robots.txt")
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	// Read one byte past the limit to tell "exactly max" from "too large"
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w (%d)", errTooLarge, f.maxBytes)
	}

	if f.cache != nil {
		_ = f.cache.Set(key, body, f.ttl)
	}
	return body, nil
}
