// Package fetcher is the rate-limited external-call layer. Every provider
// request passes through a per-provider token bucket, a bounded retry loop,
// and the quota ledger. It is the sole synchronization point shared by
// concurrent stage workers and by projects running simultaneously against
// the same provider.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/scribeworks/keyword-cli/internal/model"
	"github.com/scribeworks/keyword-cli/internal/quota"
	"github.com/scribeworks/keyword-cli/internal/resilience"
)

// Request describes one provider call.
type Request struct {
	// Provider selects the token bucket and the ledger tag.
	Provider string
	// Keyword, when set, is recorded in the ledger for per-keyword auditing.
	Keyword string
	// URL is the fully-composed request URL.
	URL string
	// Header carries extra request headers (User-Agent, auth).
	Header http.Header
}

// Response is a completed provider call.
type Response struct {
	Body       []byte
	StatusCode int
	FromCache  bool
}

// ProviderLimit configures one provider's bucket and accounting.
type ProviderLimit struct {
	// RPM is the requests-per-minute ceiling. Tokens replenish continuously;
	// a call blocks until a token is available rather than failing.
	RPM int
	// CostPerCall is the ledger cost recorded for every attempt.
	CostPerCall float64
}

// Options configures the Client.
type Options struct {
	Timeout       time.Duration
	MaxConcurrent int
	Retry         resilience.Policy
	Limits        map[string]ProviderLimit
	UserAgent     string
}

// Client executes provider calls with throttling, retry, caching, and
// ledger accounting. Safe for concurrent use.
type Client struct {
	http    *http.Client
	opts    Options
	ledger  *quota.Ledger
	sem     chan struct{}
	cache   sync.Map // cache key -> []byte
	tokenMu sync.Mutex
	buckets map[string]*rate.Limiter
	costs   map[string]float64
}

// New creates a Client recording every attempt into ledger.
func New(opts Options, ledger *quota.Ledger) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "keyword-cli/1.0"
	}

	buckets := make(map[string]*rate.Limiter, len(opts.Limits))
	costs := make(map[string]float64, len(opts.Limits))
	for provider, lim := range opts.Limits {
		rpm := lim.RPM
		if rpm <= 0 {
			rpm = 60
		}
		buckets[provider] = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
		costs[provider] = lim.CostPerCall
	}

	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		ledger:  ledger,
		sem:     make(chan struct{}, opts.MaxConcurrent),
		buckets: buckets,
		costs:   costs,
	}
}

// Ledger exposes the client's quota ledger.
func (c *Client) Ledger() *quota.Ledger {
	return c.ledger
}

func (c *Client) bucket(provider string) *rate.Limiter {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if b, ok := c.buckets[provider]; ok {
		return b
	}
	b := rate.NewLimiter(rate.Limit(1), 1)
	c.buckets[provider] = b
	return b
}

func (c *Client) cost(provider string) float64 {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	return c.costs[provider]
}

func cacheKey(req Request) string {
	return req.Provider + "\x00" + req.URL
}

// Fetch executes the request. Identical (provider, URL) requests within a
// run are served from cache without consuming quota. Transient failures are
// retried under the client's policy; on exhaustion a terminal
// *model.FetchError is returned. Every network attempt, success or failure,
// is appended to the ledger.
func (c *Client) Fetch(ctx context.Context, req Request) (*Response, error) {
	key := cacheKey(req)
	if cached, ok := c.cache.Load(key); ok {
		return &Response{Body: cached.([]byte), StatusCode: http.StatusOK, FromCache: true}, nil
	}

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "fetcher: acquire slot")
	}

	attempt := 0
	body, err := resilience.DoVal(ctx, c.opts.Retry, func(ctx context.Context) ([]byte, error) {
		attempt++
		return c.attempt(ctx, req, attempt)
	})
	if err != nil {
		return nil, &model.FetchError{
			Provider:  req.Provider,
			Reason:    err.Error(),
			Retriable: false,
			Cause:     err,
		}
	}

	c.cache.Store(key, body)
	return &Response{Body: body, StatusCode: http.StatusOK}, nil
}

// attempt performs a single throttled HTTP round trip and records it.
func (c *Client) attempt(ctx context.Context, req Request, attempt int) ([]byte, error) {
	if err := c.bucket(req.Provider).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: build request")
	}
	httpReq.Header.Set("User-Agent", c.opts.UserAgent)
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	latency := time.Since(start)

	if err != nil {
		c.ledger.Record(req.Provider, req.Keyword, c.cost(req.Provider), latency, false, attempt)
		zap.L().Warn("provider request failed",
			zap.String("provider", req.Provider),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return nil, resilience.NewTransientError(err, 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, readErr := io.ReadAll(resp.Body)
	latency = time.Since(start)

	success := readErr == nil && resp.StatusCode == http.StatusOK
	c.ledger.Record(req.Provider, req.Keyword, c.cost(req.Provider), latency, success, attempt)

	if readErr != nil {
		return nil, resilience.NewTransientError(eris.Wrap(readErr, "fetcher: read body"), resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		zap.L().Warn("provider returned transient status",
			zap.String("provider", req.Provider),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt),
		)
		return nil, resilience.NewTransientError(
			fmt.Errorf("status %d from %s", resp.StatusCode, req.Provider), resp.StatusCode)
	default:
		return nil, eris.Errorf("fetcher: status %d from %s", resp.StatusCode, req.Provider)
	}
}

// Get is the convenience form used by provider clients: compose the URL,
// fetch, return the body.
func (c *Client) Get(ctx context.Context, provider, keyword, url string) ([]byte, error) {
	resp, err := c.Fetch(ctx, Request{Provider: provider, Keyword: keyword, URL: url})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
