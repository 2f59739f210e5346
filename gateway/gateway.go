// Package gateway composes the resilience primitives into the single
// protective layer every upstream call passes through.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/tastyGranola/bioquery/errors"
	"github.com/tastyGranola/bioquery/metric"
	"github.com/tastyGranola/bioquery/pkg/breaker"
	"github.com/tastyGranola/bioquery/pkg/cache"
	"github.com/tastyGranola/bioquery/pkg/ratelimit"
	"github.com/tastyGranola/bioquery/pkg/retry"
)

// Config carries the gateway's tunables. Zero values fall back to the
// production defaults documented on each field.
type Config struct {
	// MaxInFlight caps concurrent upstream calls across all endpoints.
	// Default 10.
	MaxInFlight int `json:"max_in_flight" yaml:"max_in_flight"`

	// CacheMaxEntries bounds the in-memory response cache. Default 100.
	CacheMaxEntries int `json:"cache_max_entries" yaml:"cache_max_entries"`

	// CacheMaxEntryBytes bounds a single cached response. Default 1 MiB.
	CacheMaxEntryBytes int `json:"cache_max_entry_bytes" yaml:"cache_max_entry_bytes"`

	// VolatileTTL is the cache lifetime for the volatile class. Default 15m.
	VolatileTTL time.Duration `json:"volatile_ttl" yaml:"volatile_ttl"`

	// StaticTTL is the cache lifetime for the static class. Default 24h.
	StaticTTL time.Duration `json:"static_ttl" yaml:"static_ttl"`

	// Breaker configures every endpoint's circuit breaker.
	Breaker breaker.Config `json:"breaker" yaml:"breaker"`

	// DefaultQuota applies to endpoints registered without one.
	DefaultQuota ratelimit.Quota `json:"default_quota" yaml:"default_quota"`

	// DefaultRetry applies to endpoints registered without a retry budget.
	DefaultRetry retry.Policy `json:"default_retry" yaml:"default_retry"`

	// Blocking selects limiter mode: true (default) waits for a token,
	// false surfaces rate_limited backpressure to the caller.
	Blocking *bool `json:"blocking" yaml:"blocking"`

	// CallTimeout bounds a single network attempt. Default 30s.
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`
}

func (c *Config) applyDefaults() {
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 10
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = 100
	}
	if c.CacheMaxEntryBytes <= 0 {
		c.CacheMaxEntryBytes = 1 << 20
	}
	if c.VolatileTTL <= 0 {
		c.VolatileTTL = 15 * time.Minute
	}
	if c.StaticTTL <= 0 {
		c.StaticTTL = 24 * time.Hour
	}
	if c.Breaker.FailureThreshold <= 0 {
		c.Breaker = breaker.DefaultConfig()
	}
	if !c.DefaultQuota.Valid() {
		c.DefaultQuota = ratelimit.PerMinute(40)
	}
	if c.DefaultRetry.MaxAttempts <= 0 {
		c.DefaultRetry = retry.DefaultPolicy()
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
}

func (c *Config) blocking() bool {
	return c.Blocking == nil || *c.Blocking
}

// Option configures optional gateway collaborators.
type Option func(*Gateway)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics exports gateway, breaker and cache metrics through the
// registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(g *Gateway) {
		g.metrics = registry
	}
}

// WithHTTPClient replaces the outbound HTTP client (tests, custom
// transports).
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.client = client
		}
	}
}

// WithLimiter replaces the in-process token bucket, e.g. with the
// Redis-backed limiter for multi-process deployments.
func WithLimiter(limiter ratelimit.Limiter) Option {
	return func(g *Gateway) {
		if limiter != nil {
			g.limiter = limiter
		}
	}
}

// WithPersistentStore adds the disk tier for static-class responses.
func WithPersistentStore(store *cache.PersistentStore) Option {
	return func(g *Gateway) {
		g.store = store
	}
}

// Gateway owns all per-endpoint resilience state: one token bucket and one
// breaker state per endpoint, a shared bounded response cache, and the
// global in-flight gate. Constructed once at process start and passed by
// handle to every domain adapter.
type Gateway struct {
	cfg      Config
	registry *Registry
	limiter  ratelimit.Limiter
	buckets  *ratelimit.TokenBucket // retained for quota registration
	gate     *ratelimit.Gate
	breaker  *breaker.Breaker
	memCache cache.Cache[*Response]
	store    *cache.PersistentStore
	client   *http.Client
	logger   *slog.Logger
	metrics  *metric.MetricsRegistry

	// retries holds the resolved per-endpoint budgets.
	retriesMu sync.RWMutex
	retries   map[string]retry.Policy
}

// New creates a gateway. The context bounds the cache's background cleanup
// goroutine.
func New(ctx context.Context, cfg Config, opts ...Option) (*Gateway, error) {
	cfg.applyDefaults()

	buckets := ratelimit.NewTokenBucket(cfg.DefaultQuota)
	g := &Gateway{
		cfg:      cfg,
		registry: NewRegistry(),
		limiter:  buckets,
		buckets:  buckets,
		gate:     ratelimit.NewGate(cfg.MaxInFlight),
		breaker:  breaker.New(cfg.Breaker),
		client:   &http.Client{Timeout: cfg.CallTimeout},
		logger:   slog.Default(),
		retries:  make(map[string]retry.Policy),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	cacheOpts := []cache.Option[*Response]{
		cache.WithMaxEntryBytes[*Response](cfg.CacheMaxEntryBytes, func(r *Response) int {
			return len(r.Body)
		}),
	}
	if g.metrics != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics[*Response](g.metrics, "gateway"))
	}

	memCache, err := cache.NewFIFO[*Response](
		ctx, cfg.CacheMaxEntries, cfg.VolatileTTL, time.Minute, cacheOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Gateway", "New", "cache construction")
	}
	g.memCache = memCache

	g.breaker.OnStateChange(g.onBreakerChange)

	return g, nil
}

// onBreakerChange logs and exports every breaker transition.
func (g *Gateway) onBreakerChange(endpoint string, from, to breaker.State) {
	g.logger.Warn("circuit breaker state change",
		"endpoint", endpoint, "from", from.String(), "to", to.String())
	if g.metrics != nil {
		g.metrics.Metrics.BreakerState.WithLabelValues(endpoint).Set(float64(to))
		g.metrics.Metrics.BreakerTransitions.WithLabelValues(endpoint, to.String()).Inc()
	}
}

// Configure registers an endpoint with its rate, cache and retry specs.
// Must complete before Freeze; adapters call Execute only afterwards.
func (g *Gateway) Configure(ep Endpoint) error {
	if err := g.registry.Register(ep); err != nil {
		return err
	}

	if qs, ok := g.limiter.(ratelimit.QuotaSetter); ok {
		qs.SetQuota(ep.Key, ep.quota())
	} else {
		g.buckets.SetQuota(ep.Key, ep.quota())
	}

	policy := ep.Retry
	if policy.MaxAttempts <= 0 {
		policy = g.cfg.DefaultRetry
	}
	g.retriesMu.Lock()
	g.retries[ep.Key] = policy
	g.retriesMu.Unlock()

	g.logger.Info("endpoint configured",
		"endpoint", ep.Key, "base_url", ep.BaseURL,
		"class", string(ep.Class), "authenticated", ep.APIKey != "")
	return nil
}

// Freeze finalizes endpoint registration.
func (g *Gateway) Freeze() {
	g.registry.Freeze()
}

// Registry exposes the endpoint table for adapters that own several routes.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// BreakerState reports the circuit state for an endpoint.
func (g *Gateway) BreakerState(key string) breaker.State {
	return g.breaker.State(key)
}

func (g *Gateway) retryPolicy(key string) retry.Policy {
	g.retriesMu.RLock()
	defer g.retriesMu.RUnlock()
	if policy, ok := g.retries[key]; ok {
		return policy
	}
	return g.cfg.DefaultRetry
}

// ttlFor resolves the cache TTL for an endpoint's volatility class.
func (g *Gateway) ttlFor(ep Endpoint) time.Duration {
	if ep.Class == TTLStatic {
		return g.cfg.StaticTTL
	}
	return g.cfg.VolatileTTL
}

// Execute performs one protected upstream call. Composition order: breaker
// check (fail fast), cache lookup (free hit), limiter acquire (wait or
// reject), retry-wrapped network call, then outcome recording. A cache hit
// therefore costs nothing against rate or breaker budgets, and a
// breaker-open endpoint never consumes a rate-limit token.
func (g *Gateway) Execute(ctx context.Context, endpointKey string, req Request) (*Response, error) {
	ep, err := g.registry.Get(endpointKey)
	if err != nil {
		return nil, err
	}

	if err := g.breaker.Allow(ep.Key); err != nil {
		g.recordOutcome(ep.Key, "circuit_open")
		return nil, err
	}

	cacheKey := ""
	if req.cacheable() {
		cacheKey = cache.Key(ep.Key, req.Params)
		if resp, ok := g.cacheLookup(ep, cacheKey); ok {
			// Served without touching the network, so no outcome will be
			// recorded; hand back any half-open trial slot Allow granted.
			g.breaker.CancelProbe(ep.Key)
			g.recordOutcome(ep.Key, "cache_hit")
			return resp, nil
		}
	}

	if err := g.admit(ctx, ep.Key); err != nil {
		g.breaker.CancelProbe(ep.Key)
		return nil, err
	}
	defer g.gate.Release()

	resp, err := g.call(ctx, ep, req)
	if err != nil {
		g.breaker.RecordFailure(ep.Key)
		g.recordOutcome(ep.Key, errors.ClassOf(err).String())
		if g.metrics != nil {
			g.metrics.Metrics.ErrorsTotal.
				WithLabelValues("gateway", errors.ClassOf(err).String()).Inc()
		}
		return nil, err
	}

	g.breaker.RecordSuccess(ep.Key)
	g.recordOutcome(ep.Key, "success")

	if cacheKey != "" {
		g.cacheStore(ep, cacheKey, resp)
	}
	return resp, nil
}

// admit passes the global gate and the endpoint's token bucket, in blocking
// or backpressure mode per configuration.
func (g *Gateway) admit(ctx context.Context, key string) error {
	if g.cfg.blocking() {
		if err := g.gate.Acquire(ctx); err != nil {
			return errors.WrapTimeout(err, "Gateway", "Execute", "concurrency admission")
		}
		waited, err := g.limiter.Acquire(ctx, key)
		if g.metrics != nil {
			g.metrics.Metrics.RateLimitWait.WithLabelValues(key).Observe(waited.Seconds())
		}
		if err != nil {
			g.gate.Release()
			return errors.WrapTimeout(err, "Gateway", "Execute", "rate limit wait")
		}
		return nil
	}

	if !g.gate.TryAcquire() {
		g.recordOutcome(key, "rate_limited")
		return errors.ErrConcurrencyLimit
	}
	if wait, ok := g.limiter.Reserve(ctx, key); !ok {
		g.gate.Release()
		g.recordOutcome(key, "rate_limited")
		return errors.RateLimitedError(key, wait.Round(time.Millisecond).String())
	}
	return nil
}

// call performs the retry-wrapped network exchange.
func (g *Gateway) call(ctx context.Context, ep Endpoint, req Request) (*Response, error) {
	policy := g.retryPolicy(ep.Key)

	attempt := 0
	return retry.DoWithResult(ctx, policy, func() (*Response, error) {
		attempt++
		if attempt > 1 {
			if g.metrics != nil {
				g.metrics.Metrics.RetryAttempts.WithLabelValues(ep.Key).Inc()
			}
			g.logger.Debug("retrying upstream call",
				"endpoint", ep.Key, "attempt", attempt)
		}
		return g.doHTTP(ctx, ep, req)
	})
}

// doHTTP performs a single network attempt.
func (g *Gateway) doHTTP(ctx context.Context, ep Endpoint, req Request) (*Response, error) {
	target, err := url.Parse(ep.BaseURL + req.Path)
	if err != nil {
		return nil, retry.NonRetryable(
			errors.WrapPermanent(err, "Gateway", "doHTTP", "request URL"))
	}

	query := target.Query()
	for name, value := range req.Params {
		query.Set(name, value)
	}
	if ep.APIKey != "" && ep.APIKeyParam != "" {
		query.Set(ep.APIKeyParam, ep.APIKey)
	}
	target.RawQuery = query.Encode()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method(), target.String(), body)
	if err != nil {
		return nil, retry.NonRetryable(
			errors.WrapPermanent(err, "Gateway", "doHTTP", "request construction"))
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WrapTimeout(ctx.Err(), "Gateway", "doHTTP", ep.Key)
		}
		return nil, errors.WrapTransient(err, "Gateway", "doHTTP", ep.Key)
	}
	defer func() { _ = httpResp.Body.Close() }()

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.WrapTransient(err, "Gateway", "doHTTP", "response read")
	}
	elapsed := time.Since(start)

	if g.metrics != nil {
		g.metrics.Metrics.RequestDuration.WithLabelValues(ep.Key).Observe(elapsed.Seconds())
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, errors.FromStatus(httpResp.StatusCode, ep.Key)
	}

	headers := make(map[string]string, len(httpResp.Header))
	for name := range httpResp.Header {
		headers[name] = httpResp.Header.Get(name)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    headers,
		Body:       payload,
		Elapsed:    elapsed,
	}, nil
}

// cacheLookup checks the memory tier, then the persistent tier for
// static-class endpoints.
func (g *Gateway) cacheLookup(ep Endpoint, key string) (*Response, bool) {
	if resp, ok := g.memCache.Get(key); ok {
		hit := *resp
		hit.Cached = true
		return &hit, true
	}

	if g.store != nil && ep.Class == TTLStatic {
		if raw, ok := g.store.Get(key); ok {
			var resp Response
			if err := json.Unmarshal(raw, &resp); err == nil {
				resp.Cached = true
				// Promote back into the memory tier.
				_, _ = g.memCache.SetWithTTL(key, &resp, g.cfg.StaticTTL)
				return &resp, true
			}
			_ = g.store.Delete(key)
		}
	}

	return nil, false
}

// cacheStore writes a successful response into the applicable tiers.
// Oversize responses are passed through uncached.
func (g *Gateway) cacheStore(ep Endpoint, key string, resp *Response) {
	ttl := g.ttlFor(ep)
	if _, err := g.memCache.SetWithTTL(key, resp, ttl); err != nil {
		if stderrors.Is(err, errors.ErrEntryTooLarge) {
			g.logger.Debug("response exceeds cache entry bound, passing through",
				"endpoint", ep.Key, "bytes", len(resp.Body))
			return
		}
		g.logger.Warn("cache store failed", "endpoint", ep.Key, "error", err)
		return
	}

	if g.store != nil && ep.Class == TTLStatic {
		raw, err := json.Marshal(resp)
		if err == nil {
			if err := g.store.Put(key, raw, ttl); err != nil {
				g.logger.Warn("persistent cache store failed",
					"endpoint", ep.Key, "error", err)
			}
		}
	}
}

func (g *Gateway) recordOutcome(endpoint, outcome string) {
	if g.metrics != nil {
		g.metrics.Metrics.RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	}
}

// Close releases the gateway's cache resources, including the persistent
// tier's database lock when one is attached.
func (g *Gateway) Close() error {
	err := g.memCache.Close()
	if g.store != nil {
		if serr := g.store.Close(); err == nil {
			err = serr
		}
	}
	return err
}
