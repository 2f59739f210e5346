package gateway

import (
	"net/http"
	"time"

	"github.com/tastyGranola/bioquery/pkg/ratelimit"
	"github.com/tastyGranola/bioquery/pkg/retry"
)

// TTLClass names a data volatility class used to pick cache lifetimes.
type TTLClass string

const (
	// TTLVolatile is for mutable upstream data (search results, trial
	// status). Default 15 minutes.
	TTLVolatile TTLClass = "volatile"

	// TTLStatic is for near-static data such as ontology lookups. Default
	// 24 hours, eligible for the persistent tier.
	TTLStatic TTLClass = "static"
)

// Endpoint describes one logical upstream API route. Endpoints are
// registered at startup and read-only thereafter.
type Endpoint struct {
	// Key is the stable, unique endpoint identifier.
	Key string `json:"key" yaml:"key"`

	// BaseURL is the scheme://host[:port] prefix for requests.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Anonymous is the quota applied without a credential.
	Anonymous ratelimit.Quota `json:"anonymous" yaml:"anonymous"`

	// Authenticated is the quota applied when a credential is configured.
	Authenticated ratelimit.Quota `json:"authenticated" yaml:"authenticated"`

	// APIKey, when set, is attached to outbound requests and selects the
	// authenticated quota. Never included in cache keys.
	APIKey string `json:"-" yaml:"-"`

	// APIKeyParam is the query parameter name the upstream expects the
	// credential in. Empty means no credential parameter.
	APIKeyParam string `json:"api_key_param" yaml:"api_key_param"`

	// Class selects the cache TTL class. Defaults to volatile.
	Class TTLClass `json:"class" yaml:"class"`

	// Retry is the endpoint's retry budget. Zero value means the gateway
	// default.
	Retry retry.Policy `json:"retry" yaml:"retry"`
}

// quota returns the applicable quota for the endpoint's credential state.
func (e Endpoint) quota() ratelimit.Quota {
	if e.APIKey != "" && e.Authenticated.Valid() {
		return e.Authenticated
	}
	return e.Anonymous
}

// Request is the normalized outbound request shape handed to the gateway by
// domain adapters.
type Request struct {
	// Method defaults to GET. Only GET responses are cached.
	Method string

	// Path is appended to the endpoint's base URL.
	Path string

	// Params become the URL query string. Sensitive parameters are
	// excluded from cache key computation but still sent upstream.
	Params map[string]string

	// Headers are added to the outbound request.
	Headers map[string]string

	// Body is the request payload for non-GET methods.
	Body []byte
}

// method returns the effective HTTP method.
func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// cacheable reports whether the request is eligible for response caching.
func (r Request) cacheable() bool {
	return r.method() == http.MethodGet
}

// Response is the normalized upstream response returned to adapters.
type Response struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string]string   `json:"headers,omitempty"`
	Body       []byte              `json:"body"`
	Cached     bool                `json:"-"` // true when served from cache
	Elapsed    time.Duration       `json:"-"` // network time, zero for cache hits
}
