package config

import (
	"github.com/tastyGranola/bioquery/gateway"
	"github.com/tastyGranola/bioquery/pkg/breaker"
	"github.com/tastyGranola/bioquery/pkg/ratelimit"
	"github.com/tastyGranola/bioquery/pkg/retry"
)

// GatewayConfig translates the loaded configuration into the gateway's
// own config shape.
func (c *Config) GatewayConfig() gateway.Config {
	return gateway.Config{
		MaxInFlight:        c.Gateway.MaxInFlight,
		CacheMaxEntries:    c.Cache.MaxEntries,
		CacheMaxEntryBytes: c.Cache.MaxEntryBytes,
		VolatileTTL:        c.Cache.VolatileTTL.Std(),
		StaticTTL:          c.Cache.StaticTTL.Std(),
		Breaker: breaker.Config{
			FailureThreshold: c.Breaker.FailureThreshold,
			RecoveryTimeout:  c.Breaker.RecoveryTimeout.Std(),
		},
		DefaultRetry: c.RetryPolicy(),
		Blocking:     c.Gateway.Blocking,
		CallTimeout:  c.Gateway.CallTimeout.Std(),
	}
}

// RetryPolicy builds the default retry policy.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: c.Retry.InitialDelay.Std(),
		MaxDelay:     c.Retry.MaxDelay.Std(),
		Multiplier:   c.Retry.Multiplier,
		AddJitter:    c.Retry.Jitter,
	}
}

// GatewayEndpoints maps config entries to gateway endpoints, with API
// keys already resolved from the environment.
func (c *Config) GatewayEndpoints() []gateway.Endpoint {
	out := make([]gateway.Endpoint, 0, len(c.Endpoints))
	for i := range c.Endpoints {
		ec := &c.Endpoints[i]
		ep := gateway.Endpoint{
			Key:         ec.Key,
			BaseURL:     ec.BaseURL,
			Anonymous:   ratelimit.PerMinute(float64(ec.AnonymousPerMin)),
			APIKey:      ec.apiKey,
			APIKeyParam: ec.APIKeyParam,
			Class:       gateway.TTLClass(ec.Class),
		}
		if ec.AuthPerMin > 0 {
			ep.Authenticated = ratelimit.PerMinute(float64(ec.AuthPerMin))
		}
		if ec.RetryMaxAttempts > 0 {
			ep.Retry = c.RetryPolicy()
			ep.Retry.MaxAttempts = ec.RetryMaxAttempts
		}
		out = append(out, ep)
	}
	return out
}
