package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "30s"
// or "15m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete application configuration. Zero values are
// filled in by ApplyDefaults; Validate runs after defaults and env
// overrides have been applied.
type Config struct {
	Endpoints   []EndpointConfig  `yaml:"endpoints"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Breaker     BreakerConfig     `yaml:"breaker"`
	Cache       CacheConfig       `yaml:"cache"`
	Retry       RetryConfig       `yaml:"retry"`
	Router      RouterConfig      `yaml:"router"`
	Redis       RedisConfig       `yaml:"redis"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Log         LogConfig         `yaml:"log"`
}

// EndpointConfig describes one upstream endpoint. The API key itself
// never appears in config files; APIKeyEnv names the environment
// variable that holds it.
type EndpointConfig struct {
	Key              string `yaml:"key"`
	BaseURL          string `yaml:"base_url"`
	Class            string `yaml:"class"` // volatile or static
	AnonymousPerMin  int    `yaml:"anonymous_per_min"`
	AuthPerMin       int    `yaml:"authenticated_per_min"`
	APIKeyEnv        string `yaml:"api_key_env"`
	APIKeyParam      string `yaml:"api_key_param"`
	RetryMaxAttempts int    `yaml:"retry_max_attempts"`

	// resolved from APIKeyEnv during Load, never serialized
	apiKey string
}

// APIKey returns the key resolved from the environment, if any.
func (e *EndpointConfig) APIKey() string { return e.apiKey }

type GatewayConfig struct {
	MaxInFlight int      `yaml:"max_in_flight"`
	Blocking    *bool    `yaml:"blocking"`
	CallTimeout Duration `yaml:"call_timeout"`
}

type BreakerConfig struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	RecoveryTimeout  Duration `yaml:"recovery_timeout"`
}

type CacheConfig struct {
	MaxEntries    int      `yaml:"max_entries"`
	MaxEntryBytes int      `yaml:"max_entry_bytes"`
	VolatileTTL   Duration `yaml:"volatile_ttl"`
	StaticTTL     Duration `yaml:"static_ttl"`
}

type RetryConfig struct {
	MaxAttempts  int      `yaml:"max_attempts"`
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
	Multiplier   float64  `yaml:"multiplier"`
	Jitter       bool     `yaml:"jitter"`
}

type RouterConfig struct {
	Deadline Duration `yaml:"deadline"`
}

// RedisConfig enables the distributed rate limiter. Disabled by
// default; the in-process token bucket covers single-instance
// deployments.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"`
	DB       int    `yaml:"db"`
}

// PersistenceConfig enables the on-disk cache tier for static-class
// endpoint responses.
type PersistenceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ApplyDefaults fills unset fields in place.
func (c *Config) ApplyDefaults() {
	if c.Gateway.MaxInFlight == 0 {
		c.Gateway.MaxInFlight = 10
	}
	if c.Gateway.CallTimeout == 0 {
		c.Gateway.CallTimeout = Duration(20 * time.Second)
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.RecoveryTimeout == 0 {
		c.Breaker.RecoveryTimeout = Duration(60 * time.Second)
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 100
	}
	if c.Cache.MaxEntryBytes == 0 {
		c.Cache.MaxEntryBytes = 1 << 20
	}
	if c.Cache.VolatileTTL == 0 {
		c.Cache.VolatileTTL = Duration(15 * time.Minute)
	}
	if c.Cache.StaticTTL == 0 {
		c.Cache.StaticTTL = Duration(24 * time.Hour)
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = Duration(200 * time.Millisecond)
		c.Retry.Jitter = true
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = Duration(5 * time.Second)
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 2.0
	}
	if c.Router.Deadline == 0 {
		c.Router.Deadline = Duration(30 * time.Second)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Persistence.Enabled && c.Persistence.Path == "" {
		c.Persistence.Path = "data/cache"
	}
	if len(c.Endpoints) == 0 {
		c.Endpoints = DefaultEndpoints()
	}
	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		if ep.Class == "" {
			ep.Class = "volatile"
		}
		if ep.AnonymousPerMin == 0 {
			ep.AnonymousPerMin = 40
		}
		if ep.AuthPerMin == 0 && ep.APIKeyEnv != "" {
			ep.AuthPerMin = 240
		}
	}
}

// DefaultEndpoints covers the three production domains.
func DefaultEndpoints() []EndpointConfig {
	return []EndpointConfig{
		{
			Key:         "articles",
			BaseURL:     "https://www.ncbi.nlm.nih.gov/research/pubtator3-api",
			Class:       "volatile",
			APIKeyEnv:   "NCBI_API_KEY",
			APIKeyParam: "api_key",
		},
		{
			Key:         "variants",
			BaseURL:     "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
			Class:       "static",
			APIKeyEnv:   "NCBI_API_KEY",
			APIKeyParam: "api_key",
		},
		{
			Key:     "trials",
			BaseURL: "https://clinicaltrials.gov/api/v2",
			Class:   "volatile",
		},
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("config: at least one endpoint required")
	}
	seen := make(map[string]bool)
	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		if err := ep.Validate(); err != nil {
			return err
		}
		if seen[ep.Key] {
			return fmt.Errorf("config: duplicate endpoint key %q", ep.Key)
		}
		seen[ep.Key] = true
	}
	if c.Gateway.MaxInFlight < 1 {
		return fmt.Errorf("config: gateway.max_in_flight must be positive")
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("config: breaker.failure_threshold must be positive")
	}
	if c.Breaker.RecoveryTimeout <= 0 {
		return fmt.Errorf("config: breaker.recovery_timeout must be positive")
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("config: cache.max_entries must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("config: retry.max_attempts must be positive")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("config: retry.multiplier must be >= 1")
	}
	if c.Router.Deadline <= 0 {
		return fmt.Errorf("config: router.deadline must be positive")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr required when redis is enabled")
	}
	if c.Persistence.Enabled && c.Persistence.Path == "" {
		return fmt.Errorf("config: persistence.path required when persistence is enabled")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// Validate checks one endpoint entry.
func (e *EndpointConfig) Validate() error {
	if e.Key == "" {
		return fmt.Errorf("config: endpoint key required")
	}
	if e.BaseURL == "" {
		return fmt.Errorf("config: endpoint %q: base_url required", e.Key)
	}
	if e.Class != "volatile" && e.Class != "static" {
		return fmt.Errorf("config: endpoint %q: class must be volatile or static, got %q", e.Key, e.Class)
	}
	if e.AnonymousPerMin < 1 {
		return fmt.Errorf("config: endpoint %q: anonymous_per_min must be positive", e.Key)
	}
	if e.apiKey != "" && e.APIKeyParam == "" {
		return fmt.Errorf("config: endpoint %q: api_key_param required when an api key is set", e.Key)
	}
	return nil
}
