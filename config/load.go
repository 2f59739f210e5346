package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for all override variables.
const EnvPrefix = "BIOQUERY_"

// Load reads a YAML config file, applies defaults, environment
// overrides, and endpoint API key resolution, then validates. An empty
// path yields a pure defaults-plus-env configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.load: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.load: parsing %s: %w", path, err)
		}
	}
	cfg.ApplyDefaults()
	cfg.applyEnv()
	cfg.resolveAPIKeys()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers BIOQUERY_* variables over the loaded file. Only the
// operationally interesting knobs are exposed this way; structural
// settings like the endpoint list stay file-only.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v, ok := envInt("MAX_IN_FLIGHT"); ok {
		c.Gateway.MaxInFlight = v
	}
	if v, ok := envDuration("CALL_TIMEOUT"); ok {
		c.Gateway.CallTimeout = v
	}
	if v, ok := envDuration("ROUTER_DEADLINE"); ok {
		c.Router.Deadline = v
	}
	if v, ok := envInt("BREAKER_THRESHOLD"); ok {
		c.Breaker.FailureThreshold = v
	}
	if v, ok := envDuration("BREAKER_RECOVERY"); ok {
		c.Breaker.RecoveryTimeout = v
	}
	if v, ok := envInt("CACHE_MAX_ENTRIES"); ok {
		c.Cache.MaxEntries = v
	}
	if v := os.Getenv(EnvPrefix + "REDIS_ADDR"); v != "" {
		c.Redis.Enabled = true
		c.Redis.Addr = v
	}
	if v := os.Getenv(EnvPrefix + "REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv(EnvPrefix + "CACHE_DIR"); v != "" {
		c.Persistence.Enabled = true
		c.Persistence.Path = v
	}
}

func (c *Config) resolveAPIKeys() {
	for i := range c.Endpoints {
		ep := &c.Endpoints[i]
		if ep.APIKeyEnv == "" {
			continue
		}
		ep.apiKey = os.Getenv(ep.APIKeyEnv)
	}
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(EnvPrefix + name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envDuration(name string) (Duration, bool) {
	raw := os.Getenv(EnvPrefix + name)
	if raw == "" {
		return 0, false
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false
	}
	return Duration(v), true
}
