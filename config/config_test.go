package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bioquery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Gateway.MaxInFlight)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.Breaker.RecoveryTimeout.Std())
	assert.Equal(t, 100, cfg.Cache.MaxEntries)
	assert.Equal(t, 1<<20, cfg.Cache.MaxEntryBytes)
	assert.Equal(t, 15*time.Minute, cfg.Cache.VolatileTTL.Std())
	assert.Equal(t, 24*time.Hour, cfg.Cache.StaticTTL.Std())
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Router.Deadline.Std())
	assert.False(t, cfg.Redis.Enabled)

	require.Len(t, cfg.Endpoints, 3)
	assert.Equal(t, "articles", cfg.Endpoints[0].Key)
	assert.Equal(t, 40, cfg.Endpoints[0].AnonymousPerMin)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
gateway:
  max_in_flight: 4
  call_timeout: 5s
breaker:
  failure_threshold: 2
  recovery_timeout: 90s
cache:
  volatile_ttl: 1m
router:
  deadline: 10s
endpoints:
  - key: trials
    base_url: https://clinicaltrials.gov/api/v2
    class: volatile
    anonymous_per_min: 50
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Gateway.MaxInFlight)
	assert.Equal(t, 5*time.Second, cfg.Gateway.CallTimeout.Std())
	assert.Equal(t, 2, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 90*time.Second, cfg.Breaker.RecoveryTimeout.Std())
	assert.Equal(t, time.Minute, cfg.Cache.VolatileTTL.Std())
	assert.Equal(t, 10*time.Second, cfg.Router.Deadline.Std())

	require.Len(t, cfg.Endpoints, 1)
	assert.Equal(t, 50, cfg.Endpoints[0].AnonymousPerMin)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
gateway:
  max_in_flight: 4
`)
	t.Setenv(EnvPrefix+"MAX_IN_FLIGHT", "7")
	t.Setenv(EnvPrefix+"LOG_LEVEL", "debug")
	t.Setenv(EnvPrefix+"ROUTER_DEADLINE", "12s")
	t.Setenv(EnvPrefix+"REDIS_ADDR", "localhost:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Gateway.MaxInFlight)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 12*time.Second, cfg.Router.Deadline.Std())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_APIKeyResolvedFromEnv(t *testing.T) {
	t.Setenv("NCBI_API_KEY", "k-secret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "k-secret", cfg.Endpoints[0].APIKey())

	eps := cfg.GatewayEndpoints()
	assert.Equal(t, "k-secret", eps[0].APIKey)
	assert.Greater(t, eps[0].Authenticated.RefillPerSec, eps[0].Anonymous.RefillPerSec,
		"authenticated quota kicks in with a key")
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
router:
  deadline: soon
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "no endpoints",
			mutate:  func(c *Config) { c.Endpoints = nil },
			wantErr: "at least one endpoint",
		},
		{
			name: "duplicate endpoint",
			mutate: func(c *Config) {
				c.Endpoints = append(c.Endpoints, c.Endpoints[0])
			},
			wantErr: "duplicate endpoint",
		},
		{
			name:    "bad class",
			mutate:  func(c *Config) { c.Endpoints[0].Class = "forever" },
			wantErr: "class must be volatile or static",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "unknown log level",
		},
		{
			name: "redis enabled without addr",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Addr = ""
			},
			wantErr: "redis.addr required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.ApplyDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGatewayConfig_Mapping(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	gc := cfg.GatewayConfig()
	assert.Equal(t, 10, gc.MaxInFlight)
	assert.Equal(t, 100, gc.CacheMaxEntries)
	assert.Equal(t, 15*time.Minute, gc.VolatileTTL)
	assert.Equal(t, 24*time.Hour, gc.StaticTTL)
	assert.Equal(t, 5, gc.Breaker.FailureThreshold)
	assert.Equal(t, 3, gc.DefaultRetry.MaxAttempts)
}

func TestGatewayEndpoints_PerEndpointRetryBudget(t *testing.T) {
	cfg := &Config{
		Endpoints: []EndpointConfig{{
			Key:              "trials",
			BaseURL:          "https://clinicaltrials.gov/api/v2",
			RetryMaxAttempts: 2,
		}},
	}
	cfg.ApplyDefaults()

	eps := cfg.GatewayEndpoints()
	require.Len(t, eps, 1)
	assert.Equal(t, 2, eps[0].Retry.MaxAttempts)
}
