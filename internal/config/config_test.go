package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"ADDR", "API_BASE", "API_BASE_URL", "BACKEND_TIMEOUT", "PUBLIC_SOURCES", "PIN_FALLBACK", "CACHE_BACKEND"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, "/api", c.APIBase)
	assert.Equal(t, "http://localhost:8000", c.BackendURL)
	assert.Equal(t, 30*time.Second, c.BackendTimeout)
	assert.Equal(t, DefaultPublicSources, c.PublicSources)
	assert.Equal(t, "unfiltered", c.PinFallback)
	assert.Equal(t, "file", c.CacheBackend)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("API_BASE", "/v1/")
	t.Setenv("API_BASE_URL", "https://backend.example/")
	t.Setenv("BACKEND_TIMEOUT", "45")
	t.Setenv("PUBLIC_TIMEOUT", "2s")
	t.Setenv("PUBLIC_SOURCES", " https://a.example/x.json , ,https://b.example/y.json")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_QPS", "nope")

	c := FromEnv()
	assert.Equal(t, "/v1", c.APIBase)
	assert.Equal(t, "https://backend.example", c.BackendURL)
	assert.Equal(t, 45*time.Second, c.BackendTimeout)
	assert.Equal(t, 2*time.Second, c.PublicTimeout)
	assert.Equal(t, []string{"https://a.example/x.json", "https://b.example/y.json"}, c.PublicSources)
	assert.Equal(t, "redis", c.CacheBackend)
	assert.True(t, c.RateLimitEnabled)
	assert.Equal(t, 200, c.RateLimitQPS)
}
