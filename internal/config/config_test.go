package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 3, cfg.Generator.MaxDepth)
	assert.Equal(t, 1000, cfg.Generator.MaxGraphSize)
	assert.Equal(t, 50, cfg.Generator.BatchSize)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 50, cfg.Store.MaxPoolSize)
	assert.Equal(t, 30*time.Second, cfg.Store.QueryTimeout)
	assert.Equal(t, uint32(5), cfg.Breaker.FailureThreshold)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_YAMLFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
environment: production
store:
  uri: bolt://graph.internal:7687
  username: svc
  password: secret
  database: art
  max_pool_size: 25
cache:
  provider: redis
  redis:
    addr: redis.internal:6379
generator:
  max_depth: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "bolt://graph.internal:7687", cfg.Store.URI)
	assert.Equal(t, 25, cfg.Store.MaxPoolSize)
	assert.Equal(t, "redis", cfg.Cache.Provider)
	assert.Equal(t, "redis.internal:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 2, cfg.Generator.MaxDepth)

	// Untouched values keep their defaults.
	assert.Equal(t, 1000, cfg.Generator.MaxGraphSize)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}

func TestLoad_EnvironmentBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  uri: bolt://from-file:7687\n"), 0o600))

	t.Setenv("NEO4J_URI", "bolt://from-env:7687")
	t.Setenv("GRAPH_MAX_DEPTH", "1")
	t.Setenv("CACHE_TTL", "30m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt://from-env:7687", cfg.Store.URI)
	assert.Equal(t, 1, cfg.Generator.MaxDepth)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
}

func TestLoad_MalformedEnvValueIgnored(t *testing.T) {
	t.Setenv("GRAPH_MAX_DEPTH", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Generator.MaxDepth)
}

func TestLoad_ValidationRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  provider: memcached\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{nope"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
