package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/infosweep/internal/config"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
postgres:
  dsn: "postgres://localhost/infosweep"
sources:
  - type: gist
    oauth: tok
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8090", cfg.Admin.ListenAddr)
	assert.Equal(t, "memory", cfg.Queue.Backend)
	assert.Equal(t, "@daily", cfg.Retention.Schedule)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "gist", cfg.Sources[0].Type)
	assert.Nil(t, cfg.Redis)
	assert.Nil(t, cfg.Nats)
}

func TestLoad_ExplicitValuesOverrideDefaults(t *testing.T) {
	path := writeConfig(t, `
postgres:
  dsn: "postgres://localhost/infosweep"
queue:
  backend: redis
admin:
  listen_addr: ":9999"
retention:
  schedule: "0 3 * * *"
  max_age_days: 30
redis:
  host: cache.internal
  port: 6380
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Queue.Backend)
	assert.Equal(t, ":9999", cfg.Admin.ListenAddr)
	assert.Equal(t, "0 3 * * *", cfg.Retention.Schedule)
	assert.Equal(t, 30, cfg.Retention.MaxAgeDays)
	require.NotNil(t, cfg.Redis)
	assert.Equal(t, "cache.internal", cfg.Redis.Host)
	assert.Equal(t, 6380, cfg.Redis.Port)
}

func TestLoad_ParsesRuleExternalVars(t *testing.T) {
	path := writeConfig(t, `
postgres:
  dsn: "postgres://localhost/infosweep"
rules:
  paths: ["rules/*.yaml"]
  yara_external_vars:
    env: prod
    team: intel
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"rules/*.yaml"}, cfg.Rules.Paths)
	assert.Equal(t, map[string]string{"env": "prod", "team": "intel"}, cfg.Rules.ExternalVars)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/no/such/config.yaml")
	assert.Error(t, err)
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}
