package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 5*time.Minute, cfg.PipelineTimeout())
}

func TestLoadYAMLAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studygen.yaml")
	yamlDoc := `
llm:
  provider: openai
  model: gpt-4o-mini
cache:
  driver: redis
  ttl: 24h
pipeline:
  timeout: 90s
  prompts_dir: /etc/studygen/prompts
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, 3, cfg.Cache.Redis.DB)
	assert.Equal(t, 90*time.Second, cfg.PipelineTimeout())
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL())
	assert.Equal(t, "/etc/studygen/prompts", cfg.Pipeline.PromptsDir)
	require.NoError(t, cfg.Validate())
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unterminated"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateCatchesDriverRequirements(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retrieval.Driver = "postgres"
	cfg.Cache.Driver = "mongo"
	cfg.Cache.Mongo.URI = ""
	cfg.LLM.Provider = "bard"
	cfg.Telemetry.SampleRatio = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	for _, field := range []string{"retrieval.dsn", "cache.mongo.uri", "llm.provider", "telemetry.sample_ratio"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.yaml")
	cfg := DefaultConfig()
	cfg.Server.Addr = ":9999"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", loaded.Server.Addr)
}

func TestInvalidDurationFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.Timeout = "later"
	assert.Equal(t, 5*time.Minute, cfg.PipelineTimeout())
	assert.Error(t, cfg.Validate())
}
