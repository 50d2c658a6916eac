package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromYAML(t *testing.T) {
	yaml := `
server:
  port: 9090
storage:
  database_path: previa_test.db
auth:
  jwt_secret: test-secret
openai:
  api_key: sk-test
  model: gpt-4o
matching:
  lookback_days: 30
  wrap_cursor: true
logging:
  level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "previa_test.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, 30, cfg.Matching.LookbackDays)
	assert.True(t, cfg.Matching.WrapCursor)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	os.Setenv("PREVIA_TEST_KEY", "sk-from-env")
	defer os.Unsetenv("PREVIA_TEST_KEY")

	yaml := "openai:\n  api_key: ${PREVIA_TEST_KEY}\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.OpenAI.APIKey)
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("PREVIA_DB_PATH", "test.db")
	os.Setenv("OPENAI_API_KEY", "test-key")
	defer func() {
		os.Unsetenv("PREVIA_DB_PATH")
		os.Unsetenv("OPENAI_API_KEY")
	}()

	cfg := LoadFromEnv()
	assert.NotNil(t, cfg)
	assert.Equal(t, "test.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "test-key", cfg.OpenAI.APIKey)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	os.Unsetenv("PREVIA_DB_PATH")
	os.Unsetenv("OPENAI_MODEL")

	cfg := LoadFromEnv()
	assert.NotNil(t, cfg)
	assert.Equal(t, "previa.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, 90, cfg.Matching.LookbackDays)
	assert.Equal(t, 100, cfg.Matching.CandidateLimit)
	assert.Equal(t, 5, cfg.Matching.MaxSuggestions)
	assert.Equal(t, 3, cfg.Webhook.MaxRetries)
	assert.InDelta(t, 0.1, cfg.OpenAI.Temperature, 0.0001)
	assert.Equal(t, 1000, cfg.OpenAI.MaxTokens)
}

func TestLoadOrEnv_FallbackToEnv(t *testing.T) {
	cfg := LoadOrEnvWithPath(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.NotNil(t, cfg)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	assert.Error(t, cfg.Validate())

	cfg.Auth.JWTSecret = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestGetAPIKey(t *testing.T) {
	os.Setenv("PREVIA_FALLBACK_KEY", "env-key")
	defer os.Unsetenv("PREVIA_FALLBACK_KEY")

	cfg := &Config{}
	assert.Equal(t, "config-key", cfg.GetAPIKey("config-key", "PREVIA_FALLBACK_KEY"))
	assert.Equal(t, "env-key", cfg.GetAPIKey("", "PREVIA_FALLBACK_KEY"))
	assert.Equal(t, "", cfg.GetAPIKey("", "PREVIA_MISSING_KEY"))
}
